package fx

import (
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// CachingProvider decorates a Provider with a run-scoped in-memory cache
// keyed by (day, currency), so a run with many events sharing a day and
// currency issues at most one call to the wrapped provider per pair. This is
// distinct from the disk caching spec.md §1 rules out of the core's scope:
// the cache dies with the process and never touches storage.
type CachingProvider struct {
	inner Provider
	cache *cache.Cache
}

// NewCachingProvider wraps inner with an in-memory cache that never expires
// entries during a run (ttl=NoExpiration) since rates for a given
// (day, currency) are immutable for the lifetime of a single engine run.
func NewCachingProvider(inner Provider) *CachingProvider {
	return &CachingProvider{inner: inner, cache: cache.New(cache.NoExpiration, cache.NoExpiration)}
}

func (c *CachingProvider) Rate(day time.Time, ccy string) (decimal.Decimal, error) {
	key := day.Format("2006-01-02") + "|" + ccy
	if v, ok := c.cache.Get(key); ok {
		return v.(decimal.Decimal), nil
	}
	rate, err := c.inner.Rate(day, ccy)
	if err != nil {
		return decimal.Zero, err
	}
	c.cache.Set(key, rate, cache.NoExpiration)
	return rate, nil
}
