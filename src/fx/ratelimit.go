package fx

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// RateLimitedProvider throttles calls to a Provider backed by a real network
// client (e.g. an ECB feed). The core's contract treats Rate as synchronous
// and potentially blocking (spec §5); this decorator only adds throttling,
// never changes that contract.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider wraps inner with a token-bucket limiter allowing
// ratePerSecond calls/sec with a burst of the same size.
func NewRateLimitedProvider(inner Provider, ratePerSecond float64) *RateLimitedProvider {
	burst := int(ratePerSecond)
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedProvider{inner: inner, limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

func (r *RateLimitedProvider) Rate(day time.Time, ccy string) (decimal.Decimal, error) {
	if err := r.limiter.Wait(context.Background()); err != nil {
		return decimal.Zero, err
	}
	return r.inner.Rate(day, ccy)
}
