// Package fx implements the FxRateProvider contract (spec §4.3, §9) and the
// enrichment rules that convert every event's foreign-currency amounts to
// EUR. The provider itself is a capability injected by the host; this
// package never constructs one — it only defines the interface and the
// decorators (cache, rate limit) a host may wrap a real provider with.
package fx

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provider is the collaborator interface spec §4.3 fixes: "foreign units per
// 1 EUR" on a given calendar day, falling back to earlier days when that
// day's rate is missing.
type Provider interface {
	// Rate returns the foreign-currency-per-EUR rate for ccy on day, or an
	// error if no rate can be resolved within the fallback window.
	Rate(day time.Time, ccy string) (decimal.Decimal, error)
}

// ErrRateUnavailable is returned by a Provider when no rate could be
// resolved within its fallback window. Callers treat this as fatal per spec
// §7 ("FX rate unavailable beyond fallback window").
type ErrRateUnavailable struct {
	Day time.Time
	Ccy string
}

func (e *ErrRateUnavailable) Error() string {
	return "fx: no rate available for " + e.Ccy + " on or before " + e.Day.Format("2006-01-02")
}

// normalizeCurrency applies the one fixed equivalence spec §4.3 names:
// CNH (offshore renminbi) is quoted against the same underlying rate as CNY.
// Any other equivalence mapping is the provider's own concern.
func normalizeCurrency(ccy string) string {
	if ccy == "CNH" {
		return "CNY"
	}
	return ccy
}
