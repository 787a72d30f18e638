package testutil

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/fx"
)

// MemoryFxRateProvider is the deterministic in-memory fx.Provider spec §9
// calls for ("tests inject a deterministic in-memory provider"). It is also
// what the demonstration entrypoint wires in, since a real ECB-backed
// provider is explicitly the host's concern (spec §1).
type MemoryFxRateProvider struct {
	// rates[currency][YYYY-MM-DD] = foreign units per 1 EUR.
	rates         map[string]map[string]decimal.Decimal
	maxFallback   int
}

// NewMemoryFxRateProvider builds an empty provider; populate it with Set.
func NewMemoryFxRateProvider(maxFallbackDays int) *MemoryFxRateProvider {
	return &MemoryFxRateProvider{rates: make(map[string]map[string]decimal.Decimal), maxFallback: maxFallbackDays}
}

// Set records the rate for ccy on day.
func (m *MemoryFxRateProvider) Set(day time.Time, ccy string, rate decimal.Decimal) {
	key := day.Format("2006-01-02")
	if m.rates[ccy] == nil {
		m.rates[ccy] = make(map[string]decimal.Decimal)
	}
	m.rates[ccy][key] = rate
}

// Rate implements fx.Provider: exact day match, else fall back up to
// maxFallback calendar days earlier, else ErrRateUnavailable (spec §4.3).
func (m *MemoryFxRateProvider) Rate(day time.Time, ccy string) (decimal.Decimal, error) {
	byDay := m.rates[ccy]
	for i := 0; i <= m.maxFallback; i++ {
		candidate := day.AddDate(0, 0, -i)
		if r, ok := byDay[candidate.Format("2006-01-02")]; ok {
			return r, nil
		}
	}
	return decimal.Zero, &fx.ErrRateUnavailable{Day: day, Ccy: ccy}
}
