package fx

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/event"
)

// EnrichEvent populates an event's EUR fields per spec §4.3. For trade
// events it also computes NetEUR (cost or proceeds) with the sign
// convention the spec table fixes; for everything else it converts
// GrossAmountForeign alone.
func EnrichEvent(p Provider, e *event.Event) error {
	rateOf := func(ccy string) (decimal.Decimal, error) {
		return p.Rate(e.Date, normalizeCurrency(ccy))
	}

	if e.Type == event.CurrencyConversion {
		fromEUR, err := convertAmount(rateOf, e.FromAmount, e.FromCurrency)
		if err != nil {
			return fmt.Errorf("fx: enrich currency conversion event %d: %w", e.ID, err)
		}
		e.SetEUR(fromEUR)
		return nil
	}

	grossEUR, err := convertAmount(rateOf, e.GrossAmountForeign, e.Currency)
	if err != nil {
		return fmt.Errorf("fx: enrich event %d (asset %d, %s): %w", e.ID, e.AssetID, e.Date.Format("2006-01-02"), err)
	}
	e.SetEUR(grossEUR)

	if !e.Type.IsTrade() {
		return nil
	}

	priceQtyEUR, err := convertAmount(rateOf, e.UnitPriceForeign.Mul(e.Quantity), e.Currency)
	if err != nil {
		return fmt.Errorf("fx: enrich trade event %d price leg: %w", e.ID, err)
	}

	commissionEUR := decimal.Zero
	if !e.CommissionForeign.IsZero() {
		commissionEUR, err = convertAmount(rateOf, e.CommissionForeign, e.CommissionCurrency)
		if err != nil {
			return fmt.Errorf("fx: enrich trade event %d commission leg: %w", e.ID, err)
		}
	}

	if e.Type.IsBuy() {
		e.NetEUR = priceQtyEUR.Add(commissionEUR)
	} else {
		e.NetEUR = priceQtyEUR.Sub(commissionEUR)
	}
	return nil
}

func convertAmount(rateOf func(string) (decimal.Decimal, error), amount decimal.Decimal, ccy string) (decimal.Decimal, error) {
	if ccy == "" || ccy == "EUR" {
		return amount, nil
	}
	rate, err := rateOf(ccy)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Div(rate), nil
}

// EnrichAll enriches every event in place, stopping at the first error since
// an unresolved FX rate is fatal per spec §7.
func EnrichAll(p Provider, events []*event.Event) error {
	for _, e := range events {
		if err := EnrichEvent(p, e); err != nil {
			return err
		}
	}
	return nil
}
