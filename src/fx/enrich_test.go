package fx

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/event"
)

type fakeProvider struct {
	calls int
	rates map[string]decimal.Decimal
}

func (f *fakeProvider) Rate(day time.Time, ccy string) (decimal.Decimal, error) {
	f.calls++
	r, ok := f.rates[ccy]
	if !ok {
		return decimal.Zero, &ErrRateUnavailable{Day: day, Ccy: ccy}
	}
	return r, nil
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestEnrichEvent_IdentityForEUR(t *testing.T) {
	p := &fakeProvider{rates: map[string]decimal.Decimal{}}
	ev := &event.Event{Currency: "EUR", GrossAmountForeign: mustDec(t, "100.50")}
	if err := EnrichEvent(p, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ev.GrossAmountEUR.Equal(mustDec(t, "100.50")) {
		t.Fatalf("expected identity conversion, got %s", ev.GrossAmountEUR)
	}
	if p.calls != 0 {
		t.Fatalf("EUR amounts must not call the provider, got %d calls", p.calls)
	}
}

func TestEnrichEvent_ConvertsForeignCurrency(t *testing.T) {
	p := &fakeProvider{rates: map[string]decimal.Decimal{"USD": mustDec(t, "2")}}
	ev := &event.Event{Currency: "USD", GrossAmountForeign: mustDec(t, "200")}
	if err := EnrichEvent(p, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ev.GrossAmountEUR.Equal(mustDec(t, "100")) {
		t.Fatalf("expected 100 EUR, got %s", ev.GrossAmountEUR)
	}
}

func TestEnrichEvent_CNHMapsToCNY(t *testing.T) {
	p := &fakeProvider{rates: map[string]decimal.Decimal{"CNY": mustDec(t, "8")}}
	ev := &event.Event{Currency: "CNH", GrossAmountForeign: mustDec(t, "80")}
	if err := EnrichEvent(p, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ev.GrossAmountEUR.Equal(mustDec(t, "10")) {
		t.Fatalf("expected CNH to resolve via CNY rate, got %s", ev.GrossAmountEUR)
	}
}

func TestEnrichEvent_BuySignAddsCommission(t *testing.T) {
	p := &fakeProvider{rates: map[string]decimal.Decimal{"EUR": mustDec(t, "1")}}
	ev := &event.Event{
		Type:               event.TradeBuyLong,
		Currency:           "EUR",
		CommissionCurrency: "EUR",
		Quantity:            mustDec(t, "10"),
		UnitPriceForeign:    mustDec(t, "100"),
		CommissionForeign:   mustDec(t, "1"),
		GrossAmountForeign:  mustDec(t, "1000"),
	}
	if err := EnrichEvent(p, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ev.NetEUR.Equal(mustDec(t, "1001")) {
		t.Fatalf("expected cost 1001, got %s", ev.NetEUR)
	}
}

func TestEnrichEvent_SellSignSubtractsCommission(t *testing.T) {
	p := &fakeProvider{rates: map[string]decimal.Decimal{"EUR": mustDec(t, "1")}}
	ev := &event.Event{
		Type:               event.TradeSellLong,
		Currency:           "EUR",
		CommissionCurrency: "EUR",
		Quantity:            mustDec(t, "15"),
		UnitPriceForeign:    mustDec(t, "120"),
		CommissionForeign:   mustDec(t, "1"),
		GrossAmountForeign:  mustDec(t, "1800"),
	}
	if err := EnrichEvent(p, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ev.NetEUR.Equal(mustDec(t, "1799")) {
		t.Fatalf("expected proceeds 1799, got %s", ev.NetEUR)
	}
}

func TestEnrichEvent_MissingRateIsError(t *testing.T) {
	p := &fakeProvider{rates: map[string]decimal.Decimal{}}
	ev := &event.Event{Currency: "USD", GrossAmountForeign: mustDec(t, "100")}
	if err := EnrichEvent(p, ev); err == nil {
		t.Fatalf("expected error when provider has no rate")
	}
}

func TestCachingProvider_CallsInnerOncePerDayCurrency(t *testing.T) {
	inner := &fakeProvider{rates: map[string]decimal.Decimal{"USD": mustDec(t, "2")}}
	c := NewCachingProvider(inner)
	day := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := c.Rate(day, "USD"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected exactly one call to the wrapped provider, got %d", inner.calls)
	}
}
