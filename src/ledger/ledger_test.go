package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/asset"
)

func d(t *testing.T, s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return v
}

// Scenario A from spec §8: multi-lot FIFO sale.
func TestRealizeLong_MultiLotProRataSplit(t *testing.T) {
	l := New(1)
	if err := l.AcquireLong("2023-03-01", d(t, "10"), d(t, "10.10"), "tx1"); err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	if err := l.AcquireLong("2023-04-01", d(t, "10"), d(t, "11.10"), "tx2"); err != nil {
		t.Fatalf("acquire 2: %v", err)
	}

	rgls, err := l.RealizeLong(99, asset.CategoryStock, "2023-06-01", d(t, "15"), d(t, "1799.00"))
	if err != nil {
		t.Fatalf("realize: %v", err)
	}
	if len(rgls) != 2 {
		t.Fatalf("expected 2 realizations, got %d", len(rgls))
	}

	first, second := rgls[0], rgls[1]
	if !first.QuantityRealized.Equal(d(t, "10")) || !second.QuantityRealized.Equal(d(t, "5")) {
		t.Fatalf("expected 10 then 5, got %s then %s", first.QuantityRealized, second.QuantityRealized)
	}
	wantGain1 := d(t, "1098.33")
	if diff := first.GrossGainLossEUR.Sub(wantGain1).Abs(); diff.GreaterThan(d(t, "0.01")) {
		t.Fatalf("lot1 gain = %s, want ~%s", first.GrossGainLossEUR, wantGain1)
	}
	wantGain2 := d(t, "544.17")
	if diff := second.GrossGainLossEUR.Sub(wantGain2).Abs(); diff.GreaterThan(d(t, "0.01")) {
		t.Fatalf("lot2 gain = %s, want ~%s", second.GrossGainLossEUR, wantGain2)
	}

	totalQty := first.QuantityRealized.Add(second.QuantityRealized)
	if !totalQty.Equal(d(t, "15")) {
		t.Fatalf("quantities must sum to event qty, got %s", totalQty)
	}
	totalValue := first.TotalRealizationValueEUR.Add(second.TotalRealizationValueEUR)
	if diff := totalValue.Sub(d(t, "1799.00")).Abs(); diff.GreaterThan(d(t, "0.01")) {
		t.Fatalf("realization values must sum to event net EUR within 0.01, got %s", totalValue)
	}
	if len(l.Long) != 1 || !l.Long[0].RemainingQty.Equal(d(t, "5")) {
		t.Fatalf("expected lot2 to have 5 remaining, got %v", l.Long)
	}
}

func TestRealizeLong_UnderflowIsFatal(t *testing.T) {
	l := New(1)
	_ = l.AcquireLong("2023-01-01", d(t, "5"), d(t, "10"), "tx1")
	if _, err := l.RealizeLong(1, asset.CategoryStock, "2023-02-01", d(t, "10"), d(t, "100")); err == nil {
		t.Fatalf("expected underflow error")
	}
}

func TestMutualExclusion_CannotOpenShortWhileLongHeld(t *testing.T) {
	l := New(1)
	_ = l.AcquireLong("2023-01-01", d(t, "5"), d(t, "10"), "tx1")
	if err := l.OpenShort("2023-01-02", d(t, "5"), d(t, "10"), "tx2"); err == nil {
		t.Fatalf("expected mutual exclusion violation error")
	}
}

func TestApplySplit_PreservesTotalCost(t *testing.T) {
	l := New(1)
	_ = l.AcquireLong("2023-01-01", d(t, "10"), d(t, "5"), "tx1")
	before := l.Long[0].TotalCostEUR

	l.ApplySplit(d(t, "2"))

	if !l.Long[0].RemainingQty.Equal(d(t, "20")) {
		t.Fatalf("expected qty doubled, got %s", l.Long[0].RemainingQty)
	}
	if !l.Long[0].UnitCostEUR.Equal(d(t, "2.5")) {
		t.Fatalf("expected unit cost halved, got %s", l.Long[0].UnitCostEUR)
	}
	if !l.Long[0].TotalCostEUR.Equal(before) {
		t.Fatalf("total cost must be unchanged by a split, got %s want %s", l.Long[0].TotalCostEUR, before)
	}
}

// Scenario E from spec §8: capital repayment exceeding basis.
func TestReduceCostForCapitalRepayment_ExcessReturned(t *testing.T) {
	l := New(1)
	_ = l.AcquireLong("2023-01-01", d(t, "100"), d(t, "1.50"), "tx1")

	excess := l.ReduceCostForCapitalRepayment(d(t, "245"))

	if !excess.Equal(d(t, "95")) {
		t.Fatalf("expected excess of 95, got %s", excess)
	}
	if !l.Long[0].TotalCostEUR.IsZero() {
		t.Fatalf("expected lot cost reduced to zero, got %s", l.Long[0].TotalCostEUR)
	}
}

// Scenario F from spec §8: §23 boundary at exactly 365 vs 366 days.
func TestSection23Boundary(t *testing.T) {
	l := New(1)
	_ = l.AcquireLong("2022-03-15", d(t, "1"), d(t, "100"), "tx1")
	taxable, err := l.RealizeLong(1, asset.CategoryPrivateSaleAsset, "2023-03-15", d(t, "1"), d(t, "150"))
	if err != nil {
		t.Fatalf("realize: %v", err)
	}
	if taxable[0].HoldingPeriodDays != 365 || !taxable[0].IsWithinSpeculationPeriod {
		t.Fatalf("expected 365-day holding to be within the speculation period, got days=%d within=%v",
			taxable[0].HoldingPeriodDays, taxable[0].IsWithinSpeculationPeriod)
	}

	l2 := New(2)
	_ = l2.AcquireLong("2022-03-15", d(t, "1"), d(t, "100"), "tx2")
	exempt, err := l2.RealizeLong(2, asset.CategoryPrivateSaleAsset, "2023-03-16", d(t, "1"), d(t, "150"))
	if err != nil {
		t.Fatalf("realize: %v", err)
	}
	if exempt[0].HoldingPeriodDays != 366 || exempt[0].IsWithinSpeculationPeriod {
		t.Fatalf("expected 366-day holding to be exempt, got days=%d within=%v",
			exempt[0].HoldingPeriodDays, exempt[0].IsWithinSpeculationPeriod)
	}
}

// Scenario C from spec §8: Stillhalter income on a worthless short expiry.
func TestExpireShortWorthless_FlagsStillhalterIncome(t *testing.T) {
	l := New(1)
	_ = l.OpenShort("2023-04-14", d(t, "1"), d(t, "200"), "tx1")
	rgls := l.ExpireShortWorthless(5, asset.CategoryOption, "2023-04-21")
	if len(rgls) != 1 {
		t.Fatalf("expected 1 realization, got %d", len(rgls))
	}
	if !rgls[0].IsStillhalterIncome {
		t.Fatalf("expected stillhalter income flag")
	}
	if !rgls[0].GrossGainLossEUR.Equal(d(t, "200")) {
		t.Fatalf("expected gain 200, got %s", rgls[0].GrossGainLossEUR)
	}
	if len(l.Short) != 0 {
		t.Fatalf("expected short ledger cleared")
	}
}
