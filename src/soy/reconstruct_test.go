package soy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/ledger"
)

func d(t *testing.T, s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return v
}

func TestReconstructLong_AcceptsSimulationWhenQuantityMatches(t *testing.T) {
	simulated := ledger.New(1)
	_ = simulated.AcquireLong("2022-06-01", d(t, "10"), d(t, "5"), "hist-tx")

	l := ledger.New(1)
	snap := Snapshot{Quantity: d(t, "10"), CostBasisKnown: true, CostBasisEUR: d(t, "50")}

	outcome := ReconstructLong(l, simulated, snap, 2023, false)

	if !outcome.UsedSimulation {
		t.Fatalf("expected simulation to be accepted, got fallback reason %q", outcome.FallbackReason)
	}
	if len(l.Long) != 1 || !l.Long[0].RemainingQty.Equal(d(t, "10")) {
		t.Fatalf("expected simulated lot carried over, got %v", l.Long)
	}
}

func TestReconstructLong_FallsBackOnUnderflow(t *testing.T) {
	simulated := ledger.New(1)
	_ = simulated.AcquireLong("2022-06-01", d(t, "10"), d(t, "5"), "hist-tx")

	l := ledger.New(1)
	snap := Snapshot{Quantity: d(t, "10"), CostBasisKnown: true, CostBasisEUR: d(t, "50")}

	outcome := ReconstructLong(l, simulated, snap, 2023, true)

	if outcome.UsedSimulation {
		t.Fatalf("expected fallback when an underflow occurred during simulation")
	}
	if len(l.Long) != 1 || l.Long[0].AcquisitionDate != "2022-12-31" {
		t.Fatalf("expected synthetic lot at sentinel date, got %v", l.Long)
	}
}

func TestReconstructLong_FallsBackToZeroCostWhenBasisUnknown(t *testing.T) {
	simulated := ledger.New(1)
	l := ledger.New(1)
	snap := Snapshot{Quantity: d(t, "10"), CostBasisKnown: false}

	outcome := ReconstructLong(l, simulated, snap, 2023, false)

	if outcome.UsedSimulation {
		t.Fatalf("expected fallback: empty simulation has qty 0 < snapshot qty 10")
	}
	if !l.Long[0].UnitCostEUR.IsZero() {
		t.Fatalf("expected zero-cost synthetic lot, got %s", l.Long[0].UnitCostEUR)
	}
}

func TestSentinelDate(t *testing.T) {
	if got := SentinelDate(2023); got != "2022-12-31" {
		t.Fatalf("expected 2022-12-31, got %s", got)
	}
}
