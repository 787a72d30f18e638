// Package soy implements the start-of-year reconstruction of spec §4.6:
// historical simulation through the FIFO ledger, with a synthetic-lot
// fallback when simulation can't be trusted.
package soy

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/ledger"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/logger"
)

// SentinelDate is the fixed acquisition date spec §9 assigns to a synthetic
// SOY lot: the last day of the year before the configured tax year.
func SentinelDate(taxYear int) string {
	return fmt.Sprintf("%04d-12-31", taxYear-1)
}

// Snapshot is the authoritative SOY position for one asset (spec §4.6.3:
// the snapshot quantity is never contradicted by simulation, only the cost
// basis is resolved from it).
type Snapshot struct {
	Quantity          decimal.Decimal
	CostBasisAmount   decimal.Decimal
	CostBasisKnown    bool
	CostBasisEUR      decimal.Decimal // already FX-converted by the caller when CostBasisKnown
}

// Outcome records which path reconstruction took, for the per-run report.
type Outcome struct {
	UsedSimulation bool
	FallbackReason string // empty when UsedSimulation is true
}

// ReconstructLong applies spec §4.6 to a long-position asset: try the
// caller's already-simulated ledger state first; fall back to a single
// synthetic lot when simulation can't be trusted, zero-cost (with a
// warning) if even the cost basis is unknown.
//
// simulated is the ledger state produced by replaying every pre-tax-year
// event (splits, stock dividends, trades) through a fresh Ledger — that
// replay itself is the caller's responsibility (the pipeline owns event
// ordering); this function only judges whether to accept it.
func ReconstructLong(l *ledger.Ledger, simulated *ledger.Ledger, snap Snapshot, taxYear int, underflowOccurred bool) Outcome {
	if accept(simulated, snap, underflowOccurred) {
		l.Long = simulated.Long
		l.Short = simulated.Short
		// The snapshot quantity is authoritative: any simulated surplus is
		// removed from the oldest lots first.
		if excess := l.NetQuantity().Abs().Sub(snap.Quantity.Abs()); excess.IsPositive() {
			if len(l.Long) > 0 {
				_, _ = l.ConsumeLongForOption(excess)
			} else {
				_, _ = l.ConsumeShortForOption(excess)
			}
		}
		return Outcome{UsedSimulation: true}
	}

	reason := fallbackReason(simulated, snap, underflowOccurred)
	unitCost := decimal.Zero
	if snap.CostBasisKnown && !snap.Quantity.IsZero() {
		unitCost = snap.CostBasisEUR.Div(snap.Quantity)
	} else {
		logger.L.Warn("soy: falling back to zero-cost synthetic lot, cost basis unknown", "quantity", snap.Quantity)
	}
	_ = l.AcquireLong(SentinelDate(taxYear), snap.Quantity, unitCost, "SOY_FALLBACK")
	return Outcome{UsedSimulation: false, FallbackReason: reason}
}

// accept implements spec §4.6 step 1's three acceptance conditions.
func accept(simulated *ledger.Ledger, snap Snapshot, underflowOccurred bool) bool {
	if underflowOccurred {
		return false
	}
	net := simulated.NetQuantity()
	if sign(net) != sign(snap.Quantity) {
		return false
	}
	return net.Abs().GreaterThanOrEqual(snap.Quantity.Abs())
}

func fallbackReason(simulated *ledger.Ledger, snap Snapshot, underflowOccurred bool) string {
	switch {
	case underflowOccurred:
		return "historical simulation underflowed a lot consumption"
	case sign(simulated.NetQuantity()) != sign(snap.Quantity):
		return "simulated net quantity sign disagrees with SOY snapshot"
	default:
		return "simulated net quantity magnitude below SOY snapshot"
	}
}

func sign(d decimal.Decimal) int {
	switch {
	case d.IsPositive():
		return 1
	case d.IsNegative():
		return -1
	default:
		return 0
	}
}
