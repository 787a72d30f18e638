// Package ledger implements the per-asset FIFO lot accounting of spec §4.4:
// acquisition, realization, corporate-action transforms, and the long/short
// mutual-exclusion invariant.
package ledger

import "github.com/shopspring/decimal"

// FifoLot is a long-position acquisition record (spec §3). The invariant
// |unit_cost×remaining_qty − total_cost| ≤ max(1,remaining_qty)×10⁻⁶ is
// maintained by always re-deriving TotalCostEUR from UnitCostEUR after any
// partial consumption (spec §4.4's consistency-check rule), never the other
// way around.
type FifoLot struct {
	AcquisitionDate    string // YYYY-MM-DD, may be the SOY sentinel date
	RemainingQty       decimal.Decimal
	UnitCostEUR        decimal.Decimal
	TotalCostEUR        decimal.Decimal
	SourceTransactionID string
}

// reprice re-derives TotalCostEUR from UnitCostEUR and the current remaining
// quantity, per spec §4.4's "per-unit cost is the invariant" rule.
func (l *FifoLot) reprice() {
	l.TotalCostEUR = l.UnitCostEUR.Mul(l.RemainingQty)
}

// ShortFifoLot is the short-position analogue: an opening sale whose
// proceeds must eventually be matched against a buy-to-cover.
type ShortFifoLot struct {
	OpeningDate         string
	RemainingQty        decimal.Decimal // positive magnitude
	UnitProceedsEUR      decimal.Decimal
	TotalProceedsEUR     decimal.Decimal
	SourceTransactionID string
}

func (l *ShortFifoLot) reprice() {
	l.TotalProceedsEUR = l.UnitProceedsEUR.Mul(l.RemainingQty)
}

// applySplit implements spec §4.4's forward-split lot transform: quantity
// scales by r, unit cost scales by 1/r, total cost is unchanged (property 3
// in spec §8).
func (l *FifoLot) applySplit(r decimal.Decimal) {
	l.RemainingQty = l.RemainingQty.Mul(r)
	if !r.IsZero() {
		l.UnitCostEUR = l.UnitCostEUR.Div(r)
	}
	l.reprice()
}

func (l *ShortFifoLot) applySplit(r decimal.Decimal) {
	l.RemainingQty = l.RemainingQty.Mul(r)
	if !r.IsZero() {
		l.UnitProceedsEUR = l.UnitProceedsEUR.Div(r)
	}
	l.reprice()
}
