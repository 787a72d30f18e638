package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/asset"
)

// UnderflowError is the fatal error spec §7 names for an attempt to consume
// more quantity than a ledger holds. It carries the context the spec
// requires: asset id and the ledger state snapshot at the moment of failure.
type UnderflowError struct {
	AssetID     int64
	Requested   decimal.Decimal
	Available   decimal.Decimal
	LedgerState string
}

func (e *UnderflowError) Error() string {
	return fmt.Sprintf("ledger: fifo underflow on asset %d: requested %s, only %s available (%s)",
		e.AssetID, e.Requested, e.Available, e.LedgerState)
}

// Ledger is the per-asset FIFO lot collection of spec §4.4. Long and short
// are mutually exclusive at any instant between events (spec §8 property
// 4): a position transition must fully flatten one side before the other
// opens.
type Ledger struct {
	AssetID int64
	Long    []*FifoLot
	Short   []*ShortFifoLot
}

// New creates an empty ledger for assetID.
func New(assetID int64) *Ledger {
	return &Ledger{AssetID: assetID}
}

func (l *Ledger) longQty() decimal.Decimal {
	sum := decimal.Zero
	for _, lot := range l.Long {
		sum = sum.Add(lot.RemainingQty)
	}
	return sum
}

func (l *Ledger) shortQty() decimal.Decimal {
	sum := decimal.Zero
	for _, lot := range l.Short {
		sum = sum.Add(lot.RemainingQty)
	}
	return sum
}

// NetQuantity returns the signed net position: positive for long, negative
// for short.
func (l *Ledger) NetQuantity() decimal.Decimal {
	return l.longQty().Sub(l.shortQty())
}

func (l *Ledger) snapshot() string {
	return fmt.Sprintf("long_lots=%d short_lots=%d long_qty=%s short_qty=%s", len(l.Long), len(l.Short), l.longQty(), l.shortQty())
}

// AcquireLong appends a new long lot (buy-long or buy-to-open, spec §4.4).
func (l *Ledger) AcquireLong(date string, qty, unitCostEUR decimal.Decimal, sourceTxID string) error {
	if len(l.Short) > 0 {
		return fmt.Errorf("ledger: asset %d: cannot open a long lot while short lots remain (%s)", l.AssetID, l.snapshot())
	}
	lot := &FifoLot{AcquisitionDate: date, RemainingQty: qty, UnitCostEUR: unitCostEUR, SourceTransactionID: sourceTxID}
	lot.reprice()
	l.Long = append(l.Long, lot)
	return nil
}

// OpenShort appends a new short lot (sell-short-open, spec §4.4).
func (l *Ledger) OpenShort(date string, qty, unitProceedsEUR decimal.Decimal, sourceTxID string) error {
	if len(l.Long) > 0 {
		return fmt.Errorf("ledger: asset %d: cannot open a short lot while long lots remain (%s)", l.AssetID, l.snapshot())
	}
	lot := &ShortFifoLot{OpeningDate: date, RemainingQty: qty, UnitProceedsEUR: unitProceedsEUR, SourceTransactionID: sourceTxID}
	lot.reprice()
	l.Short = append(l.Short, lot)
	return nil
}

// RealizeLong consumes qty from the head of Long (oldest first), splitting
// totalRealizationValueEUR pro-rata by quantity across however many lots are
// needed (spec §4.4, §8 property 6). Fully consumed lots are removed.
func (l *Ledger) RealizeLong(eventID int64, cat asset.Category, date string, qty, totalRealizationValueEUR decimal.Decimal) ([]RealizedGainLoss, error) {
	if qty.GreaterThan(l.longQty()) {
		return nil, &UnderflowError{AssetID: l.AssetID, Requested: qty, Available: l.longQty(), LedgerState: l.snapshot()}
	}
	unitValue := totalRealizationValueEUR.Div(qty)

	var out []RealizedGainLoss
	remaining := qty
	for remaining.GreaterThan(decimal.Zero) && len(l.Long) > 0 {
		lot := l.Long[0]
		consumed := decimal.Min(lot.RemainingQty, remaining)

		out = append(out, newRealization(eventID, l.AssetID, cat, LongPositionSale, lot.AcquisitionDate, date, consumed, lot.UnitCostEUR, unitValue))

		lot.RemainingQty = lot.RemainingQty.Sub(consumed)
		lot.reprice()
		remaining = remaining.Sub(consumed)
		if lot.RemainingQty.IsZero() {
			l.Long = l.Long[1:]
		}
	}
	return out, nil
}

// ConsumeLongForOption removes qty from the head of Long without emitting
// any RealizedGainLoss, returning the summed cost basis of whatever was
// consumed. Used by the option package's step B (spec §4.5): an option
// exercise/assignment consumes the option's own lots to find the premium to
// fold into the linked stock trade, and explicitly does not produce a
// realization of its own.
func (l *Ledger) ConsumeLongForOption(qty decimal.Decimal) (decimal.Decimal, error) {
	if qty.GreaterThan(l.longQty()) {
		return decimal.Zero, &UnderflowError{AssetID: l.AssetID, Requested: qty, Available: l.longQty(), LedgerState: l.snapshot()}
	}
	total := decimal.Zero
	remaining := qty
	for remaining.GreaterThan(decimal.Zero) && len(l.Long) > 0 {
		lot := l.Long[0]
		consumed := decimal.Min(lot.RemainingQty, remaining)
		total = total.Add(consumed.Mul(lot.UnitCostEUR))
		lot.RemainingQty = lot.RemainingQty.Sub(consumed)
		lot.reprice()
		remaining = remaining.Sub(consumed)
		if lot.RemainingQty.IsZero() {
			l.Long = l.Long[1:]
		}
	}
	return total, nil
}

// ConsumeShortForOption is ConsumeLongForOption's short-side counterpart,
// returning the summed proceeds of the consumed short lots.
func (l *Ledger) ConsumeShortForOption(qty decimal.Decimal) (decimal.Decimal, error) {
	if qty.GreaterThan(l.shortQty()) {
		return decimal.Zero, &UnderflowError{AssetID: l.AssetID, Requested: qty, Available: l.shortQty(), LedgerState: l.snapshot()}
	}
	total := decimal.Zero
	remaining := qty
	for remaining.GreaterThan(decimal.Zero) && len(l.Short) > 0 {
		lot := l.Short[0]
		consumed := decimal.Min(lot.RemainingQty, remaining)
		total = total.Add(consumed.Mul(lot.UnitProceedsEUR))
		lot.RemainingQty = lot.RemainingQty.Sub(consumed)
		lot.reprice()
		remaining = remaining.Sub(consumed)
		if lot.RemainingQty.IsZero() {
			l.Short = l.Short[1:]
		}
	}
	return total, nil
}

// CoverShort consumes qty from the head of Short, symmetric to RealizeLong.
// Per spec §4.4's table, the cost basis is the event's own buy-to-cover
// price (uniform across lots) and the realization value is each consumed
// lot's own unit proceeds from when the short was opened.
func (l *Ledger) CoverShort(eventID int64, cat asset.Category, date string, qty, totalCostEUR decimal.Decimal) ([]RealizedGainLoss, error) {
	if qty.GreaterThan(l.shortQty()) {
		return nil, &UnderflowError{AssetID: l.AssetID, Requested: qty, Available: l.shortQty(), LedgerState: l.snapshot()}
	}
	unitCost := totalCostEUR.Div(qty)

	var out []RealizedGainLoss
	remaining := qty
	for remaining.GreaterThan(decimal.Zero) && len(l.Short) > 0 {
		lot := l.Short[0]
		consumed := decimal.Min(lot.RemainingQty, remaining)

		out = append(out, newRealization(eventID, l.AssetID, cat, ShortPositionCover, lot.OpeningDate, date, consumed, unitCost, lot.UnitProceedsEUR))

		lot.RemainingQty = lot.RemainingQty.Sub(consumed)
		lot.reprice()
		remaining = remaining.Sub(consumed)
		if lot.RemainingQty.IsZero() {
			l.Short = l.Short[1:]
		}
	}
	return out, nil
}

// ExpireLongWorthless consumes every remaining long lot (an expired long
// option) at zero realization value — a full loss of the premium paid.
func (l *Ledger) ExpireLongWorthless(eventID int64, cat asset.Category, date string) []RealizedGainLoss {
	var out []RealizedGainLoss
	for _, lot := range l.Long {
		out = append(out, newRealization(eventID, l.AssetID, cat, OptionExpiredLong, lot.AcquisitionDate, date, lot.RemainingQty, lot.UnitCostEUR, decimal.Zero))
	}
	l.Long = nil
	return out
}

// ExpireShortWorthless consumes every remaining short lot (an expired short
// option) at zero cost to close — the writer keeps the full premium,
// flagged as Stillhalter income per spec §8 Scenario C.
func (l *Ledger) ExpireShortWorthless(eventID int64, cat asset.Category, date string) []RealizedGainLoss {
	var out []RealizedGainLoss
	for _, lot := range l.Short {
		rgl := newRealization(eventID, l.AssetID, cat, OptionExpiredShort, lot.OpeningDate, date, lot.RemainingQty, decimal.Zero, lot.UnitProceedsEUR)
		rgl.IsStillhalterIncome = true
		out = append(out, rgl)
	}
	l.Short = nil
	return out
}

// CashMerger treats every long lot as sold at cashPerShareEUR per unit
// (spec §4.4) and clears the ledger.
func (l *Ledger) CashMerger(eventID int64, cat asset.Category, date string, cashPerShareEUR decimal.Decimal) []RealizedGainLoss {
	var out []RealizedGainLoss
	for _, lot := range l.Long {
		out = append(out, newRealization(eventID, l.AssetID, cat, CashMergerProceeds, lot.AcquisitionDate, date, lot.RemainingQty, lot.UnitCostEUR, cashPerShareEUR))
	}
	l.Long = nil
	return out
}

// ApplySplit implements the forward-split lot transform (spec §4.4): every
// lot's quantity scales by ratio and unit cost scales by 1/ratio, leaving
// total cost unchanged. Applies to whichever side currently holds lots.
func (l *Ledger) ApplySplit(ratio decimal.Decimal) {
	for _, lot := range l.Long {
		lot.applySplit(ratio)
	}
	for _, lot := range l.Short {
		lot.applySplit(ratio)
	}
}

// AppendStockDividendLot adds a new long lot for shares received via a
// stock dividend (spec §4.4): quantity qNew, unit cost fmv, acquisition
// date = event date.
func (l *Ledger) AppendStockDividendLot(date string, qNew, fmvEUR decimal.Decimal, sourceTxID string) {
	lot := &FifoLot{AcquisitionDate: date, RemainingQty: qNew, UnitCostEUR: fmvEUR, SourceTransactionID: sourceTxID}
	lot.reprice()
	l.Long = append(l.Long, lot)
}

// ReduceCostForCapitalRepayment implements spec §4.4's capital-repayment lot
// transform: amountEUR is consumed from the oldest lots' total cost first,
// shrinking each lot's unit cost toward zero before moving to the next.
// Returns the excess that could not be absorbed by any lot's remaining cost.
func (l *Ledger) ReduceCostForCapitalRepayment(amountEUR decimal.Decimal) decimal.Decimal {
	remaining := amountEUR
	for _, lot := range l.Long {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		absorbed := decimal.Min(lot.TotalCostEUR, remaining)
		newTotal := lot.TotalCostEUR.Sub(absorbed)
		if !lot.RemainingQty.IsZero() {
			lot.UnitCostEUR = newTotal.Div(lot.RemainingQty)
		}
		lot.TotalCostEUR = newTotal
		remaining = remaining.Sub(absorbed)
	}
	if remaining.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	return remaining
}
