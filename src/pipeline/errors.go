// Package pipeline orchestrates the full run: construct → enrich → sort →
// dispatch through FIFO ledgers → realize → aggregate (spec §2's dataflow),
// and formalizes spec §7's three-tier error model.
package pipeline

import "fmt"

// FatalError aborts the run. Per spec §7 it must carry the originating
// event's identifiers, the asset id, and a ledger-state snapshot — callers
// construct one from whatever context they have at the point of failure.
type FatalError struct {
	EventID     int64
	AssetID     int64
	LedgerState string
	Cause       error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: event %d asset %d (%s): %v", e.EventID, e.AssetID, e.LedgerState, e.Cause)
}

func (e *FatalError) Unwrap() error { return e.Cause }

// CriticalError is recorded but never aborts the run (spec §7): EOY
// quantity mismatches, unmatched option-to-stock candidates, stock-for-stock
// mergers, SOY reconstruction fallbacks.
type CriticalError struct {
	Kind    string
	AssetID int64
	Detail  string
}

func (e *CriticalError) Error() string {
	return fmt.Sprintf("critical[%s]: asset %d: %s", e.Kind, e.AssetID, e.Detail)
}

// Warning kinds spec §7 names explicitly.
const (
	WarnDuplicateLinkerKey       = "duplicate_linker_key"
	WarnZeroCostSOYFallback      = "zero_cost_soy_fallback"
	WarnDescriptionSourceConflict = "description_source_conflict"
	WarnSkippedReceivableRow     = "skipped_receivable_row"
)

// Critical error kinds spec §7 names explicitly, plus one extension: spec §7
// does not name an "unmatched dividend-right pair" kind, but the transform
// it governs (§4.4's DI/ED re-attribution) can fail to resolve an underlying
// or a counterpart leg the same way an unmatched option link can, so it is
// reported the same way — non-aborting, with the asset and event context a
// reviewer needs to find the row.
const (
	CriticalEOYQuantityMismatch        = "eoy_quantity_mismatch"
	CriticalUnmatchedOptionLink        = "unmatched_option_link"
	CriticalStockForStockMerger        = "stock_for_stock_merger"
	CriticalSOYReconstructionFallback  = "soy_reconstruction_fallback"
	CriticalUnmatchedDividendRight     = "unmatched_dividend_right"
)

// Warning is a non-blocking diagnostic, collected for the run report and
// also logged through logger.L at the point of occurrence.
type Warning struct {
	Kind    string
	AssetID int64
	Detail  string
}
