// Package corpaction implements the lot-transform rules spec §4.4 assigns to
// each corporate-action type: forward split, cash merger, stock dividend,
// capital repayment, and the dividend-rights (DI/ED) re-attribution. Each
// processor operates on a single asset's ledger.Ledger and returns whatever
// realizations or synthetic income the transform produces; the caller
// (pipeline) is responsible for routing that income into the aggregator.
package corpaction

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/asset"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/event"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/ledger"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/logger"
)

// Result bundles everything a corporate-action transform can produce beyond
// mutating the ledger in place.
type Result struct {
	Realizations []ledger.RealizedGainLoss
	// OtherIncomeEUR feeds kap_other_income_positive (spec §4.7): FMV income
	// from a taxable stock dividend, or the excess of a capital repayment
	// over the remaining cost basis.
	OtherIncomeEUR decimal.Decimal
	// SkippedReceivableSymbol is set when ApplyStockDividend dropped a
	// broker-internal ".REC" row, so the caller can record spec §7's
	// skipped-receivable-row warning against the real symbol.
	SkippedReceivableSymbol string
}

// ApplyForwardSplit implements spec §4.4's split transform. Non-taxable;
// produces no realizations.
func ApplyForwardSplit(l *ledger.Ledger, ratio decimal.Decimal) {
	l.ApplySplit(ratio)
}

// ApplyCashMerger treats every long lot as sold at cashPerShareEUR and
// clears the ledger, per spec §4.4.
func ApplyCashMerger(l *ledger.Ledger, eventID int64, cat asset.Category, date string, cashPerShareEUR decimal.Decimal) Result {
	return Result{Realizations: l.CashMerger(eventID, cat, date, cashPerShareEUR)}
}

// ApplyStockDividend appends a new long lot for the received shares and
// reports the FMV income spec §4.7 attributes to kap_other_income_positive.
// symbol is the row's own symbol (not the underlying's); broker-internal
// receivable rows carrying the ".REC" suffix are skipped with a warning
// per spec §4.4/§7.
func ApplyStockDividend(l *ledger.Ledger, date string, qNew, fmvEUR decimal.Decimal, symbol, sourceTxID string) Result {
	if strings.HasSuffix(symbol, ".REC") {
		logger.L.Warn("corpaction: skipping broker-internal receivable row", "symbol", symbol)
		return Result{SkippedReceivableSymbol: symbol}
	}
	l.AppendStockDividendLot(date, qNew, fmvEUR, sourceTxID)
	return Result{OtherIncomeEUR: qNew.Mul(fmvEUR)}
}

// ApplyCapitalRepayment reduces the oldest lots' cost basis by amountEUR,
// returning whatever excess spills over into taxable income per spec §4.4's
// capital-repayment rule (demonstrated by Scenario E in spec §8).
func ApplyCapitalRepayment(l *ledger.Ledger, amountEUR decimal.Decimal) Result {
	excess := l.ReduceCostForCapitalRepayment(amountEUR)
	return Result{OtherIncomeEUR: excess}
}

// DividendRightPair is a matched DI (dividend rights issued) / ED (dividend
// rights expired, with cash) pair, spec §4.4's last transform. The two legs
// share the phantom rights instrument's own broker symbol (its CAActionID
// differs between issuance and expiry, so that can't be the key); the spec
// extracts the underlying instrument from the DI description, and this
// package looks for the underlying's own symbol as a substring of that
// description, which is how the teacher's CA descriptions name the parent
// instrument.
type DividendRightPair struct {
	DIEvent           *event.Event
	EDEvent           *event.Event
	UnderlyingAssetID int64
}

// MatchDividendRights pairs each DI event with its ED counterpart by shared
// CASymbol — the phantom rights instrument's own symbol, carried by both
// legs even though their CAActionID values differ — and resolves the
// underlying via a symbol-to-asset lookup against the DI's description. A DI
// with no matching ED, or whose description names no known symbol, is
// reported as unmatched so the caller can record spec §7's
// unmatched-dividend-right diagnostic.
func MatchDividendRights(diEvents, edEvents []*event.Event, symbolToAssetID map[string]int64) ([]DividendRightPair, []*event.Event) {
	var pairs []DividendRightPair
	var unmatched []*event.Event

	edUsed := make([]bool, len(edEvents))
	for _, di := range diEvents {
		underlying, ok := findUnderlyingInDescription(di.CADescription, symbolToAssetID)
		if !ok {
			unmatched = append(unmatched, di)
			continue
		}
		var matched *event.Event
		for i, ed := range edEvents {
			if edUsed[i] || ed.CASymbol != di.CASymbol {
				continue
			}
			matched = ed
			edUsed[i] = true
			break
		}
		if matched == nil {
			unmatched = append(unmatched, di)
			continue
		}
		pairs = append(pairs, DividendRightPair{DIEvent: di, EDEvent: matched, UnderlyingAssetID: underlying})
	}
	for i, ed := range edEvents {
		if !edUsed[i] {
			unmatched = append(unmatched, ed)
		}
	}
	return pairs, unmatched
}

func findUnderlyingInDescription(desc string, symbolToAssetID map[string]int64) (int64, bool) {
	for symbol, id := range symbolToAssetID {
		if symbol == "" {
			continue
		}
		if strings.Contains(desc, symbol) {
			return id, true
		}
	}
	return 0, false
}
