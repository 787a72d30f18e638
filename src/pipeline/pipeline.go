package pipeline

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/asset"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/corpaction"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/event"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/fx"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/ledger"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/logger"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/option"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/soy"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/tax"
)

// Config is the subset of the engine config (spec §6) the orchestration
// itself consumes; precision/rounding knobs live in the money package and
// are applied at the tax package's reporting boundary.
type Config struct {
	TaxYear                              int
	EOYQuantityTolerance                 decimal.Decimal
	ApplyConceptualDerivativeLossCapping bool
}

// Input is everything Run needs: asset-resolved, not-yet-linked events, the
// asset map they reference (for category/fund-type/SOY-EOY lookups), the
// config, and the injected FxRateProvider (spec §9: the core never
// constructs one).
type Input struct {
	Events     []*event.Event
	Assets     map[int64]*asset.Asset
	Config     Config
	FxProvider fx.Provider
}

// RunReport is the audit-grade per-run output spec §1 calls for.
type RunReport struct {
	Realizations         []ledger.RealizedGainLoss
	KAP                  tax.KAPLines
	KAPINV               []tax.KAPINVLine
	SO                   tax.SOLines
	FundIncomeNetTaxable decimal.Decimal
	ConceptualNet        tax.ConceptualNetSummary
	Critical             []CriticalError
	Warnings             []Warning
}

// Run executes the full dataflow of spec §2: link → enrich → sort →
// dispatch through per-asset FIFO ledgers → aggregate. It returns a
// *FatalError (wrapped) on any abort condition from spec §7, never a bare
// error from elsewhere in the pipeline.
func Run(in Input) (*RunReport, error) {
	var critical []CriticalError
	var warnings []Warning

	lookup := func(id int64) (*asset.Asset, bool) { a, ok := in.Assets[id]; return a, ok }

	optionEvents, stockCandidates := splitLinkCandidates(in.Events)
	unmatched, duplicateKeys := option.Link(optionEvents, stockCandidates, lookup)
	for _, u := range unmatched {
		logger.L.Warn("pipeline: unmatched option-to-stock candidate", "event_id", u.ID, "asset_id", u.AssetID)
		critical = append(critical, CriticalError{Kind: CriticalUnmatchedOptionLink, AssetID: u.AssetID, Detail: fmt.Sprintf("event %d had no matching option leg", u.ID)})
	}
	for _, dup := range duplicateKeys {
		warnings = append(warnings, Warning{Kind: WarnDuplicateLinkerKey, AssetID: dup.AssetID, Detail: fmt.Sprintf("event %d superseded event %d: %s", dup.LaterEventID, dup.EarlierEventID, dup.Detail)})
	}

	if err := fx.EnrichAll(in.FxProvider, in.Events); err != nil {
		return nil, &FatalError{Cause: err}
	}

	events, dividendRightCritical := rewriteDividendRights(in.Events, in.Assets)
	critical = append(critical, dividendRightCritical...)
	in.Events = events

	categoryOf := func(id int64) string {
		if a, ok := in.Assets[id]; ok {
			return string(a.Category)
		}
		return ""
	}
	symbolOf := func(id int64) string {
		if a, ok := in.Assets[id]; ok {
			if c, ok2 := a.Conid(); ok2 {
				return c
			}
			return a.Description
		}
		return ""
	}
	event.PrepareSortKeys(in.Events, categoryOf, symbolOf)
	event.Sort(in.Events)

	ledgers := make(map[int64]*ledger.Ledger)
	getLedger := func(id int64) *ledger.Ledger {
		l, ok := ledgers[id]
		if !ok {
			l = ledger.New(id)
			ledgers[id] = l
		}
		return l
	}

	taxYearStart := time.Date(in.Config.TaxYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	eventsByAsset := make(map[int64][]*event.Event)
	for _, e := range in.Events {
		eventsByAsset[e.AssetID] = append(eventsByAsset[e.AssetID], e)
	}
	for id, a := range in.Assets {
		if !a.SOY.Present {
			continue
		}
		var preEvents []*event.Event
		for _, e := range eventsByAsset[id] {
			if e.Date.Before(taxYearStart) {
				preEvents = append(preEvents, e)
			}
		}
		l, outcome, err := ReconstructSOY(in.Config.TaxYear, a, preEvents, in.FxProvider)
		if err != nil {
			return nil, &FatalError{AssetID: id, Cause: err}
		}
		ledgers[id] = l
		if !outcome.UsedSimulation {
			critical = append(critical, CriticalError{Kind: CriticalSOYReconstructionFallback, AssetID: id, Detail: outcome.FallbackReason})
			if !a.SOY.CostBasisKnown {
				warnings = append(warnings, Warning{Kind: WarnZeroCostSOYFallback, AssetID: id, Detail: "SOY cost basis unknown, synthetic lot booked at zero cost"})
			}
		}
	}

	pending := option.PendingAdjustments{}
	aggregator := tax.New(in.Config.TaxYear, in.Config.ApplyConceptualDerivativeLossCapping)
	var allRealizations []ledger.RealizedGainLoss

	recordRealizations := func(rgls []ledger.RealizedGainLoss, ft asset.FundType) {
		for _, r := range rgls {
			aggregator.AddRealization(r, ft)
			allRealizations = append(allRealizations, r)
		}
	}

	for _, e := range in.Events {
		if e.Date.Before(taxYearStart) || e.Date.Year() > in.Config.TaxYear {
			// Pre-tax-year events were already folded into SOY reconstruction
			// above; post-tax-year events are out of scope (spec §7 item 7).
			continue
		}
		a, ok := in.Assets[e.AssetID]
		if !ok {
			continue
		}
		l := getLedger(e.AssetID)
		dateStr := e.Date.Format("2006-01-02")

		switch e.Type {
		case event.TradeBuyLong:
			if e.HasRelatedOptionEvent {
				if err := option.FoldIntoStockTrade(e, pending); err != nil {
					return nil, &FatalError{EventID: e.ID, AssetID: e.AssetID, LedgerState: "n/a", Cause: err}
				}
			}
			if err := l.AcquireLong(dateStr, e.Quantity, perUnit(e.NetEUR, e.Quantity), sourceID(e)); err != nil {
				return nil, &FatalError{EventID: e.ID, AssetID: e.AssetID, Cause: err}
			}

		case event.TradeSellShortOpen:
			if err := l.OpenShort(dateStr, e.Quantity, perUnit(e.NetEUR, e.Quantity), sourceID(e)); err != nil {
				return nil, &FatalError{EventID: e.ID, AssetID: e.AssetID, Cause: err}
			}

		case event.TradeSellLong:
			if e.HasRelatedOptionEvent {
				if err := option.FoldIntoStockTrade(e, pending); err != nil {
					return nil, &FatalError{EventID: e.ID, AssetID: e.AssetID, LedgerState: "n/a", Cause: err}
				}
			}
			var rgls []ledger.RealizedGainLoss
			var err error
			if a.Category == asset.CategoryOption && !e.HasRelatedOptionEvent {
				rgls, err = option.CloseTrade(l, e.ID, dateStr, e.Quantity, e.NetEUR, true)
			} else {
				rgls, err = l.RealizeLong(e.ID, a.Category, dateStr, e.Quantity, e.NetEUR)
			}
			if err != nil {
				return nil, &FatalError{EventID: e.ID, AssetID: e.AssetID, Cause: err}
			}
			recordRealizations(rgls, a.FundType)

		case event.TradeBuyShortCover:
			if e.HasRelatedOptionEvent {
				if err := option.FoldIntoStockTrade(e, pending); err != nil {
					return nil, &FatalError{EventID: e.ID, AssetID: e.AssetID, LedgerState: "n/a", Cause: err}
				}
			}
			var rgls []ledger.RealizedGainLoss
			var err error
			if a.Category == asset.CategoryOption && !e.HasRelatedOptionEvent {
				rgls, err = option.CloseTrade(l, e.ID, dateStr, e.Quantity, e.NetEUR, false)
			} else {
				rgls, err = l.CoverShort(e.ID, a.Category, dateStr, e.Quantity, e.NetEUR)
			}
			if err != nil {
				return nil, &FatalError{EventID: e.ID, AssetID: e.AssetID, Cause: err}
			}
			recordRealizations(rgls, a.FundType)

		case event.OptionExercise, event.OptionAssignment:
			if err := option.ProcessExerciseOrAssignment(l, e, pending); err != nil {
				return nil, &FatalError{EventID: e.ID, AssetID: e.AssetID, Cause: err}
			}

		case event.OptionExpirationWorthless:
			recordRealizations(option.ExpireWorthless(l, e.ID, dateStr), a.FundType)

		case event.CorpSplitForward:
			corpaction.ApplyForwardSplit(l, e.SplitRatio)

		case event.CorpMergerCash:
			cashEUR, err := rateConvert(in.FxProvider, e)
			if err != nil {
				return nil, &FatalError{EventID: e.ID, AssetID: e.AssetID, Cause: err}
			}
			res := corpaction.ApplyCashMerger(l, e.ID, a.Category, dateStr, cashEUR)
			recordRealizations(res.Realizations, a.FundType)

		case event.CorpStockDividend:
			fmvEUR, err := rateConvertAmount(in.FxProvider, e.Date, e.FMVPerNewShare, e.Currency)
			if err != nil {
				return nil, &FatalError{EventID: e.ID, AssetID: e.AssetID, Cause: err}
			}
			res := corpaction.ApplyStockDividend(l, dateStr, e.NewSharesPerShare, fmvEUR, e.CASymbol, sourceID(e))
			aggregator.AddOtherIncome(res.OtherIncomeEUR)
			if res.SkippedReceivableSymbol != "" {
				warnings = append(warnings, Warning{Kind: WarnSkippedReceivableRow, AssetID: e.AssetID, Detail: fmt.Sprintf("skipped broker-internal receivable row %s (event %d)", res.SkippedReceivableSymbol, e.ID)})
			}

		case event.CapitalRepayment:
			res := corpaction.ApplyCapitalRepayment(l, e.GrossAmountEUR)
			aggregator.AddOtherIncome(res.OtherIncomeEUR)

		case event.CorpMergerStock:
			logger.L.Warn("pipeline: stock-for-stock merger encountered, lot conversion is out of scope", "asset_id", e.AssetID, "event_id", e.ID)
			critical = append(critical, CriticalError{Kind: CriticalStockForStockMerger, AssetID: e.AssetID, Detail: fmt.Sprintf("event %d", e.ID)})

		case event.CorpDividendRightsIssued, event.CorpExpireDividendRights:
			// Matched pairs are resolved by rewriteDividendRights before this
			// loop runs: the DI/ED legs themselves are dropped from the event
			// stream and their cash is re-attributed to the underlying as a
			// synthetic CAPITAL_REPAYMENT event. An event surviving to here
			// under one of these two types was unmatched (already reported
			// via CriticalUnmatchedDividendRight) and carries no further
			// ledger effect of its own.

		case event.DividendCash, event.DistributionFund:
			if a.Category == asset.CategoryInvestmentFund {
				aggregator.AddFundDistribution(dateStr, a.FundType, e.GrossAmountEUR)
			} else {
				aggregator.AddOtherIncome(e.GrossAmountEUR)
			}

		case event.InterestReceived:
			aggregator.AddOtherIncome(e.GrossAmountEUR)

		case event.InterestPaidStueckzinsen:
			aggregator.AddOtherLoss(e.GrossAmountEUR)

		case event.WithholdingTax:
			aggregator.AddWithholdingTax(dateStr, e.GrossAmountEUR)

		case event.FeeTransaction, event.CurrencyConversion:
			// Fee-line allocation and FX-pair bookkeeping are outside the
			// aggregator's scope (spec §1 Non-goals); already enriched above.
		}
	}

	critical = append(critical, checkEOY(in, ledgers)...)

	return &RunReport{
		Realizations:         allRealizations,
		KAP:                  aggregator.RenderKAP(),
		KAPINV:                aggregator.RenderKAPINV(),
		SO:                    aggregator.RenderSO(),
		FundIncomeNetTaxable: aggregator.FundIncomeNetTaxable(),
		ConceptualNet:        aggregator.RenderConceptualNetSummary(),
		Critical:              critical,
		Warnings:              warnings,
	}, nil
}

// rewriteDividendRights implements spec §4.4's DI/ED re-attribution: a
// matched pair's phantom rights instrument drops out of independent lot
// creation entirely, and the cash its expiry paid out is redirected as a
// capital-repayment-style cost-basis reduction against the underlying
// instead of being reported as ordinary dividend income. Legs that can't be
// paired (no resolvable underlying, or no counterpart leg at all) are left
// untouched — they fall through to ordinary DIVIDEND_CASH handling, the
// conservative outcome — and reported via CriticalUnmatchedDividendRight.
func rewriteDividendRights(events []*event.Event, assets map[int64]*asset.Asset) ([]*event.Event, []CriticalError) {
	var diEvents, edEvents []*event.Event
	for _, e := range events {
		switch e.Type {
		case event.CorpDividendRightsIssued:
			diEvents = append(diEvents, e)
		case event.CorpExpireDividendRights:
			edEvents = append(edEvents, e)
		}
	}
	if len(diEvents) == 0 && len(edEvents) == 0 {
		return events, nil
	}

	symbolToAssetID := make(map[string]int64)
	for id, a := range assets {
		if sym, ok := a.Symbol(); ok {
			symbolToAssetID[sym] = id
		}
	}

	pairs, unmatchedLegs := corpaction.MatchDividendRights(diEvents, edEvents, symbolToAssetID)

	var critical []CriticalError
	for _, leg := range unmatchedLegs {
		logger.L.Warn("pipeline: unmatched dividend-rights leg", "event_id", leg.ID, "asset_id", leg.AssetID, "ca_symbol", leg.CASymbol)
		critical = append(critical, CriticalError{Kind: CriticalUnmatchedDividendRight, AssetID: leg.AssetID, Detail: fmt.Sprintf("event %d (%s) had no matching counterpart leg", leg.ID, leg.CASymbol)})
	}

	drop := make(map[int64]bool)
	phantomToUnderlying := make(map[int64]int64)
	for _, p := range pairs {
		drop[p.DIEvent.ID] = true
		drop[p.EDEvent.ID] = true
		phantomToUnderlying[p.EDEvent.AssetID] = p.UnderlyingAssetID
	}

	rewritten := make([]*event.Event, 0, len(events))
	for _, e := range events {
		if drop[e.ID] {
			continue
		}
		if underlying, ok := phantomToUnderlying[e.AssetID]; ok && e.Type == event.DividendCash {
			repayment := *e
			repayment.AssetID = underlying
			repayment.Type = event.CapitalRepayment
			rewritten = append(rewritten, &repayment)
			continue
		}
		rewritten = append(rewritten, e)
	}
	return rewritten, critical
}

func splitLinkCandidates(events []*event.Event) (optionEvents, stockCandidates []*event.Event) {
	for _, e := range events {
		switch {
		case e.Type == event.OptionExercise || e.Type == event.OptionAssignment:
			optionEvents = append(optionEvents, e)
		case e.Type.IsTrade() && event.IsOptionLinkCandidate(e.Notes):
			stockCandidates = append(stockCandidates, e)
		}
	}
	return
}

func perUnit(total, qty decimal.Decimal) decimal.Decimal {
	if qty.IsZero() {
		return decimal.Zero
	}
	return total.Div(qty)
}

func sourceID(e *event.Event) string {
	if e.BrokerTxID != "" {
		return e.BrokerTxID
	}
	return fmt.Sprintf("EVENT:%d", e.ID)
}

func rateConvert(p fx.Provider, e *event.Event) (decimal.Decimal, error) {
	return rateConvertAmount(p, e.Date, e.CashPerShare, e.Currency)
}

func rateConvertAmount(p fx.Provider, day time.Time, amount decimal.Decimal, ccy string) (decimal.Decimal, error) {
	if ccy == "" || ccy == "EUR" {
		return amount, nil
	}
	rate, err := p.Rate(day, ccy)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Div(rate), nil
}

// checkEOY implements spec §4.6's EOY validation: every ledger's net
// quantity must match its reported eoy_quantity within tolerance; assets
// absent from the EOY snapshot have an authoritative eoy_quantity of 0.
func checkEOY(in Input, ledgers map[int64]*ledger.Ledger) []CriticalError {
	var out []CriticalError
	for id, a := range in.Assets {
		l, ok := ledgers[id]
		netQty := decimal.Zero
		if ok {
			netQty = l.NetQuantity()
		}
		expected := decimal.Zero
		if a.EOY.Present {
			expected = a.EOY.Quantity
		}
		diff := netQty.Sub(expected).Abs()
		if diff.GreaterThan(in.Config.EOYQuantityTolerance) {
			out = append(out, CriticalError{
				Kind:    CriticalEOYQuantityMismatch,
				AssetID: id,
				Detail:  fmt.Sprintf("ledger qty %s vs expected %s (diff %s)", netQty, expected, diff),
			})
		}
	}
	return out
}

// ReconstructSOY runs spec §4.6's historical-simulation-with-fallback for
// one asset ahead of the main Run: preEvents is that asset's own events
// dated before the tax year, already sorted.
func ReconstructSOY(taxYear int, a *asset.Asset, preEvents []*event.Event, fxProvider fx.Provider) (*ledger.Ledger, soy.Outcome, error) {
	simulated := ledger.New(a.Id)
	underflow := false

	for _, e := range preEvents {
		dateStr := e.Date.Format("2006-01-02")
		switch e.Type {
		case event.TradeBuyLong:
			_ = simulated.AcquireLong(dateStr, e.Quantity, perUnit(e.NetEUR, e.Quantity), sourceID(e))
		case event.TradeSellShortOpen:
			_ = simulated.OpenShort(dateStr, e.Quantity, perUnit(e.NetEUR, e.Quantity), sourceID(e))
		case event.TradeSellLong:
			if _, err := simulated.RealizeLong(e.ID, a.Category, dateStr, e.Quantity, e.NetEUR); err != nil {
				underflow = true
			}
		case event.TradeBuyShortCover:
			if _, err := simulated.CoverShort(e.ID, a.Category, dateStr, e.Quantity, e.NetEUR); err != nil {
				underflow = true
			}
		case event.CorpSplitForward:
			simulated.ApplySplit(e.SplitRatio)
		case event.CorpStockDividend:
			fmvEUR, err := rateConvertAmount(fxProvider, e.Date, e.FMVPerNewShare, e.Currency)
			if err != nil {
				underflow = true
				continue
			}
			simulated.AppendStockDividendLot(dateStr, e.NewSharesPerShare, fmvEUR, sourceID(e))
		}
	}

	costBasisEUR := decimal.Zero
	if a.SOY.CostBasisKnown {
		sentinel, err := event.ParseEventDate(soy.SentinelDate(taxYear))
		if err != nil {
			return nil, soy.Outcome{}, err
		}
		costBasisEUR, err = rateConvertAmount(fxProvider, sentinel, a.SOY.CostBasisAmount, a.SOY.CostBasisCcy)
		if err != nil {
			return nil, soy.Outcome{}, err
		}
	}
	snap := soy.Snapshot{
		Quantity:       a.SOY.Quantity,
		CostBasisKnown: a.SOY.CostBasisKnown,
		CostBasisEUR:   costBasisEUR,
	}
	target := ledger.New(a.Id)
	outcome := soy.ReconstructLong(target, simulated, snap, taxYear, underflow)
	return target, outcome, nil
}
