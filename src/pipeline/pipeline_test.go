package pipeline

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/asset"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/event"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/testutil"
)

func d(t *testing.T, s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return v
}

func TestRun_SimpleStockSaleFeedsKAPZeile20(t *testing.T) {
	a := &asset.Asset{Id: 1, Category: asset.CategoryStock, Aliases: map[string]struct{}{}}
	a.EOY.Present = true
	a.EOY.Quantity = decimal.Zero

	buy := &event.Event{ID: 1, AssetID: 1, Date: testutil.Date(t, "2023-01-01"), Type: event.TradeBuyLong,
		Quantity: d(t, "10"), UnitPriceForeign: d(t, "10"), Currency: "EUR"}
	sell := &event.Event{ID: 2, AssetID: 1, Date: testutil.Date(t, "2023-06-01"), Type: event.TradeSellLong,
		Quantity: d(t, "10"), UnitPriceForeign: d(t, "15"), Currency: "EUR"}

	in := Input{
		Events:     []*event.Event{buy, sell},
		Assets:     map[int64]*asset.Asset{1: a},
		Config:     Config{TaxYear: 2023, EOYQuantityTolerance: d(t, "0.0001")},
		FxProvider: testutil.NewMemoryFxRateProvider(0),
	}

	report, err := Run(in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Critical) != 0 {
		t.Fatalf("expected no critical errors, got %+v", report.Critical)
	}
	if !report.KAP.Zeile20.Equal(d(t, "50.00")) {
		t.Fatalf("expected Zeile20 = 50.00, got %s", report.KAP.Zeile20)
	}
	if len(report.Realizations) != 1 {
		t.Fatalf("expected 1 realization, got %d", len(report.Realizations))
	}
}

func TestRun_EOYQuantityMismatchIsCritical(t *testing.T) {
	a := &asset.Asset{Id: 1, Category: asset.CategoryStock, Aliases: map[string]struct{}{}}
	a.EOY.Present = true
	a.EOY.Quantity = d(t, "5")

	buy := &event.Event{ID: 1, AssetID: 1, Date: testutil.Date(t, "2023-01-01"), Type: event.TradeBuyLong,
		Quantity: d(t, "10"), NetEUR: d(t, "100")}

	in := Input{
		Events:     []*event.Event{buy},
		Assets:     map[int64]*asset.Asset{1: a},
		Config:     Config{TaxYear: 2023, EOYQuantityTolerance: d(t, "0.0001")},
		FxProvider: testutil.NewMemoryFxRateProvider(0),
	}

	report, err := Run(in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Critical) != 1 || report.Critical[0].Kind != CriticalEOYQuantityMismatch {
		t.Fatalf("expected one eoy_quantity_mismatch critical error, got %+v", report.Critical)
	}
}

func TestRun_DividendRightsReattributeCashToUnderlyingCostBasis(t *testing.T) {
	underlying := &asset.Asset{Id: 1, Category: asset.CategoryStock, Aliases: map[string]struct{}{"SYMBOL:LEG": {}}}
	underlying.EOY.Present = true
	underlying.EOY.Quantity = decimal.Zero
	phantom := &asset.Asset{Id: 2, Category: asset.CategoryUnknown, Aliases: map[string]struct{}{"SYMBOL:LEG.DIVIR": {}}}

	buy := &event.Event{ID: 1, AssetID: 1, Date: testutil.Date(t, "2023-01-01"), Type: event.TradeBuyLong,
		Quantity: d(t, "10"), UnitPriceForeign: d(t, "10"), Currency: "EUR"}
	di := &event.Event{ID: 2, AssetID: 2, Date: testutil.Date(t, "2023-02-01"), Type: event.CorpDividendRightsIssued,
		CASymbol: "LEG.DIVIR", CADescription: "LEG DIVIDEND RIGHT ISSUE"}
	ed := &event.Event{ID: 3, AssetID: 2, Date: testutil.Date(t, "2023-03-01"), Type: event.CorpExpireDividendRights,
		CASymbol: "LEG.DIVIR"}
	cash := &event.Event{ID: 4, AssetID: 2, Date: testutil.Date(t, "2023-03-01"), Type: event.DividendCash,
		GrossAmountForeign: d(t, "30"), Currency: "EUR"}
	sell := &event.Event{ID: 5, AssetID: 1, Date: testutil.Date(t, "2023-06-01"), Type: event.TradeSellLong,
		Quantity: d(t, "10"), UnitPriceForeign: d(t, "10"), Currency: "EUR"}

	in := Input{
		Events:     []*event.Event{buy, di, ed, cash, sell},
		Assets:     map[int64]*asset.Asset{1: underlying, 2: phantom},
		Config:     Config{TaxYear: 2023, EOYQuantityTolerance: d(t, "0.0001")},
		FxProvider: testutil.NewMemoryFxRateProvider(0),
	}

	report, err := Run(in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, c := range report.Critical {
		if c.Kind == CriticalUnmatchedDividendRight {
			t.Fatalf("expected the DI/ED pair to match, got unmatched critical error: %+v", c)
		}
	}
	if len(report.Realizations) != 1 {
		t.Fatalf("expected 1 realization on the underlying, got %d", len(report.Realizations))
	}
	// Cost basis 100 (10 x 10) reduced by the re-attributed 30 EUR ED cash to
	// 70; sale proceeds 100 yield a gain of 30, not the un-reattributed 0.
	if !report.Realizations[0].GrossGainLossEUR.Equal(d(t, "30")) {
		t.Fatalf("expected realized gain 30 after cost-basis reduction, got %s", report.Realizations[0].GrossGainLossEUR)
	}
	if !report.KAP.Zeile20.Equal(d(t, "30.00")) {
		t.Fatalf("expected Zeile20 = 30.00, got %s", report.KAP.Zeile20)
	}
}

func TestRun_UnmatchedDividendRightIsCritical(t *testing.T) {
	phantom := &asset.Asset{Id: 1, Category: asset.CategoryUnknown, Aliases: map[string]struct{}{"SYMBOL:X.DIVIR": {}}}

	di := &event.Event{ID: 1, AssetID: 1, Date: testutil.Date(t, "2023-02-01"), Type: event.CorpDividendRightsIssued,
		CASymbol: "X.DIVIR", CADescription: "NO KNOWN UNDERLYING HERE"}

	in := Input{
		Events:     []*event.Event{di},
		Assets:     map[int64]*asset.Asset{1: phantom},
		Config:     Config{TaxYear: 2023, EOYQuantityTolerance: d(t, "0.0001")},
		FxProvider: testutil.NewMemoryFxRateProvider(0),
	}

	report, err := Run(in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	found := false
	for _, c := range report.Critical {
		if c.Kind == CriticalUnmatchedDividendRight {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an unmatched_dividend_right critical error, got %+v", report.Critical)
	}
}

func TestRun_SOYReconstructionSeedsLedgerFromPriorYearTrades(t *testing.T) {
	a := &asset.Asset{Id: 1, Category: asset.CategoryStock, Aliases: map[string]struct{}{}}
	a.SOY.Present = true
	a.SOY.Quantity = d(t, "10")
	a.EOY.Present = true
	a.EOY.Quantity = decimal.Zero

	priorBuy := &event.Event{ID: 1, AssetID: 1, Date: testutil.Date(t, "2022-01-01"), Type: event.TradeBuyLong,
		Quantity: d(t, "10"), UnitPriceForeign: d(t, "10"), Currency: "EUR"}
	sell := &event.Event{ID: 2, AssetID: 1, Date: testutil.Date(t, "2023-06-01"), Type: event.TradeSellLong,
		Quantity: d(t, "10"), UnitPriceForeign: d(t, "15"), Currency: "EUR"}

	in := Input{
		Events:     []*event.Event{priorBuy, sell},
		Assets:     map[int64]*asset.Asset{1: a},
		Config:     Config{TaxYear: 2023, EOYQuantityTolerance: d(t, "0.0001")},
		FxProvider: testutil.NewMemoryFxRateProvider(0),
	}

	report, err := Run(in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, c := range report.Critical {
		if c.Kind == CriticalSOYReconstructionFallback {
			t.Fatalf("expected historical simulation to be accepted, got fallback: %+v", c)
		}
	}
	if len(report.Realizations) != 1 {
		t.Fatalf("expected 1 realization from the reconstructed SOY lot, got %d", len(report.Realizations))
	}
	if !report.Realizations[0].GrossGainLossEUR.Equal(d(t, "50")) {
		t.Fatalf("expected gain 50 (10 x (15-10)) from the reconstructed lot, got %s", report.Realizations[0].GrossGainLossEUR)
	}
}

func TestRun_SkippedReceivableRowIsWarning(t *testing.T) {
	a := &asset.Asset{Id: 1, Category: asset.CategoryStock, Aliases: map[string]struct{}{}}
	a.EOY.Present = true
	a.EOY.Quantity = decimal.Zero

	rec := &event.Event{ID: 1, AssetID: 1, Date: testutil.Date(t, "2023-05-01"), Type: event.CorpStockDividend,
		CASymbol: "DEMO.REC", NewSharesPerShare: d(t, "2"), FMVPerNewShare: d(t, "10"), Currency: "EUR"}

	in := Input{
		Events:     []*event.Event{rec},
		Assets:     map[int64]*asset.Asset{1: a},
		Config:     Config{TaxYear: 2023, EOYQuantityTolerance: d(t, "0.0001")},
		FxProvider: testutil.NewMemoryFxRateProvider(0),
	}

	report, err := Run(in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	found := false
	for _, w := range report.Warnings {
		if w.Kind == WarnSkippedReceivableRow {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a skipped_receivable_row warning, got %+v", report.Warnings)
	}
}

func TestRun_UnmatchedOptionLinkIsCritical(t *testing.T) {
	a := &asset.Asset{Id: 1, Category: asset.CategoryStock, Aliases: map[string]struct{}{}}
	a.EOY.Present = true
	a.EOY.Quantity = d(t, "10")

	buy := &event.Event{ID: 1, AssetID: 1, Date: testutil.Date(t, "2023-01-01"), Type: event.TradeBuyLong,
		Quantity: d(t, "10"), NetEUR: d(t, "100"), Notes: "Ex"}

	in := Input{
		Events:     []*event.Event{buy},
		Assets:     map[int64]*asset.Asset{1: a},
		Config:     Config{TaxYear: 2023, EOYQuantityTolerance: d(t, "0.0001")},
		FxProvider: testutil.NewMemoryFxRateProvider(0),
	}

	report, err := Run(in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	found := false
	for _, c := range report.Critical {
		if c.Kind == CriticalUnmatchedOptionLink {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an unmatched_option_link critical error, got %+v", report.Critical)
	}
}
