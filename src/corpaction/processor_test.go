package corpaction

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/asset"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/event"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/ledger"
)

func d(t *testing.T, s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return v
}

func TestApplyCashMerger_ClearsLedgerAndRealizes(t *testing.T) {
	l := ledger.New(1)
	_ = l.AcquireLong("2023-01-01", d(t, "10"), d(t, "5"), "tx1")

	res := ApplyCashMerger(l, 1, asset.CategoryStock, "2023-06-01", d(t, "8"))

	if len(res.Realizations) != 1 {
		t.Fatalf("expected 1 realization, got %d", len(res.Realizations))
	}
	if !res.Realizations[0].GrossGainLossEUR.Equal(d(t, "30")) {
		t.Fatalf("expected gain 30 (10 shares x (8-5)), got %s", res.Realizations[0].GrossGainLossEUR)
	}
	if len(l.Long) != 0 {
		t.Fatalf("expected ledger cleared after cash merger")
	}
}

func TestApplyStockDividend_AddsLotAndIncome(t *testing.T) {
	l := ledger.New(1)
	res := ApplyStockDividend(l, "2023-05-01", d(t, "2"), d(t, "10"), "AAPL", "tx1")

	if len(l.Long) != 1 || !l.Long[0].RemainingQty.Equal(d(t, "2")) {
		t.Fatalf("expected new lot of 2 shares, got %v", l.Long)
	}
	if !res.OtherIncomeEUR.Equal(d(t, "20")) {
		t.Fatalf("expected FMV income of 20, got %s", res.OtherIncomeEUR)
	}
}

func TestApplyStockDividend_SkipsReceivableRows(t *testing.T) {
	l := ledger.New(1)
	res := ApplyStockDividend(l, "2023-05-01", d(t, "2"), d(t, "10"), "AAPL.REC", "tx1")

	if len(l.Long) != 0 {
		t.Fatalf("expected no lot created for a .REC row")
	}
	if !res.OtherIncomeEUR.IsZero() {
		t.Fatalf("expected no income for a skipped .REC row")
	}
	if res.SkippedReceivableSymbol != "AAPL.REC" {
		t.Fatalf("expected skipped receivable symbol AAPL.REC, got %q", res.SkippedReceivableSymbol)
	}
}

func TestMatchDividendRights_PairsBySharedSymbolNotArrayOrder(t *testing.T) {
	// Two concurrent DI/ED pairs for different underlyings, deliberately out
	// of array order, to prove pairing uses CASymbol rather than position.
	diAAPL := &event.Event{ID: 1, AssetID: 10, CASymbol: "AAPL.DIVIR", CADescription: "AAPL DIVIDEND RIGHT"}
	diMSFT := &event.Event{ID: 2, AssetID: 20, CASymbol: "MSFT.DIVIR", CADescription: "MSFT DIVIDEND RIGHT"}
	edMSFT := &event.Event{ID: 3, AssetID: 20, CASymbol: "MSFT.DIVIR"}
	edAAPL := &event.Event{ID: 4, AssetID: 10, CASymbol: "AAPL.DIVIR"}

	symbolToAsset := map[string]int64{"AAPL": 100, "MSFT": 200}

	pairs, unmatched := MatchDividendRights(
		[]*event.Event{diAAPL, diMSFT},
		[]*event.Event{edMSFT, edAAPL},
		symbolToAsset,
	)

	if len(unmatched) != 0 {
		t.Fatalf("expected no unmatched legs, got %v", unmatched)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	for _, p := range pairs {
		switch p.DIEvent.ID {
		case diAAPL.ID:
			if p.EDEvent.ID != edAAPL.ID || p.UnderlyingAssetID != 100 {
				t.Fatalf("AAPL DI cross-wired to wrong ED/underlying: %+v", p)
			}
		case diMSFT.ID:
			if p.EDEvent.ID != edMSFT.ID || p.UnderlyingAssetID != 200 {
				t.Fatalf("MSFT DI cross-wired to wrong ED/underlying: %+v", p)
			}
		default:
			t.Fatalf("unexpected DI event in pairing: %+v", p)
		}
	}
}

func TestMatchDividendRights_UnresolvableUnderlyingIsUnmatched(t *testing.T) {
	di := &event.Event{ID: 1, AssetID: 10, CASymbol: "X.DIVIR", CADescription: "UNKNOWN THING"}
	ed := &event.Event{ID: 2, AssetID: 10, CASymbol: "X.DIVIR"}

	pairs, unmatched := MatchDividendRights([]*event.Event{di}, []*event.Event{ed}, map[string]int64{"AAPL": 1})

	if len(pairs) != 0 {
		t.Fatalf("expected no pairs, got %v", pairs)
	}
	if len(unmatched) != 2 {
		t.Fatalf("expected DI and its unconsumed ED to both be unmatched, got %v", unmatched)
	}
}
