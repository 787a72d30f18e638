package event

import (
	"testing"

	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func TestConstructTradeEvent_BuyOpenIsLong(t *testing.T) {
	ids := NewIDGenerator()
	row := TradeRow{
		IBKRAssetClass: "STK",
		Currency:       "EUR",
		BuySell:        "BUY",
		OpenClose:      "O",
		TradeDate:      "2023-03-01",
		Quantity:       mustDecimal(t, "10"),
		TradePrice:     mustDecimal(t, "100"),
		Commission:     mustDecimal(t, "1"),
	}
	ev, err := ConstructTradeEvent(row, 7, ids)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type != TradeBuyLong {
		t.Fatalf("expected TRADE_BUY_LONG, got %s", ev.Type)
	}
	if !ev.GrossAmountForeign.Equal(mustDecimal(t, "1000")) {
		t.Fatalf("expected gross 1000, got %s", ev.GrossAmountForeign)
	}
	if ev.CommissionCurrency != "EUR" {
		t.Fatalf("expected commission currency to default to trade currency, got %s", ev.CommissionCurrency)
	}
}

func TestConstructTradeEvent_UnknownOpenCloseIsFatal(t *testing.T) {
	ids := NewIDGenerator()
	row := TradeRow{IBKRAssetClass: "STK", BuySell: "BUY", OpenClose: "", TradeDate: "2023-03-01"}
	if _, err := ConstructTradeEvent(row, 1, ids); err == nil {
		t.Fatalf("expected fatal error for missing open/close indicator")
	}
}

func TestConstructTradeEvent_OptionNotesClassifyExerciseAndAssignment(t *testing.T) {
	ids := NewIDGenerator()
	exRow := TradeRow{IBKRAssetClass: "OPT", NotesCodes: "Ex", BuySell: "SELL", OpenClose: "C", TradeDate: "2023-03-01"}
	ev, err := ConstructTradeEvent(exRow, 1, ids)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type != OptionExercise {
		t.Fatalf("expected OPTION_EXERCISE, got %s", ev.Type)
	}

	assignRow := TradeRow{IBKRAssetClass: "OPT", NotesCodes: "A", BuySell: "SELL", OpenClose: "C", TradeDate: "2023-03-01"}
	ev2, err := ConstructTradeEvent(assignRow, 1, ids)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev2.Type != OptionAssignment {
		t.Fatalf("expected OPTION_ASSIGNMENT, got %s", ev2.Type)
	}

	iaRow := TradeRow{IBKRAssetClass: "OPT", NotesCodes: "IA", BuySell: "BUY", OpenClose: "O", TradeDate: "2023-03-01"}
	ev3, err := ConstructTradeEvent(iaRow, 1, ids)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev3.Type != TradeBuyLong {
		t.Fatalf("IA notes must not be read as an assignment, got %s", ev3.Type)
	}
}

func TestSort_CorporateActionsBeforeTradesOnSameDay(t *testing.T) {
	ids := NewIDGenerator()
	trade, _ := ConstructTradeEvent(TradeRow{IBKRAssetClass: "STK", BuySell: "SELL", OpenClose: "C", TradeDate: "2023-06-01"}, 1, ids)
	split, _ := ConstructCorpActionEvent(CorporateActionRow{Type: "FS", Date: "2023-06-01"}, 1, ids)

	events := []*Event{trade, split}
	PrepareSortKeys(events, func(int64) string { return "STOCK" }, func(int64) string { return "AAPL" })
	Sort(events)

	if events[0].Type != CorpSplitForward {
		t.Fatalf("expected split to sort before trade on the same day, got order %v, %v", events[0].Type, events[1].Type)
	}
}

func TestSort_IsDeterministicAcrossRuns(t *testing.T) {
	build := func() []*Event {
		ids := NewIDGenerator()
		a, _ := ConstructTradeEvent(TradeRow{IBKRAssetClass: "STK", BuySell: "BUY", OpenClose: "O", TradeDate: "2023-01-01", BrokerTransactionID: "2"}, 1, ids)
		b, _ := ConstructTradeEvent(TradeRow{IBKRAssetClass: "STK", BuySell: "BUY", OpenClose: "O", TradeDate: "2023-01-01", BrokerTransactionID: "1"}, 1, ids)
		events := []*Event{a, b}
		PrepareSortKeys(events, func(int64) string { return "STOCK" }, func(int64) string { return "" })
		Sort(events)
		return events
	}
	first := build()
	second := build()
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("sort order not deterministic at index %d: %d vs %d", i, first[i].ID, second[i].ID)
		}
	}
	if first[0].BrokerTxID != "1" {
		t.Fatalf("expected lower broker tx id first, got %s", first[0].BrokerTxID)
	}
}
