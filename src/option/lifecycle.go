package option

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/asset"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/event"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/ledger"
)

// PendingAdjustment is the premium an exercise/assignment event computed,
// held until the linked stock trade is processed (spec §4.5 step B). Whether
// the option side was long or short decides the sign the stock trade applies
// it with.
type PendingAdjustment struct {
	PremiumEUR    decimal.Decimal
	OptionWasLong bool
}

// PendingAdjustments is the process-local map spec §4.5 names
// ("pending_option_adjustments"), keyed by option event id.
type PendingAdjustments map[int64]PendingAdjustment

// ProcessExerciseOrAssignment consumes the option's own FIFO lots (step B's
// first half) and records the resulting premium in pending. It never
// returns a RealizedGainLoss — exercises/assignments are explicitly excluded
// from realization per spec §4.5.
func ProcessExerciseOrAssignment(l *ledger.Ledger, ev *event.Event, pending PendingAdjustments) error {
	qty := ev.ContractQuantity
	switch {
	case len(l.Long) > 0:
		total, err := l.ConsumeLongForOption(qty)
		if err != nil {
			return fmt.Errorf("option: consuming long option lots for event %d: %w", ev.ID, err)
		}
		pending[ev.ID] = PendingAdjustment{PremiumEUR: total, OptionWasLong: true}
	case len(l.Short) > 0:
		total, err := l.ConsumeShortForOption(qty)
		if err != nil {
			return fmt.Errorf("option: consuming short option lots for event %d: %w", ev.ID, err)
		}
		pending[ev.ID] = PendingAdjustment{PremiumEUR: total, OptionWasLong: false}
	default:
		return fmt.Errorf("option: event %d (asset %d) references an option ledger with no open lots", ev.ID, ev.AssetID)
	}
	return nil
}

// FoldIntoStockTrade applies spec §4.5 step B's second half: it retrieves
// and consumes the pending adjustment for stockTrade.RelatedOptionEventID
// and adjusts stockTrade.NetEUR per the stock-side x option-side table.
// Callers must call this only once NetEUR has already been set by
// enrichment (fx.EnrichEvent runs before this, per pipeline ordering).
func FoldIntoStockTrade(stockTrade *event.Event, pending PendingAdjustments) error {
	if !stockTrade.HasRelatedOptionEvent {
		return nil
	}
	adj, ok := pending[stockTrade.RelatedOptionEventID]
	if !ok {
		return fmt.Errorf("option: stock trade %d references option event %d with no pending adjustment", stockTrade.ID, stockTrade.RelatedOptionEventID)
	}
	delete(pending, stockTrade.RelatedOptionEventID)

	isBuy := stockTrade.Type.IsBuy()
	switch {
	case isBuy && adj.OptionWasLong: // buy stock via long call exercise: cost += premium paid
		stockTrade.NetEUR = stockTrade.NetEUR.Add(adj.PremiumEUR)
	case isBuy && !adj.OptionWasLong: // buy stock via short put assignment: cost -= premium received
		stockTrade.NetEUR = stockTrade.NetEUR.Sub(adj.PremiumEUR)
	case !isBuy && !adj.OptionWasLong: // sell stock via short call assignment: proceeds += premium received
		stockTrade.NetEUR = stockTrade.NetEUR.Add(adj.PremiumEUR)
	default: // sell stock via long put exercise: proceeds -= premium paid
		stockTrade.NetEUR = stockTrade.NetEUR.Sub(adj.PremiumEUR)
	}
	return nil
}

// ExpireWorthless implements spec §4.5's worthless-expiration rule: consume
// every remaining lot of the option (long or short, never both per the
// mutual-exclusion invariant) and emit one RealizedGainLoss per lot.
func ExpireWorthless(l *ledger.Ledger, eventID int64, date string) []ledger.RealizedGainLoss {
	if len(l.Long) > 0 {
		return l.ExpireLongWorthless(eventID, asset.CategoryOption, date)
	}
	return l.ExpireShortWorthless(eventID, asset.CategoryOption, date)
}

// CloseTrade implements spec §4.5's "option closing trade" fallback: a
// normal FIFO realize/cover on the option's own ledger when the trade
// carries no exercise/assignment linkage, tagged with the OPTION_TRADE_CLOSE
// realization types instead of the stock-position ones.
func CloseTrade(l *ledger.Ledger, eventID int64, date string, qty, totalEUR decimal.Decimal, isClosingLong bool) ([]ledger.RealizedGainLoss, error) {
	if isClosingLong {
		rgls, err := l.RealizeLong(eventID, asset.CategoryOption, date, qty, totalEUR)
		for i := range rgls {
			rgls[i].Type = ledger.OptionTradeCloseLong
		}
		return rgls, err
	}
	rgls, err := l.CoverShort(eventID, asset.CategoryOption, date, qty, totalEUR)
	for i := range rgls {
		rgls[i].Type = ledger.OptionTradeCloseShort
	}
	return rgls, err
}
