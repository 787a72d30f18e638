// Package option implements the two-step option-to-stock linker and the
// option lifecycle processing of spec §4.5: step A matches an option
// exercise/assignment event to the stock trade it triggered, before any
// FIFO processing runs; step B folds the option's premium into that stock
// trade's economics while the FIFO pass is in progress.
package option

import (
	"fmt"

	"github.com/uebber/ibkr-german-tax-declaration-engine/src/asset"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/event"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/logger"
)

// AssetLookup resolves the option-contract details the linker needs from an
// asset id, without the option package importing a concrete resolver.
type AssetLookup func(assetID int64) (*asset.Asset, bool)

// linkerKey is the (date, underlying_conid, |expected_qty|) key spec §4.5
// step A.3 defines.
type linkerKey struct {
	date            string
	underlyingConid string
	absQty          string // decimal.Decimal compared via its string form for map-key use
}

// DuplicateLinkerKey records two option candidates that collided on the same
// (date, underlying_conid, |expected_qty|) key (spec §7's duplicate-linker-key
// warning); the later candidate wins and the earlier one is reported here so
// the caller can surface it in the run report.
type DuplicateLinkerKey struct {
	AssetID        int64
	EarlierEventID int64
	LaterEventID   int64
	Detail         string
}

// Link performs step A of spec §4.5: it mutates stockTrades in place,
// setting RelatedOptionEventID on every matched candidate, and returns the
// stock trades that had no matching option candidate (reported by the
// caller as spec §7's "unmatched option-to-stock candidate" critical error)
// alongside any duplicate-linker-key collisions encountered along the way.
func Link(optionEvents []*event.Event, stockTrades []*event.Event, lookup AssetLookup) ([]*event.Event, []DuplicateLinkerKey) {
	candidates := make(map[linkerKey]*event.Event)
	var duplicates []DuplicateLinkerKey

	for _, oe := range optionEvents {
		opt, ok := lookup(oe.AssetID)
		if !ok || opt.Option == nil {
			continue
		}
		expectedQty := oe.ContractQuantity.Mul(opt.Option.Multiplier).Abs()
		key := linkerKey{
			date:            oe.Date.Format("2006-01-02"),
			underlyingConid: opt.Option.UnderlyingConid,
			absQty:          expectedQty.String(),
		}
		if existing, dup := candidates[key]; dup {
			logger.L.Warn("option: duplicate linker key, keeping the later candidate",
				"key", fmt.Sprintf("%+v", key), "earlier_event_id", existing.ID, "later_event_id", oe.ID)
			duplicates = append(duplicates, DuplicateLinkerKey{
				AssetID:        oe.AssetID,
				EarlierEventID: existing.ID,
				LaterEventID:   oe.ID,
				Detail:         fmt.Sprintf("%+v", key),
			})
		}
		candidates[key] = oe
	}

	var unmatched []*event.Event
	for _, st := range stockTrades {
		a, ok := lookup(st.AssetID)
		if !ok {
			unmatched = append(unmatched, st)
			continue
		}
		conid, hasConid := a.Conid()
		if !hasConid {
			unmatched = append(unmatched, st)
			continue
		}
		key := linkerKey{
			date:            st.Date.Format("2006-01-02"),
			underlyingConid: conid,
			absQty:          st.Quantity.Abs().String(),
		}
		oe, found := candidates[key]
		if !found {
			unmatched = append(unmatched, st)
			continue
		}
		st.LinkOption(oe.ID)
	}
	return unmatched, duplicates
}
