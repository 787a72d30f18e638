package event

import "sort"

// CategoryOf and SymbolOf let the sorter read asset-level fields it needs for
// the secondary sort slot without the event package importing asset (which
// would invert the dependency direction the rest of the module uses).
type CategoryOf func(assetID int64) string
type SymbolOf func(assetID int64) string

// PrepareSortKeys stages the type-dependent secondary slot (spec §5) onto
// each event. Must run once, after construction and before Sort.
func PrepareSortKeys(events []*Event, category CategoryOf, symbol SymbolOf) {
	for _, e := range events {
		switch e.Type.Tier() {
		case 0:
			e.sortCASymbol = symbol(e.AssetID)
			e.sortCAActionID = e.CAActionID
			e.sortCADesc = e.CADescription
		case 2:
			e.sortSecondaryTxID = e.BrokerTxID
			e.sortSecondaryCat = category(e.AssetID)
			e.sortSecondaryAmt = e.GrossAmountForeign
		default:
			e.sortSecondaryTxID = e.BrokerTxID
			e.sortSecondaryCat = category(e.AssetID)
		}
	}
}

// Sort orders events by the deterministic key from spec §5:
// (event_date, type_tier, secondary, event_id). PrepareSortKeys must have
// been called first.
func Sort(events []*Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return Less(events[i], events[j])
	})
}

// Less implements the total order spec §5 defines. Corporate actions and
// cash/trade events never compare their secondary slots against each other
// since type_tier already separates them.
func Less(a, b *Event) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if ta, tb := a.Type.Tier(), b.Type.Tier(); ta != tb {
		return ta < tb
	}

	switch a.Type.Tier() {
	case 0:
		if a.sortCASymbol != b.sortCASymbol {
			return a.sortCASymbol < b.sortCASymbol
		}
		if a.sortCAActionID != b.sortCAActionID {
			return a.sortCAActionID < b.sortCAActionID
		}
		if a.sortCADesc != b.sortCADesc {
			return a.sortCADesc < b.sortCADesc
		}
	case 2:
		if a.sortSecondaryTxID != b.sortSecondaryTxID {
			return a.sortSecondaryTxID < b.sortSecondaryTxID
		}
		if a.sortSecondaryCat != b.sortSecondaryCat {
			return a.sortSecondaryCat < b.sortSecondaryCat
		}
		if !a.sortSecondaryAmt.Equal(b.sortSecondaryAmt) {
			return a.sortSecondaryAmt.LessThan(b.sortSecondaryAmt)
		}
	default:
		if a.sortSecondaryTxID != b.sortSecondaryTxID {
			return a.sortSecondaryTxID < b.sortSecondaryTxID
		}
		if a.sortSecondaryCat != b.sortSecondaryCat {
			return a.sortSecondaryCat < b.sortSecondaryCat
		}
	}
	return a.ID < b.ID
}
