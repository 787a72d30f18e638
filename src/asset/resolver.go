package asset

import (
	"fmt"

	"github.com/uebber/ibkr-german-tax-declaration-engine/src/logger"
)

// Hints carries the row-derived classification signals resolve_or_create
// uses to create/upgrade/describe an asset (spec §4.1).
type Hints struct {
	Description string
	Currency    string
	Category    Category
	Source      SourceKind
}

// Resolver is the process-wide alias map: a union-find over alias strings
// with Asset payloads at the roots, per spec §9's design note. Every alias
// in aliasToAsset resolves to exactly one *Asset, and that Asset's Aliases
// set contains the alias — the bijection spec §3 requires as an invariant.
type Resolver struct {
	aliasToAsset map[string]*Asset
	nextID       int64
	syntheticSeq int64
	Conflicts    []DescriptionConflict
}

// DescriptionConflict records a sighting whose description overwrote a
// different, already-populated description at the same or higher source
// precedence (spec §7's description-source-conflict warning). The pipeline
// package owns the Warning collection; this package only reports the raw
// fact so callers above it can translate.
type DescriptionConflict struct {
	AssetID  int64
	Existing string
	New      string
}

// New creates an empty Resolver.
func New() *Resolver {
	return &Resolver{aliasToAsset: make(map[string]*Asset), nextID: 1}
}

// Assets returns every distinct Asset currently registered, in ascending Id
// order — ascending Id is itself the tiebreak used at merge time, so this
// iteration order is deterministic across runs with identical inputs.
func (r *Resolver) Assets() []*Asset {
	seen := make(map[int64]*Asset)
	for _, a := range r.aliasToAsset {
		seen[a.Id] = a
	}
	out := make([]*Asset, 0, len(seen))
	for _, a := range seen {
		out = append(out, a)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Id > out[j].Id; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// ResolveOrCreate implements spec §4.1's resolve_or_create: look up every
// alias, merge if they disagree, create if none match, then update the
// survivor with the new sighting's aliases/description/category.
func (r *Resolver) ResolveOrCreate(aliases []string, hints Hints) *Asset {
	matches := r.distinctMatches(aliases)

	var survivor *Asset
	switch len(matches) {
	case 0:
		survivor = newAsset(r.nextID)
		r.nextID++
		if len(aliases) == 0 {
			synthetic := fmt.Sprintf("SYNTHETIC:%d", r.syntheticSeq)
			r.syntheticSeq++
			aliases = []string{synthetic}
			logger.L.Warn("asset: row had no usable identifiers, created synthetic alias", "alias", synthetic)
		}
	case 1:
		survivor = matches[0]
	default:
		survivor = r.mergeSurvivor(matches)
	}

	for _, al := range aliases {
		if al == "" {
			continue
		}
		survivor.Aliases[al] = struct{}{}
		r.aliasToAsset[al] = survivor
	}

	prior := survivor.Description
	if survivor.setDescription(hints.Description, hints.Source) {
		logger.L.Warn("asset: description source conflict", "asset_id", survivor.Id, "existing", prior, "new", hints.Description)
		r.Conflicts = append(r.Conflicts, DescriptionConflict{AssetID: survivor.Id, Existing: prior, New: hints.Description})
	}
	if survivor.NativeCurrency == "" {
		survivor.NativeCurrency = hints.Currency
	}
	survivor.upgradeCategory(hints.Category)

	return survivor
}

// distinctMatches returns the set of distinct Assets any of aliases
// currently points to.
func (r *Resolver) distinctMatches(aliases []string) []*Asset {
	seen := make(map[int64]*Asset)
	for _, al := range aliases {
		if al == "" {
			continue
		}
		if a, ok := r.aliasToAsset[al]; ok {
			seen[a.Id] = a
		}
	}
	out := make([]*Asset, 0, len(seen))
	for _, a := range seen {
		out = append(out, a)
	}
	return out
}

// mergeSurvivor picks the survivor per spec §4.1's tiebreak order —
// (a) more concrete subtype, (b) more aliases, (c) lower internal id — and
// folds every other match's aliases into it, dropping the losers from the
// map. It is the union-find "union" operation.
func (r *Resolver) mergeSurvivor(matches []*Asset) *Asset {
	survivor := matches[0]
	for _, cand := range matches[1:] {
		if isBetterSurvivor(cand, survivor) {
			survivor = cand
		}
	}

	for _, loser := range matches {
		if loser.Id == survivor.Id {
			continue
		}
		for al := range loser.Aliases {
			survivor.Aliases[al] = struct{}{}
			r.aliasToAsset[al] = survivor
		}
		if specificity[loser.Category] > specificity[survivor.Category] {
			survivor.Category = loser.Category
		}
		if survivor.Description == "" {
			survivor.Description = loser.Description
			survivor.descRank = loser.descRank
		}
		if survivor.NativeCurrency == "" {
			survivor.NativeCurrency = loser.NativeCurrency
		}
		if !survivor.SOY.Present && loser.SOY.Present {
			survivor.SOY = loser.SOY
		}
		if !survivor.EOY.Present && loser.EOY.Present {
			survivor.EOY = loser.EOY
		}
	}
	return survivor
}

func isBetterSurvivor(cand, current *Asset) bool {
	if specificity[cand.Category] != specificity[current.Category] {
		return specificity[cand.Category] > specificity[current.Category]
	}
	if len(cand.Aliases) != len(current.Aliases) {
		return len(cand.Aliases) > len(current.Aliases)
	}
	return cand.Id < current.Id
}

// IsFXPairSymbol recognizes the "XXX.YYY" + IBKR asset class "CASH" shape
// spec §4.1 excludes from ever becoming a CashBalance asset.
func IsFXPairSymbol(symbol, ibkrAssetClass string) bool {
	if ibkrAssetClass != "CASH" {
		return false
	}
	dot := -1
	for i, c := range symbol {
		if c == '.' {
			dot = i
			break
		}
	}
	if dot <= 0 || dot == len(symbol)-1 {
		return false
	}
	left, right := symbol[:dot], symbol[dot+1:]
	return isAllUpperLetters(left) && isAllUpperLetters(right)
}

func isAllUpperLetters(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
