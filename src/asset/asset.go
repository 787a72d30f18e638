// Package asset implements the canonical-instrument model and the
// process-wide alias resolver (spec §3, §4.1).
package asset

import "github.com/shopspring/decimal"

// Category is the coarse instrument classification.
type Category string

const (
	CategoryStock            Category = "STOCK"
	CategoryBond             Category = "BOND"
	CategoryInvestmentFund   Category = "INVESTMENT_FUND"
	CategoryOption           Category = "OPTION"
	CategoryCFD              Category = "CFD"
	CategoryPrivateSaleAsset Category = "PRIVATE_SALE_ASSET"
	CategoryCashBalance      Category = "CASH_BALANCE"
	CategoryUnknown          Category = "UNKNOWN"
)

// specificity ranks categories from most generic to most concrete, used by
// the resolver's merge-survivor and subtype-upgrade rules: a higher rank
// never loses identity to a lower one.
var specificity = map[Category]int{
	CategoryUnknown:          0,
	CategoryCashBalance:      1,
	CategoryCFD:              1,
	CategoryPrivateSaleAsset: 1,
	CategoryStock:            1,
	CategoryBond:             1,
	CategoryOption:           2,
	CategoryInvestmentFund:   2,
}

// FundType is the Teilfreistellung-relevant fund subtype, only meaningful
// when Category == CategoryInvestmentFund.
type FundType string

const (
	FundTypeNone             FundType = "NONE"
	FundTypeAktien           FundType = "AKTIEN"
	FundTypeMisch            FundType = "MISCH"
	FundTypeImmobilien       FundType = "IMMOBILIEN"
	FundTypeAuslandsImmo     FundType = "AUSLANDS_IMMOBILIEN"
	FundTypeSonstige         FundType = "SONSTIGE"
)

// TeilfreistellungRate returns the partial tax-exemption rate for a fund
// type, per spec §4.7.
func TeilfreistellungRate(ft FundType) decimal.Decimal {
	switch ft {
	case FundTypeAktien:
		return decimal.RequireFromString("0.30")
	case FundTypeMisch:
		return decimal.RequireFromString("0.15")
	case FundTypeImmobilien:
		return decimal.RequireFromString("0.60")
	case FundTypeAuslandsImmo:
		return decimal.RequireFromString("0.80")
	default:
		return decimal.Zero
	}
}

// OptionDetails holds the category-specific extension fields for OPTION
// assets.
type OptionDetails struct {
	Strike            decimal.Decimal
	Expiry            string // YYYY-MM-DD
	IsPut             bool
	Multiplier        decimal.Decimal
	UnderlyingConid   string
}

// SourceKind identifies which kind of input row produced a sighting, used by
// the description source-precedence rule.
type SourceKind int

const (
	SourceTrade SourceKind = iota
	SourcePosition
	SourceCorpAction
	SourceCashTx
)

// sourceRank implements "trade >= position > corp_act > cash_tx; cash_tx
// never overwrites" as a total order, higher wins ties against lower.
func sourceRank(k SourceKind) int {
	switch k {
	case SourceTrade:
		return 3
	case SourcePosition:
		return 3
	case SourceCorpAction:
		return 2
	case SourceCashTx:
		return 1
	default:
		return 0
	}
}

// SOYSnapshot is the start-of-year position snapshot for an asset, when one
// was present in the input.
type SOYSnapshot struct {
	Present         bool
	Quantity        decimal.Decimal
	CostBasisAmount decimal.Decimal
	CostBasisKnown  bool
	CostBasisCcy    string
}

// EOYSnapshot is the end-of-year position snapshot.
type EOYSnapshot struct {
	Present     bool
	Quantity    decimal.Decimal
	MarketPrice decimal.Decimal
}

// Asset is the canonical instrument every alias resolves to. Its Id is
// stable for the lifetime of a single engine run only (spec §3: "freshly
// allocated, stable for the run").
type Asset struct {
	Id             int64
	Aliases        map[string]struct{}
	Description    string
	descRank       int
	NativeCurrency string
	Category       Category

	FundType      FundType
	Option        *OptionDetails
	UnderlyingId  int64 // 0 means "no link recorded"
	HasUnderlying bool

	SOY SOYSnapshot
	EOY EOYSnapshot
}

func newAsset(id int64) *Asset {
	return &Asset{
		Id:       id,
		Aliases:  make(map[string]struct{}),
		Category: CategoryUnknown,
		FundType: FundTypeNone,
	}
}

// HasAlias reports whether alias is currently attributed to this asset.
func (a *Asset) HasAlias(alias string) bool {
	_, ok := a.Aliases[alias]
	return ok
}

// Conid returns the bare value of this asset's "CONID:" alias, if it has
// one — used by the option-to-stock linker to match an option's
// underlying_conid against a stock trade's own conid (spec §4.5).
func (a *Asset) Conid() (string, bool) {
	const prefix = "CONID:"
	for al := range a.Aliases {
		if len(al) > len(prefix) && al[:len(prefix)] == prefix {
			return al[len(prefix):], true
		}
	}
	return "", false
}

// Symbol returns the bare value of this asset's "SYMBOL:" alias, if it has
// one — used by the dividend-rights re-attribution transform to build a
// symbol-to-asset lookup for resolving a DI row's underlying (spec §4.4).
func (a *Asset) Symbol() (string, bool) {
	const prefix = "SYMBOL:"
	for al := range a.Aliases {
		if len(al) > len(prefix) && al[:len(prefix)] == prefix {
			return al[len(prefix):], true
		}
	}
	return "", false
}

// setDescription applies the source-precedence rule: a description from a
// strictly higher rank than the current holder's wins; on a tie the new value
// wins unless it comes from cash_tx, matching "cash_tx never overwrites". The
// first description seen is always taken.
// It reports whether this overwrote a different, already-populated
// description — a conflict the resolver surfaces as spec §7's
// description-source-conflict warning.
func (a *Asset) setDescription(desc string, kind SourceKind) bool {
	if desc == "" {
		return false
	}
	rank := sourceRank(kind)
	overwrite := a.Description == "" || rank > a.descRank || (rank == a.descRank && kind != SourceCashTx)
	if !overwrite {
		return false
	}
	conflict := a.Description != "" && a.Description != desc
	a.Description = desc
	a.descRank = rank
	return conflict
}

// upgradeCategory replaces Category only if hint is strictly more concrete.
func (a *Asset) upgradeCategory(hint Category) {
	if hint == "" || hint == CategoryUnknown {
		return
	}
	if specificity[hint] > specificity[a.Category] {
		a.Category = hint
	}
}
