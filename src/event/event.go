// Package event defines the typed financial-event model (spec §3) and the
// row-to-event construction rules (spec §4.2). Events are built as a single
// tagged-variant struct rather than an inheritance hierarchy, per spec §9's
// design note: downstream consumers switch on Type and read only the fields
// that variant populates.
package event

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type is the financial-event type tag.
type Type string

const (
	TradeBuyLong        Type = "TRADE_BUY_LONG"
	TradeSellLong        Type = "TRADE_SELL_LONG"
	TradeSellShortOpen   Type = "TRADE_SELL_SHORT_OPEN"
	TradeBuyShortCover   Type = "TRADE_BUY_SHORT_COVER"

	DividendCash              Type = "DIVIDEND_CASH"
	InterestReceived          Type = "INTEREST_RECEIVED"
	InterestPaidStueckzinsen  Type = "INTEREST_PAID_STUECKZINSEN"
	CapitalRepayment          Type = "CAPITAL_REPAYMENT"
	DistributionFund          Type = "DISTRIBUTION_FUND"
	FeeTransaction            Type = "FEE_TRANSACTION"
	WithholdingTax            Type = "WITHHOLDING_TAX"

	CorpSplitForward          Type = "CORP_SPLIT_FORWARD"
	CorpMergerCash             Type = "CORP_MERGER_CASH"
	CorpMergerStock             Type = "CORP_MERGER_STOCK"
	CorpStockDividend            Type = "CORP_STOCK_DIVIDEND"
	CorpDividendRightsIssued      Type = "CORP_DIVIDEND_RIGHTS_ISSUED"
	CorpExpireDividendRights      Type = "CORP_EXPIRE_DIVIDEND_RIGHTS"

	OptionExercise             Type = "OPTION_EXERCISE"
	OptionAssignment           Type = "OPTION_ASSIGNMENT"
	OptionExpirationWorthless Type = "OPTION_EXPIRATION_WORTHLESS"

	CurrencyConversion Type = "CURRENCY_CONVERSION"
)

// Tier buckets event types for the sort key's type_tier slot (spec §5):
// corporate-action adjustments first, then trades/option lifecycle, then
// cash flows, then enrichment-only events.
func (t Type) Tier() int {
	switch t {
	case CorpSplitForward, CorpMergerCash, CorpMergerStock, CorpStockDividend, CorpDividendRightsIssued, CorpExpireDividendRights:
		return 0
	case TradeBuyLong, TradeSellLong, TradeSellShortOpen, TradeBuyShortCover,
		OptionExercise, OptionAssignment, OptionExpirationWorthless, CurrencyConversion:
		return 1
	case DividendCash, InterestReceived, InterestPaidStueckzinsen, CapitalRepayment,
		DistributionFund, FeeTransaction, WithholdingTax:
		return 2
	default:
		return 3
	}
}

// IsTrade reports whether t is one of the four TRADE_* variants.
func (t Type) IsTrade() bool {
	switch t {
	case TradeBuyLong, TradeSellLong, TradeSellShortOpen, TradeBuyShortCover:
		return true
	default:
		return false
	}
}

// IsBuy reports whether t adds to a position (buy-to-open or buy-to-cover).
func (t Type) IsBuy() bool {
	return t == TradeBuyLong || t == TradeBuyShortCover
}

// ActsOnLong / ActsOnShort classify the four trade variants by which side of
// the ledger they act on, per the Buy/Sell x Open/Close table in spec §4.2.
func (t Type) ActsOnLong() bool  { return t == TradeBuyLong || t == TradeSellLong }
func (t Type) ActsOnShort() bool { return t == TradeSellShortOpen || t == TradeBuyShortCover }

// Event is the tagged-variant FinancialEvent. Common fields are always
// populated; variant-specific fields are documented per group below and are
// zero-valued when not applicable to Type.
type Event struct {
	ID        int64
	AssetID   int64
	Date      time.Time
	Type      Type

	GrossAmountForeign decimal.Decimal
	Currency           string
	GrossAmountEUR     decimal.Decimal
	eurSet             bool

	BrokerTxID string
	Notes      string

	// --- Trade / option-lifecycle fields ---
	Quantity               decimal.Decimal // absolute, for FIFO consumption
	UnitPriceForeign       decimal.Decimal
	CommissionForeign      decimal.Decimal
	CommissionCurrency     string
	NetEUR                 decimal.Decimal // cost (positive) or proceeds (positive), per §4.3 sign convention
	RelatedOptionEventID   int64
	HasRelatedOptionEvent  bool

	// --- Cash-flow fields ---
	SourceCountryCode string

	// --- Corporate-action fields ---
	SplitRatio          decimal.Decimal // new/old
	CashPerShare        decimal.Decimal // CORP_MERGER_CASH
	NewAssetID          int64           // CORP_MERGER_STOCK, unused otherwise
	NewSharesPerShare   decimal.Decimal // CORP_STOCK_DIVIDEND
	FMVPerNewShare      decimal.Decimal // CORP_STOCK_DIVIDEND
	CAActionID          string
	CADescription       string
	CASymbol            string

	// --- Option contract fields (set on the option's own OPTION_* events and
	// on the option asset's trades) ---
	ContractQuantity decimal.Decimal

	// --- Currency-conversion fields ---
	FromAmount   decimal.Decimal
	FromCurrency string
	ToAmount     decimal.Decimal
	ToCurrency   string

	// The sort* fields hold the type-dependent secondary sort slot, staged
	// by PrepareSortKeys after construction and before Sort (spec §5).
	sortSecondaryTxID string
	sortSecondaryCat  string
	sortSecondaryAmt  decimal.Decimal
	sortCASymbol      string
	sortCAActionID    string
	sortCADesc        string
}

// SetEUR records the enrichment-computed EUR gross amount. Events are
// immutable once enriched except for this field and RelatedOptionEventID
// (spec §3 lifecycle note).
func (e *Event) SetEUR(amount decimal.Decimal) {
	e.GrossAmountEUR = amount
	e.eurSet = true
}

// EURSet reports whether enrichment has populated GrossAmountEUR yet.
func (e *Event) EURSet() bool { return e.eurSet }

// LinkOption populates the one-way back-reference from a stock trade to the
// option event whose premium should fold into its economics (spec §4.5).
func (e *Event) LinkOption(optionEventID int64) {
	e.RelatedOptionEventID = optionEventID
	e.HasRelatedOptionEvent = true
}
