package event

import "github.com/shopspring/decimal"

// TradeRow is the column-level trade input schema from spec §6. File-level
// dialect/encoding concerns (CSV vs Flex-XML, column ordering) are the
// host's responsibility; by the time a TradeRow reaches this package every
// field has already been extracted as a string or typed value.
type TradeRow struct {
	AccountID          string
	Currency            string
	IBKRAssetClass       string // e.g. "STK", "OPT", "CASH"
	SubCategory          string
	Symbol               string
	Description          string
	ISIN                 string
	Conid                string
	Quantity             decimal.Decimal // signed
	TradePrice           decimal.Decimal
	Commission           decimal.Decimal
	CommissionCurrency   string
	BuySell              string // "BUY" | "SELL"
	OpenClose            string // "O" | "C" | "" (fatal if a financial-instrument trade lacks this)
	TradeDate            string // YYYY-MM-DD
	TradeTime            string
	BrokerTransactionID  string
	NotesCodes           string
	UnderlyingSymbol     string
	UnderlyingConid      string
	Multiplier           decimal.Decimal
	PutCall              string // "P" | "C" | ""
	Strike               decimal.Decimal
	Expiry               string
}

// CashTransactionRow is the cash-transaction input schema from spec §6.
type CashTransactionRow struct {
	Date         string
	AssetAliases []string
	Type         string // "Dividends" | "Withholding Tax" | "Broker Interest Received" | ...
	Amount       decimal.Decimal
	Currency     string
	Description  string
	SourceCountry string
}

// PositionRow is the SOY/EOY position-snapshot input schema from spec §6.
type PositionRow struct {
	Date                string
	AssetAliases        []string
	Quantity             decimal.Decimal
	CostBasisAmount      decimal.Decimal
	CostBasisKnown       bool
	CostBasisCurrency    string
	MarketPrice          decimal.Decimal
	Currency             string
	IsStartOfYear        bool // true for SOY rows, false for EOY rows
}

// CorporateActionRow is the corporate-action input schema from spec §6.
type CorporateActionRow struct {
	Date         string
	AssetAliases []string
	Type         string // "FS" | "TC" | "HI" | "SD" | "DI" | "ED"
	Ratio        decimal.Decimal
	CashPerShare decimal.Decimal
	NewShares    decimal.Decimal
	FMVPerShare  decimal.Decimal
	Currency     string
	CAActionID   string
	Description  string
	Symbol       string
}
