package event

import (
	"fmt"
	"strings"
	"time"
)

// IDGenerator hands out the process-unique event ids spec §3 requires even
// when multiple rows share a broker transaction id.
type IDGenerator struct{ next int64 }

// NewIDGenerator returns a generator starting at 1.
func NewIDGenerator() *IDGenerator { return &IDGenerator{next: 1} }

// Next returns the next unused id.
func (g *IDGenerator) Next() int64 {
	id := g.next
	g.next++
	return id
}

// ParseEventDate parses the YYYY-MM-DD calendar-day strings used throughout
// the row schemas. A malformed date is a fatal input error per spec §7.
func ParseEventDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("event: unparseable event date %q: %w", s, err)
	}
	return d, nil
}

// notesIndicateExercise reports whether a trade's notes/codes column marks it
// as the stock leg of an option exercise ("Ex").
func notesIndicateExercise(notes string) bool {
	return strings.Contains(notes, "Ex")
}

// notesIndicateAssignment reports whether notes mark an option assignment
// ("A" present, "IA" — In lieu of dividend Adjustment — excluded).
func notesIndicateAssignment(notes string) bool {
	return strings.Contains(notes, "A") && !strings.Contains(notes, "IA")
}

// IsOptionLinkCandidate reports whether a stock trade row is eligible for
// option-to-stock linking (spec §4.5 step A.2).
func IsOptionLinkCandidate(notes string) bool {
	return notesIndicateExercise(notes) || notesIndicateAssignment(notes)
}

// tradeEventType implements the Buy/Sell x Open/Close table from spec §4.2.
// A missing or unrecognized open/close indicator on a financial-instrument
// trade is fatal, never guessed.
func tradeEventType(buySell, openClose string) (Type, error) {
	switch {
	case buySell == "BUY" && openClose == "O":
		return TradeBuyLong, nil
	case buySell == "BUY" && openClose == "C":
		return TradeBuyShortCover, nil
	case buySell == "SELL" && openClose == "O":
		return TradeSellShortOpen, nil
	case buySell == "SELL" && openClose == "C":
		return TradeSellLong, nil
	default:
		return "", fmt.Errorf("event: unknown open/close indicator %q for buy/sell %q", openClose, buySell)
	}
}

// ConstructTradeEvent maps a TradeRow for a financial instrument (not an FX
// pair — see ConstructCurrencyConversionEvent for that) to its Event, per
// spec §4.2 and the sign convention in §4.3 (commission currency defaults to
// the trade's own currency when the row leaves it blank and commission is
// nonzero).
func ConstructTradeEvent(row TradeRow, assetID int64, ids *IDGenerator) (*Event, error) {
	date, err := ParseEventDate(row.TradeDate)
	if err != nil {
		return nil, err
	}

	isOption := row.IBKRAssetClass == "OPT"

	var typ Type
	if isOption && notesIndicateExercise(row.NotesCodes) {
		typ = OptionExercise
	} else if isOption && notesIndicateAssignment(row.NotesCodes) {
		typ = OptionAssignment
	} else {
		typ, err = tradeEventType(row.BuySell, row.OpenClose)
		if err != nil {
			return nil, fmt.Errorf("event: trade row (broker_tx=%s symbol=%s date=%s): %w", row.BrokerTransactionID, row.Symbol, row.TradeDate, err)
		}
	}

	commissionCcy := row.CommissionCurrency
	if commissionCcy == "" {
		commissionCcy = row.Currency
	}

	qtyAbs := row.Quantity.Abs()
	grossForeign := row.TradePrice.Mul(qtyAbs)

	ev := &Event{
		ID:                 ids.Next(),
		AssetID:            assetID,
		Date:               date,
		Type:               typ,
		GrossAmountForeign: grossForeign,
		Currency:           row.Currency,
		BrokerTxID:         row.BrokerTransactionID,
		Notes:              row.NotesCodes,
		Quantity:           qtyAbs,
		UnitPriceForeign:   row.TradePrice,
		CommissionForeign:  row.Commission,
		CommissionCurrency: commissionCcy,
		ContractQuantity:   qtyAbs,
	}
	return ev, nil
}

// ConstructCurrencyConversionEvent maps an FX-pair TradeRow to the single
// CURRENCY_CONVERSION event carrying both legs (spec §4.1, §4.2). The "from"
// leg is always fromCcy with |quantity|, and the "to" leg is toCcy with
// |quantity| x price; the sign of the row's quantity is not consulted.
func ConstructCurrencyConversionEvent(row TradeRow, assetID int64, fromCcy, toCcy string, ids *IDGenerator) (*Event, error) {
	date, err := ParseEventDate(row.TradeDate)
	if err != nil {
		return nil, err
	}
	fromAmount := row.Quantity.Abs()
	toAmount := row.Quantity.Abs().Mul(row.TradePrice)

	return &Event{
		ID:           ids.Next(),
		AssetID:      assetID,
		Date:         date,
		Type:         CurrencyConversion,
		Currency:     toCcy,
		BrokerTxID:   row.BrokerTransactionID,
		Notes:        row.NotesCodes,
		FromAmount:   fromAmount,
		FromCurrency: fromCcy,
		ToAmount:     toAmount,
		ToCurrency:   toCcy,
	}, nil
}

// cashTransactionType maps the cash-transaction type strings from spec §6 to
// an event Type. Unrecognized types surface as FeeTransaction rather than
// being dropped; the original type string is not kept on the event (Notes
// holds the row's description).
func cashTransactionType(raw string) Type {
	switch raw {
	case "Dividends":
		return DividendCash
	case "Payment In Lieu Of Dividends":
		return DividendCash
	case "Withholding Tax":
		return WithholdingTax
	case "Broker Interest Received":
		return InterestReceived
	case "Broker Interest Paid", "Stueckzinsen Paid":
		return InterestPaidStueckzinsen
	case "Capital Repayment":
		return CapitalRepayment
	case "Fund Distribution":
		return DistributionFund
	default:
		return FeeTransaction
	}
}

// ConstructCashEvent maps a CashTransactionRow to an Event per spec §3's
// cash-flow variant group.
func ConstructCashEvent(row CashTransactionRow, assetID int64, ids *IDGenerator) (*Event, error) {
	date, err := ParseEventDate(row.Date)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:                 ids.Next(),
		AssetID:            assetID,
		Date:               date,
		Type:               cashTransactionType(row.Type),
		GrossAmountForeign: row.Amount,
		Currency:           row.Currency,
		Notes:              row.Description,
		SourceCountryCode:  row.SourceCountry,
	}, nil
}

// corpActionEventType maps the CA type codes from spec §6 to an event Type.
func corpActionEventType(code string) (Type, error) {
	switch code {
	case "FS":
		return CorpSplitForward, nil
	case "TC":
		return CorpMergerCash, nil
	case "HI":
		return CorpMergerStock, nil
	case "SD":
		return CorpStockDividend, nil
	case "DI":
		return CorpDividendRightsIssued, nil // paired leg; resolved against its ED by the corpaction package
	case "ED":
		return CorpExpireDividendRights, nil
	default:
		return "", fmt.Errorf("event: unknown corporate action type code %q", code)
	}
}

// ConstructCorpActionEvent maps a CorporateActionRow to an Event per spec
// §3's corporate-action variant group. The DI/ED pairing and dividend-rights
// re-attribution described in spec §4.4 happen downstream in the corpaction
// package, not here — this function only performs the row-level mapping.
func ConstructCorpActionEvent(row CorporateActionRow, assetID int64, ids *IDGenerator) (*Event, error) {
	date, err := ParseEventDate(row.Date)
	if err != nil {
		return nil, err
	}
	typ, err := corpActionEventType(row.Type)
	if err != nil {
		return nil, fmt.Errorf("event: corp action row (ca_id=%s date=%s): %w", row.CAActionID, row.Date, err)
	}
	return &Event{
		ID:                ids.Next(),
		AssetID:           assetID,
		Date:              date,
		Type:              typ,
		Currency:          row.Currency,
		CAActionID:        row.CAActionID,
		CADescription:     row.Description,
		CASymbol:          row.Symbol,
		SplitRatio:        row.Ratio,
		CashPerShare:      row.CashPerShare,
		NewSharesPerShare: row.NewShares,
		FMVPerNewShare:    row.FMVPerShare,
	}, nil
}
