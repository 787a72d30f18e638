package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/asset"
)

// RealizationType tags which FIFO event produced a RealizedGainLoss, per
// spec §3.
type RealizationType string

const (
	LongPositionSale      RealizationType = "LONG_POSITION_SALE"
	ShortPositionCover    RealizationType = "SHORT_POSITION_COVER"
	CashMergerProceeds    RealizationType = "CASH_MERGER_PROCEEDS"
	OptionExpiredLong     RealizationType = "OPTION_EXPIRED_LONG"
	OptionExpiredShort    RealizationType = "OPTION_EXPIRED_SHORT"
	OptionTradeCloseLong  RealizationType = "OPTION_TRADE_CLOSE_LONG"
	OptionTradeCloseShort RealizationType = "OPTION_TRADE_CLOSE_SHORT"
)

// TaxCategory is the coarse pool a RealizedGainLoss feeds in the loss-offset
// aggregator (spec §4.7). The aggregator still branches on sign and fund
// type within a category; this tag only routes the record to the right
// pool.
type TaxCategory string

const (
	TaxCategoryStock      TaxCategory = "STOCK"
	TaxCategoryDerivative TaxCategory = "DERIVATIVE"
	TaxCategoryFund       TaxCategory = "FUND"
	TaxCategorySection23  TaxCategory = "SECTION_23"
	TaxCategoryOther      TaxCategory = "OTHER" // bonds and anything without a dedicated pool
)

// CategorizeAsset maps an asset's coarse category to the tax pool its
// realizations feed.
func CategorizeAsset(cat asset.Category) TaxCategory {
	switch cat {
	case asset.CategoryStock:
		return TaxCategoryStock
	case asset.CategoryOption, asset.CategoryCFD:
		return TaxCategoryDerivative
	case asset.CategoryInvestmentFund:
		return TaxCategoryFund
	case asset.CategoryPrivateSaleAsset:
		return TaxCategorySection23
	default:
		return TaxCategoryOther
	}
}

// Teilfreistellung holds the partial-exemption breakdown applied to fund
// realizations (spec §4.7); zero-valued (rate 0) for non-fund records.
type Teilfreistellung struct {
	Rate   decimal.Decimal
	Amount decimal.Decimal
	Net    decimal.Decimal
}

// RealizedGainLoss is the append-only output record of spec §3.
type RealizedGainLoss struct {
	OriginatingEventID int64
	AssetID            int64
	AssetCategory      asset.Category
	TaxCategory        TaxCategory

	AcquisitionDate string
	RealizationDate string

	Type RealizationType

	QuantityRealized       decimal.Decimal
	UnitCostBasisEUR        decimal.Decimal
	UnitRealizationValueEUR decimal.Decimal
	TotalCostBasisEUR        decimal.Decimal
	TotalRealizationValueEUR decimal.Decimal
	GrossGainLossEUR         decimal.Decimal

	HoldingPeriodDays        int
	IsWithinSpeculationPeriod bool

	Teilfreistellung   Teilfreistellung
	IsFund             bool
	IsStillhalterIncome bool
}

// holdingPeriodDays computes the number of days from the first YYYY-MM-DD
// date to the second (the start day itself is not counted), matching Scenario F's "365 days" boundary math (spec
// §8 Scenario F: 2022-03-15 → 2023-03-15 is exactly 365 days).
func holdingPeriodDays(acquired, realized string) int {
	a, err1 := time.Parse("2006-01-02", acquired)
	r, err2 := time.Parse("2006-01-02", realized)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(r.Sub(a).Hours() / 24)
}

// newRealization builds a RealizedGainLoss with its derived fields
// (holding period, §23 speculation flag, totals, gross gain/loss) filled
// in from the per-unit inputs.
func newRealization(eventID, assetID int64, cat asset.Category, typ RealizationType, acquired, realized string, qty, unitCost, unitValue decimal.Decimal) RealizedGainLoss {
	totalCost := unitCost.Mul(qty)
	totalValue := unitValue.Mul(qty)
	days := holdingPeriodDays(acquired, realized)
	return RealizedGainLoss{
		OriginatingEventID:      eventID,
		AssetID:                 assetID,
		AssetCategory:           cat,
		TaxCategory:             CategorizeAsset(cat),
		AcquisitionDate:         acquired,
		RealizationDate:         realized,
		Type:                    typ,
		QuantityRealized:        qty,
		UnitCostBasisEUR:        unitCost,
		UnitRealizationValueEUR: unitValue,
		TotalCostBasisEUR:       totalCost,
		TotalRealizationValueEUR: totalValue,
		GrossGainLossEUR:        totalValue.Sub(totalCost),
		HoldingPeriodDays:       days,
		// spec §8 Scenario F: holding_period_days == 365 is still taxable;
		// only 366+ is exempt.
		IsWithinSpeculationPeriod: cat == asset.CategoryPrivateSaleAsset && days <= 365,
	}
}
