// Package tax implements the loss-offsetting aggregator of spec §4.7: it
// accumulates realizations and income events into the tax-relevant pools
// and renders the German Anlage KAP / KAP-INV / SO form-line outputs.
package tax

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/asset"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/ledger"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/money"
)

// FundBucket accumulates one fund type's gross distributions and gross sale
// gain/loss for the KAP-INV per-type line pairs (spec §4.7).
type FundBucket struct {
	GrossDistributions decimal.Decimal
	GrossSaleGainLoss  decimal.Decimal
}

// Aggregator accumulates every in-tax-year RealizedGainLoss and income event
// into the pools spec §4.7 names, then renders the form-line outputs.
// Nothing here mutates a RealizedGainLoss; the aggregator only reads.
type Aggregator struct {
	TaxYear int

	stockGainsGross      decimal.Decimal
	stockLossesAbs       decimal.Decimal
	derivativeGainsGross decimal.Decimal
	derivativeLossesAbs  decimal.Decimal
	kapOtherIncomePos    decimal.Decimal
	kapOtherLossesAbs    decimal.Decimal
	fundIncomeNetTaxable decimal.Decimal
	section23Net         decimal.Decimal
	withholdingTaxEUR    decimal.Decimal

	fundBuckets map[asset.FundType]*FundBucket
	section23Lines []Section23Line

	// applyDerivativeLossCapping gates the -20,000 EUR floor on
	// ConceptualNetSummary.NetDerivativesCapped (spec §12).
	applyDerivativeLossCapping bool
}

// Section23Line is one row of the Anlage-SO per-transaction listing (spec
// §4.7/§6): every §23 realization is listed, but only the tax-relevant ones
// (holding period ≤365 days) feed into the Zeile 54 total.
type Section23Line struct {
	AssetID         int64
	AcquisitionDate string
	RealizationDate string
	HoldingDays     int
	GainLossEUR     decimal.Decimal
	IsTaxRelevant   bool
}

// New creates an empty Aggregator for taxYear. applyDerivativeLossCapping
// gates ConceptualNetSummary's -20,000 EUR derivative-loss floor (spec §12).
func New(taxYear int, applyDerivativeLossCapping bool) *Aggregator {
	return &Aggregator{
		TaxYear:                    taxYear,
		fundBuckets:                make(map[asset.FundType]*FundBucket),
		applyDerivativeLossCapping: applyDerivativeLossCapping,
	}
}

func (a *Aggregator) inTaxYear(date string) bool {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return false
	}
	return d.Year() == a.TaxYear
}

func (a *Aggregator) bucket(ft asset.FundType) *FundBucket {
	b, ok := a.fundBuckets[ft]
	if !ok {
		b = &FundBucket{}
		a.fundBuckets[ft] = b
	}
	return b
}

// AddRealization folds one RealizedGainLoss into the pools (spec §4.7).
// Events outside the configured tax year contribute nothing (spec §8
// property 7).
func (a *Aggregator) AddRealization(rgl ledger.RealizedGainLoss, fundType asset.FundType) {
	if !a.inTaxYear(rgl.RealizationDate) {
		return
	}

	switch rgl.TaxCategory {
	case ledger.TaxCategoryStock:
		if rgl.GrossGainLossEUR.IsPositive() {
			a.stockGainsGross = a.stockGainsGross.Add(rgl.GrossGainLossEUR)
		} else {
			a.stockLossesAbs = a.stockLossesAbs.Add(rgl.GrossGainLossEUR.Abs())
		}
	case ledger.TaxCategoryDerivative:
		if rgl.GrossGainLossEUR.IsPositive() {
			a.derivativeGainsGross = a.derivativeGainsGross.Add(rgl.GrossGainLossEUR)
		} else {
			a.derivativeLossesAbs = a.derivativeLossesAbs.Add(rgl.GrossGainLossEUR.Abs())
		}
	case ledger.TaxCategoryFund:
		rate := asset.TeilfreistellungRate(fundType)
		net := rgl.GrossGainLossEUR.Mul(decimal.NewFromInt(1).Sub(rate))
		a.fundIncomeNetTaxable = a.fundIncomeNetTaxable.Add(net)
		a.bucket(fundType).GrossSaleGainLoss = a.bucket(fundType).GrossSaleGainLoss.Add(rgl.GrossGainLossEUR)
	case ledger.TaxCategoryOther:
		if rgl.GrossGainLossEUR.IsPositive() {
			a.kapOtherIncomePos = a.kapOtherIncomePos.Add(rgl.GrossGainLossEUR)
		} else {
			a.kapOtherLossesAbs = a.kapOtherLossesAbs.Add(rgl.GrossGainLossEUR.Abs())
		}
	case ledger.TaxCategorySection23:
		a.section23Lines = append(a.section23Lines, Section23Line{
			AssetID:         rgl.AssetID,
			AcquisitionDate: rgl.AcquisitionDate,
			RealizationDate: rgl.RealizationDate,
			HoldingDays:     rgl.HoldingPeriodDays,
			GainLossEUR:     rgl.GrossGainLossEUR,
			IsTaxRelevant:   rgl.IsWithinSpeculationPeriod,
		})
		if rgl.IsWithinSpeculationPeriod {
			a.section23Net = a.section23Net.Add(rgl.GrossGainLossEUR)
		}
	}
}

// AddOtherIncome adds a positive kap_other_income_positive contribution —
// dividends, interest, excess capital repayments, stock-dividend FMV income
// (spec §4.7).
func (a *Aggregator) AddOtherIncome(amountEUR decimal.Decimal) {
	a.kapOtherIncomePos = a.kapOtherIncomePos.Add(amountEUR)
}

// AddOtherLoss adds a kap_other_losses_abs contribution (negative bond
// realizations, negative net Stückzinsen).
func (a *Aggregator) AddOtherLoss(amountEUR decimal.Decimal) {
	a.kapOtherLossesAbs = a.kapOtherLossesAbs.Add(amountEUR.Abs())
}

// AddWithholdingTax accumulates a tax-year WITHHOLDING_TAX event's gross EUR
// amount into Zeile 41.
func (a *Aggregator) AddWithholdingTax(date string, grossEUR decimal.Decimal) {
	if !a.inTaxYear(date) {
		return
	}
	a.withholdingTaxEUR = a.withholdingTaxEUR.Add(grossEUR)
}

// AddFundDistribution folds a fund distribution's gross amount into the
// KAP-INV per-type bucket and the net-taxable summary (spec §4.7).
func (a *Aggregator) AddFundDistribution(date string, fundType asset.FundType, grossEUR decimal.Decimal) {
	if !a.inTaxYear(date) {
		return
	}
	rate := asset.TeilfreistellungRate(fundType)
	net := grossEUR.Mul(decimal.NewFromInt(1).Sub(rate))
	a.fundIncomeNetTaxable = a.fundIncomeNetTaxable.Add(net)
	a.bucket(fundType).GrossDistributions = a.bucket(fundType).GrossDistributions.Add(grossEUR)
}

// KAPLines is the Anlage KAP form-line output (spec §4.7/§6).
type KAPLines struct {
	Zeile19, Zeile20, Zeile21, Zeile22, Zeile23, Zeile24, Zeile41 decimal.Decimal
}

// RenderKAP computes and quantizes the Anlage KAP lines to 2 decimals,
// ROUND_HALF_UP (spec §4.7's final-quantization rule).
func (a *Aggregator) RenderKAP() KAPLines {
	z19 := a.stockGainsGross.Add(a.derivativeGainsGross).Add(a.kapOtherIncomePos).
		Sub(a.stockLossesAbs).Sub(a.kapOtherLossesAbs)
	q := func(d decimal.Decimal) decimal.Decimal { return money.Quantize(d, money.AmountPlaces, money.RoundHalfUp) }
	return KAPLines{
		Zeile19: q(z19),
		Zeile20: q(a.stockGainsGross),
		Zeile21: q(a.derivativeGainsGross),
		Zeile22: q(a.kapOtherLossesAbs),
		Zeile23: q(a.stockLossesAbs),
		Zeile24: q(a.derivativeLossesAbs),
		Zeile41: q(a.withholdingTaxEUR),
	}
}

// KAPINVLine is one fund type's distribution/sale-gain-loss line pair.
type KAPINVLine struct {
	FundType           asset.FundType
	GrossDistributions decimal.Decimal
	GrossSaleGainLoss  decimal.Decimal
}

// RenderKAPINV renders one line per fund type that had any activity. Gross
// figures are reported undiminished by Teilfreistellung, per spec §4.7 —
// the partial exemption only ever touches FundIncomeNetTaxable.
func (a *Aggregator) RenderKAPINV() []KAPINVLine {
	q := func(d decimal.Decimal) decimal.Decimal { return money.Quantize(d, money.AmountPlaces, money.RoundHalfUp) }
	var out []KAPINVLine
	for ft, b := range a.fundBuckets {
		out = append(out, KAPINVLine{FundType: ft, GrossDistributions: q(b.GrossDistributions), GrossSaleGainLoss: q(b.GrossSaleGainLoss)})
	}
	return out
}

// SOLines is the Anlage SO output: the full per-transaction listing plus the
// Zeile 54 net total of only the tax-relevant lines.
type SOLines struct {
	Lines    []Section23Line
	Zeile54  decimal.Decimal
}

func (a *Aggregator) RenderSO() SOLines {
	return SOLines{Lines: a.section23Lines, Zeile54: money.Quantize(a.section23Net, money.AmountPlaces, money.RoundHalfUp)}
}

// FundIncomeNetTaxable exposes the internal net-after-Teilfreistellung fund
// summary (spec §4.7) — never a form line on its own, but required by a
// report surfacing the full conceptual picture.
func (a *Aggregator) FundIncomeNetTaxable() decimal.Decimal {
	return money.Quantize(a.fundIncomeNetTaxable, money.AmountPlaces, money.RoundHalfUp)
}

// ConceptualNetSummary is the "PRD Sec 2.8" conceptual net balance view
// (spec §12, grounded on original_source's LossOffsettingEngine): plain
// gains-minus-losses per category, unlike the KAP/KAP-INV/SO form lines
// which apply German loss-offsetting ring-fencing between categories.
type ConceptualNetSummary struct {
	NetStocks              decimal.Decimal
	NetOtherIncome         decimal.Decimal
	NetP23ESt              decimal.Decimal
	NetDerivativesUncapped decimal.Decimal
	NetDerivativesCapped   decimal.Decimal
}

// derivativeLossCap is the floor original_source applies to a negative
// conceptual net derivative balance when capping is enabled.
var derivativeLossCap = decimal.RequireFromString("-20000")

// RenderConceptualNetSummary computes the conceptual net balances, rounded
// to 2 decimals at this reporting boundary like every other rendered figure.
func (a *Aggregator) RenderConceptualNetSummary() ConceptualNetSummary {
	q := func(d decimal.Decimal) decimal.Decimal { return money.Quantize(d, money.AmountPlaces, money.RoundHalfUp) }

	netDerivatives := a.derivativeGainsGross.Sub(a.derivativeLossesAbs)
	capped := netDerivatives
	if a.applyDerivativeLossCapping && netDerivatives.IsNegative() && netDerivatives.LessThan(derivativeLossCap) {
		capped = derivativeLossCap
	}

	return ConceptualNetSummary{
		NetStocks:              q(a.stockGainsGross.Sub(a.stockLossesAbs)),
		NetOtherIncome:         q(a.kapOtherIncomePos.Sub(a.kapOtherLossesAbs)),
		NetP23ESt:              q(a.section23Net),
		NetDerivativesUncapped: q(netDerivatives),
		NetDerivativesCapped:   q(capped),
	}
}
