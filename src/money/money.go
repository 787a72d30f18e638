// Package money provides the decimal construction and rounding helpers used
// throughout the engine. Every monetary or quantity value is built from a
// string, never a binary float, and rounding only ever happens at final
// quantization (see spec §9).
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InternalPrecision is the minimum number of significant digits carried
// through internal arithmetic, per the engine config's internal_precision.
const InternalPrecision = 28

func init() {
	decimal.DivisionPrecision = InternalPrecision
}

// Zero is the additive identity, exported to avoid repeated zero-value
// construction at call sites.
var Zero = decimal.Zero

// FromString parses a decimal from its source string representation. It is
// the only sanctioned entry point for turning raw input text into a
// Decimal — never via strconv.ParseFloat or a float64 literal.
func FromString(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: invalid decimal %q: %w", s, err)
	}
	return d, nil
}

// MustFromString is FromString for constants known at compile time (test
// fixtures, defaults). It panics on malformed input.
func MustFromString(s string) decimal.Decimal {
	d, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// RoundingMode selects the quantization strategy applied to final,
// reporting-facing figures. Internal arithmetic never rounds.
type RoundingMode int

const (
	RoundHalfUp RoundingMode = iota
	RoundHalfEven
)

// Quantize rounds d to places decimal digits using the given mode. This must
// only be called at the reporting boundary (form-line totals, per-share
// values), never between intermediate steps of the pipeline.
func Quantize(d decimal.Decimal, places int32, mode RoundingMode) decimal.Decimal {
	switch mode {
	case RoundHalfEven:
		return d.RoundBank(places)
	default:
		return roundHalfUp(d, places)
	}
}

// roundHalfUp implements round-half-away-from-zero at the given number of
// decimal places, since shopspring/decimal's default Round is banker's
// rounding on ties and the spec requires ROUND_HALF_UP specifically.
func roundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	if d.IsNegative() {
		return roundHalfUp(d.Neg(), places).Neg()
	}
	shift := decimal.New(1, places)
	shifted := d.Mul(shift)
	half := decimal.RequireFromString("0.5")
	floor := shifted.Truncate(0)
	frac := shifted.Sub(floor)
	if frac.GreaterThanOrEqual(half) {
		floor = floor.Add(decimal.NewFromInt(1))
	}
	return floor.Div(shift).Truncate(places)
}

// AmountPlaces / SharePlaces are the output quantization granularities from
// the engine config's output_precision_amount / output_precision_per_share.
const (
	AmountPlaces = 2
	SharePlaces  = 6
)

// AbsDiff returns |a-b|.
func AbsDiff(a, b decimal.Decimal) decimal.Decimal {
	return a.Sub(b).Abs()
}
