// Package testutil provides deterministic fixtures shared by every other
// package's tests: string-constructed decimals (spec §9 forbids building
// Decimals from floats) and a canned in-memory FxRateProvider so tests never
// depend on network access or wall-clock time.
package testutil

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// D constructs a decimal.Decimal from a literal string, failing the test
// immediately on a malformed literal. Every monetary/quantity fixture value
// in the test suite should go through this helper rather than
// decimal.NewFromFloat.
func D(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("testutil: bad decimal literal %q: %v", s, err)
	}
	return d
}

// Date constructs a UTC calendar-day time.Time from a YYYY-MM-DD literal.
func Date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("testutil: bad date literal %q: %v", s, err)
	}
	return d
}
