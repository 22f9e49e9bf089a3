package domain

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Round2 rounds v to the nearest cent, half away from zero.
// Non-finite values are returned unchanged.
func Round2(v float64) float64 {
	if !IsFinite(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// LineTotal is qty × unitPrice rounded to the cent.
func LineTotal(qty, unitPrice float64) float64 {
	if !IsFinite(qty) || !IsFinite(unitPrice) {
		return 0
	}
	return decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(unitPrice)).Round(2).InexactFloat64()
}

// Sum adds values exactly and rounds the result to the cent.
// Non-finite values are skipped.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		if IsFinite(v) {
			total = total.Add(decimal.NewFromFloat(v))
		}
	}
	return total.Round(2).InexactFloat64()
}

// ParseNumber parses a number written with either a dot or a comma as
// decimal separator ("12,5" and "12.5" are equal). Surrounding blanks
// are ignored. It fails for empty, malformed and non-finite input.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !IsFinite(v) {
		return 0, false
	}
	return v, true
}

// ParseAmount parses a money amount and rounds it to the cent.
func ParseAmount(s string) (float64, bool) {
	v, ok := ParseNumber(s)
	if !ok {
		return 0, false
	}
	return Round2(v), true
}
