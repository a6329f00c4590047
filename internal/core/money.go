// Package core provides money parsing and handling utilities.
//
// Amounts travel as decimal text (form posts, query strings) or JSON numbers
// and are stored as integer cents. Parsing goes through shopspring/decimal so
// that "12.345" and 12.345 round the same way.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseDecimalToCents converts a decimal string to cents with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs are
// rejected, as is zero. Use ParseCapToCents when zero is meaningful.
//
// Examples:
//
//	ParseDecimalToCents("12.34")  -> 1234, nil
//	ParseDecimalToCents("12,34")  -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
//	ParseDecimalToCents("12.344") -> 1234, nil
func ParseDecimalToCents(s string) (int64, error) {
	cents, err := parseCents(s, ErrInvalidAmount)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseCapToCents is ParseDecimalToCents for caps: "0" is accepted.
func ParseCapToCents(s string) (int64, error) {
	return parseCents(s, ErrInvalidCap)
}

func parseCents(s string, invalid error) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, invalid
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, invalid
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, invalid
	}
	// Keep multiplication by 100 inside int64.
	if d.GreaterThan(decimal.NewFromInt((1<<63 - 1) / 100)) {
		return 0, invalid
	}
	return d.Mul(hundred).Round(0).IntPart(), nil
}

// Decimal returns the amount as a decimal with two fractional digits.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float returns the amount in currency units for JSON responses.
// Note: use cents for calculations.
func (m Money) Float() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// String formats the amount with two decimals, e.g. "12.30".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}
