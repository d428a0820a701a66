// Package core provides money parsing and handling utilities.
//
// Amounts are decimal values with two fractional digits. They are persisted as
// integer cents so that aggregates never go through floating point.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits kept for an amount.
const AmountScale = 2

// maxAmountCents bounds a single amount so that cents fit in int64 columns
// with room for totals.
const maxAmountCents = 1_000_000_000_000_000 - 1

// MaxAmount is the largest amount a transaction may carry.
var MaxAmount = FromCents(maxAmountCents)

// ParseAmount converts a decimal string to an amount rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up on the third decimal place. Signs, empty input and values that round
// to zero are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,345") -> 12.35
//	ParseAmount("0.004")  -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	digits := 0
	for _, r := range s {
		if r == '.' {
			continue
		}
		if !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
		digits++
	}
	if digits == 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = NormalizeAmount(d)
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// NormalizeAmount rounds d to cents.
func NormalizeAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountScale)
}

// ValidateAmount reports whether d is a storable, strictly positive amount
// no greater than MaxAmount.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() || !d.Equal(NormalizeAmount(d)) || d.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// ToCents converts d to integer cents.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(AmountScale).Round(0).IntPart()
}

// FromCents converts integer cents to an amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -AmountScale)
}

// FormatAmount renders d with exactly two decimals, e.g. "70.00".
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}
