// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing signed monetary amounts from
// user input and validating them against the ledger's bounds.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmount bounds the magnitude of any transaction or task amount.
var MaxAmount = decimal.NewFromInt(1_000_000_000)

// ParseAmount converts a decimal string to an amount rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. Rounding is half away from zero on the third
// decimal place. The result is validated with ValidateAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("-12,34") -> -12.34
//	ParseAmount("12.345") -> 12.35
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 || strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount rejects zero and amounts whose magnitude exceeds MaxAmount.
func ValidateAmount(d decimal.Decimal) error {
	if d.IsZero() {
		return ErrZeroAmount
	}
	if d.Abs().GreaterThan(MaxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

// ValidatePositiveAmount is ValidateAmount restricted to magnitudes, as used
// by tasks.
func ValidatePositiveAmount(d decimal.Decimal) error {
	if err := ValidateAmount(d); err != nil {
		return err
	}
	if d.IsNegative() {
		return invalid("amount", "amount must be greater than 0")
	}
	return nil
}
