package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidBalance = errors.New("invalid balance")
)

// ValidateAmount checks that a transfer amount is positive and does not exceed max.
func ValidateAmount(amount, max int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if max > 0 && amount > max {
		return fmt.Errorf("%w: must not exceed %d", ErrInvalidAmount, max)
	}
	return nil
}

// ParseBalance parses the balance a device read from the carrier.
// Grouping spaces and a comma decimal separator are accepted ("12 500,50").
func ParseBalance(raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return decimal.Zero, ErrInvalidBalance
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidBalance, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative", ErrInvalidBalance)
	}
	return d, nil
}

// FormatBalance renders a balance with two decimals.
func FormatBalance(d decimal.Decimal) string {
	return d.StringFixed(2)
}
