package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CommissionStrategy selects how a commission is derived from an amount.
type CommissionStrategy string

const (
	CommissionFixed           CommissionStrategy = "fixed"
	CommissionPercent         CommissionStrategy = "percent"
	CommissionPercentAndFixed CommissionStrategy = "percent_and_fixed"
)

// ParseCommissionStrategy parses a strategy name. Empty input means fixed.
func ParseCommissionStrategy(s string) (CommissionStrategy, error) {
	strategy := CommissionStrategy(strings.ToLower(strings.TrimSpace(s)))
	switch strategy {
	case "":
		return CommissionFixed, nil
	case CommissionFixed, CommissionPercent, CommissionPercentAndFixed:
		return strategy, nil
	}

	return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidCommission, s)
}

// Commission describes a fee rule.
type Commission struct {
	Strategy CommissionStrategy
	Value    decimal.Decimal
	Minimum  decimal.Decimal
	Fixed    decimal.Decimal
}

// Validate rejects negative inputs and unknown strategies.
func (c Commission) Validate() error {
	switch c.Strategy {
	case CommissionFixed, CommissionPercent, CommissionPercentAndFixed:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidCommission, c.Strategy)
	}

	if c.Value.IsNegative() || c.Minimum.IsNegative() || c.Fixed.IsNegative() {
		return fmt.Errorf("%w: value, minimum and fixed must not be negative", ErrInvalidCommission)
	}

	return nil
}

// Calculate returns the commission for amount in currency, floored at
// Minimum and rounded to the currency scale.
func (c Commission) Calculate(amount decimal.Decimal, n Numeric, currency string) (decimal.Decimal, error) {
	if err := c.Validate(); err != nil {
		return decimal.Zero, err
	}

	var computed decimal.Decimal
	switch c.Strategy {
	case CommissionFixed:
		computed = c.Value
	case CommissionPercent:
		computed = amount.Mul(n.Div(c.Value, decimal.NewFromInt(100)))
	case CommissionPercentAndFixed:
		computed = amount.Mul(n.Div(c.Value, decimal.NewFromInt(100))).Add(c.Fixed)
	}

	computed = decimal.Max(computed, c.Minimum)

	return n.Normalize(currency, computed)
}
