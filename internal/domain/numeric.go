package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RoundingMode controls how values are rounded when precision is lost.
type RoundingMode string

const (
	RoundUp       RoundingMode = "up"
	RoundDown     RoundingMode = "down"
	RoundCeiling  RoundingMode = "ceiling"
	RoundFloor    RoundingMode = "floor"
	RoundHalfUp   RoundingMode = "half_up"
	RoundHalfDown RoundingMode = "half_down"
	RoundHalfEven RoundingMode = "half_even"
)

// DefaultPreciseScale is the scale used for intermediate division results.
const DefaultPreciseScale int32 = 22

// ParseRoundingMode parses a rounding mode name.
func ParseRoundingMode(s string) (RoundingMode, error) {
	m := RoundingMode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case RoundUp, RoundDown, RoundCeiling, RoundFloor, RoundHalfUp, RoundHalfDown, RoundHalfEven:
		return m, nil
	}

	return "", fmt.Errorf("unknown rounding mode %q", s)
}

// Numeric holds the decimal rules shared by every money calculation.
type Numeric struct {
	CurrencyScales map[string]int32
	PreciseScale   int32
	RoundingMode   RoundingMode
}

// DefaultNumeric returns the stock currency scales with DOWN rounding.
func DefaultNumeric() Numeric {
	return Numeric{
		CurrencyScales: map[string]int32{
			"USD": 2,
			"EUR": 2,
			"BTC": 8,
			"ETH": 8,
		},
		PreciseScale: DefaultPreciseScale,
		RoundingMode: RoundDown,
	}
}

// Scale returns the display scale configured for currency.
func (n Numeric) Scale(currency string) (int32, error) {
	scale, ok := n.CurrencyScales[currency]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, currency)
	}

	return scale, nil
}

// Normalize rounds d to the scale of currency.
func (n Numeric) Normalize(currency string, d decimal.Decimal) (decimal.Decimal, error) {
	scale, err := n.Scale(currency)
	if err != nil {
		return decimal.Zero, err
	}

	return n.Round(d, scale), nil
}

// Round rounds d to scale places using the configured mode.
func (n Numeric) Round(d decimal.Decimal, scale int32) decimal.Decimal {
	switch n.mode() {
	case RoundUp:
		return d.RoundUp(scale)
	case RoundCeiling:
		return d.RoundCeil(scale)
	case RoundFloor:
		return d.RoundFloor(scale)
	case RoundHalfUp:
		return d.Round(scale)
	case RoundHalfEven:
		return d.RoundBank(scale)
	case RoundHalfDown:
		truncated := d.Truncate(scale)
		rem := d.Sub(truncated).Abs()
		half := decimal.New(5, -scale-1)
		if rem.GreaterThan(half) {
			return d.RoundUp(scale)
		}
		return truncated
	default:
		return d.RoundDown(scale)
	}
}

// Div divides a by b at PreciseScale, rounding the last digit with the
// configured mode. b must not be zero.
func (n Numeric) Div(a, b decimal.Decimal) decimal.Decimal {
	scale := n.PreciseScale
	if scale <= 0 {
		scale = DefaultPreciseScale
	}

	q, r := a.QuoRem(b, scale)
	if r.IsZero() {
		return q
	}

	unit := decimal.New(1, -scale)
	negative := a.Sign()*b.Sign() < 0
	away := q.Sub(unit)
	if !negative {
		away = q.Add(unit)
	}

	// Compare the remainder against half of the divisor step.
	cmpHalf := r.Abs().Mul(decimal.NewFromInt(2)).Cmp(b.Abs().Mul(unit))

	switch n.mode() {
	case RoundUp:
		return away
	case RoundCeiling:
		if negative {
			return q
		}
		return away
	case RoundFloor:
		if negative {
			return away
		}
		return q
	case RoundHalfUp:
		if cmpHalf >= 0 {
			return away
		}
		return q
	case RoundHalfDown:
		if cmpHalf > 0 {
			return away
		}
		return q
	case RoundHalfEven:
		if cmpHalf > 0 {
			return away
		}
		if cmpHalf == 0 && q.Shift(scale).BigInt().Bit(0) == 1 {
			return away
		}
		return q
	default:
		return q
	}
}

func (n Numeric) mode() RoundingMode {
	if n.RoundingMode == "" {
		return RoundDown
	}

	return n.RoundingMode
}
