package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNumeric_Round(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		mode  RoundingMode
		input string
		want  string
	}{
		{name: "down truncates", mode: RoundDown, input: "1.009", want: "1"},
		{name: "down truncates negative toward zero", mode: RoundDown, input: "-1.009", want: "-1"},
		{name: "up goes away from zero", mode: RoundUp, input: "1.001", want: "1.01"},
		{name: "up negative", mode: RoundUp, input: "-1.001", want: "-1.01"},
		{name: "ceiling negative", mode: RoundCeiling, input: "-1.009", want: "-1"},
		{name: "floor negative", mode: RoundFloor, input: "-1.001", want: "-1.01"},
		{name: "half up on tie", mode: RoundHalfUp, input: "1.005", want: "1.01"},
		{name: "half down on tie", mode: RoundHalfDown, input: "1.005", want: "1"},
		{name: "half down above tie", mode: RoundHalfDown, input: "1.0051", want: "1.01"},
		{name: "half even on tie to even", mode: RoundHalfEven, input: "1.005", want: "1"},
		{name: "half even on tie to odd", mode: RoundHalfEven, input: "1.015", want: "1.02"},
		{name: "empty mode defaults to down", mode: "", input: "2.999", want: "2.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Numeric{RoundingMode: tt.mode}
			got := n.Round(decimal.RequireFromString(tt.input), 2)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("Round(%s) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestNumeric_Div(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mode    RoundingMode
		precise int32
		a, b    string
		want    string
	}{
		{name: "exact", mode: RoundDown, precise: 22, a: "5", b: "100", want: "0.05"},
		{name: "down third", mode: RoundDown, precise: 22, a: "1", b: "3", want: "0.3333333333333333333333"},
		{name: "down two thirds", mode: RoundDown, precise: 22, a: "2", b: "3", want: "0.6666666666666666666666"},
		{name: "half up two thirds", mode: RoundHalfUp, precise: 22, a: "2", b: "3", want: "0.6666666666666666666667"},
		{name: "up third", mode: RoundUp, precise: 4, a: "1", b: "3", want: "0.3334"},
		{name: "ceiling negative third", mode: RoundCeiling, precise: 4, a: "-1", b: "3", want: "-0.3333"},
		{name: "floor negative third", mode: RoundFloor, precise: 4, a: "-1", b: "3", want: "-0.3334"},
		{name: "half even tie down", mode: RoundHalfEven, precise: 1, a: "1", b: "4", want: "0.2"},
		{name: "half even tie up", mode: RoundHalfEven, precise: 1, a: "3", b: "4", want: "0.8"},
		{name: "half up tie", mode: RoundHalfUp, precise: 1, a: "1", b: "4", want: "0.3"},
		{name: "half down tie", mode: RoundHalfDown, precise: 1, a: "1", b: "4", want: "0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Numeric{RoundingMode: tt.mode, PreciseScale: tt.precise}
			got := n.Div(decimal.RequireFromString(tt.a), decimal.RequireFromString(tt.b))
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("Div(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestNumeric_Normalize(t *testing.T) {
	t.Parallel()

	n := DefaultNumeric()

	got, err := n.Normalize("BTC", decimal.RequireFromString("0.123456789"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("0.12345678")) {
		t.Fatalf("expected 0.12345678, got %s", got)
	}

	if _, err := n.Normalize("XYZ", decimal.NewFromInt(1)); !errors.Is(err, ErrUnknownCurrency) {
		t.Fatalf("expected ErrUnknownCurrency, got %v", err)
	}
}

func TestParseRoundingMode(t *testing.T) {
	t.Parallel()

	mode, err := ParseRoundingMode(" HALF_EVEN ")
	if err != nil || mode != RoundHalfEven {
		t.Fatalf("expected half_even, got %q (%v)", mode, err)
	}

	if _, err := ParseRoundingMode("sideways"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
