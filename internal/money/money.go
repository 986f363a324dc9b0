// Package money provides the fixed-scale decimal value type used for every
// monetary amount in the ledger. Amounts carry exactly two fractional digits
// and arithmetic is exact; there is deliberately no way to construct a Money
// from a float.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every stored amount carries.
const Scale = 2

// ErrPrecision indicates an input carried more fractional digits than the
// ledger scale allows. The value is rejected rather than silently rounded.
var ErrPrecision = errors.New("amount exceeds two decimal places")

// Money is an immutable decimal amount at scale 2. The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// Zero is the 0.00 amount.
var Zero = Money{}

// Parse builds a Money from a decimal-formatted string such as "100.00" or
// "-40.5". Inputs with more than two fractional digits fail with
// ErrPrecision.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.Exponent() < -Scale {
		return Money{}, fmt.Errorf("amount %q: %w", s, ErrPrecision)
	}
	return Money{d: d}, nil
}

// MustParse is a test helper that panics on invalid input.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromMinorUnits builds a Money from an integer count of minor units
// (cents): FromMinorUnits(1050) == 10.50.
func FromMinorUnits(n int64) Money {
	return Money{d: decimal.New(n, -Scale)}
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d)}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{d: m.d.Sub(other.d)}
}

// Neg returns the amount with its sign flipped.
func (m Money) Neg() Money {
	return Money{d: m.d.Neg()}
}

// Cmp compares two amounts exactly: -1 if m < other, 0 if equal, 1 if greater.
func (m Money) Cmp(other Money) int {
	return m.d.Cmp(other.d)
}

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) bool {
	return m.d.Cmp(other.d) < 0
}

// GreaterThan reports whether m > other.
func (m Money) GreaterThan(other Money) bool {
	return m.d.Cmp(other.d) > 0
}

// Equal reports exact equality; 10.5 and 10.50 are equal.
func (m Money) Equal(other Money) bool {
	return m.d.Cmp(other.d) == 0
}

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

// IsZero reports whether m == 0.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// String renders the amount with exactly two fractional digits, the format
// used for persistence and API responses.
func (m Money) String() string {
	return m.d.StringFixed(Scale)
}

// MarshalJSON encodes the amount as a fixed two-decimal JSON string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON decodes a JSON string produced by MarshalJSON, applying the
// same precision rules as Parse.
func (m *Money) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("money: expected string, got %s", data)
	}
	parsed, err := Parse(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
