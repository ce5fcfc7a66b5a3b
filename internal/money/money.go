// Package money holds the storefront's monetary arithmetic. Amounts are kept
// as integer minor units; decimals only appear at the JSON boundary and in
// display formatting.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Exponent is the number of minor-unit digits (cents) per major unit.
const Exponent = 2

var ErrInvalidAmount = errors.New("invalid monetary amount")

// Amount is a monetary value in minor units.
type Amount int64

// FromDecimal converts a major-unit decimal into minor units, rounding half
// away from zero.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount(d.Shift(Exponent).Round(0).IntPart())
}

// ParseAmount parses a major-unit decimal string such as "19.99".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d), nil
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Exponent)
}

// Mul multiplies the amount by a quantity.
func (a Amount) Mul(qty int) Amount {
	return a * Amount(qty)
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(Exponent)
}

// Format renders the amount for display, e.g. Format("$") -> "$12.50".
func (a Amount) Format(symbol string) string {
	if a < 0 {
		return "-" + symbol + (-a).String()
	}
	return symbol + a.String()
}

// MarshalJSON writes the amount as a bare decimal number in major units,
// which is what the backend sends and expects.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*a = 0
		return nil
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// LineTotal is unit price times quantity.
func LineTotal(unit Amount, qty int) Amount {
	if qty <= 0 {
		return 0
	}
	return unit.Mul(qty)
}
