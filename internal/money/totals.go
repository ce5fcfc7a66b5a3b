package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeFee       = errors.New("shipping fee must not be negative")
	ErrNegativeThreshold = errors.New("free shipping threshold must not be negative")
	ErrInvalidTaxRate    = errors.New("tax rate must be in [0, 1)")
)

// Policy carries the pricing rules applied on top of the subtotal. A
// FreeShippingThreshold of zero disables free shipping.
type Policy struct {
	ShippingFee           Amount
	FreeShippingThreshold Amount
	TaxRate               decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		ShippingFee:           99,
		FreeShippingThreshold: 2000,
		TaxRate:               decimal.RequireFromString("0.18"),
	}
}

func (p Policy) Validate() error {
	if p.ShippingFee < 0 {
		return ErrNegativeFee
	}
	if p.FreeShippingThreshold < 0 {
		return ErrNegativeThreshold
	}
	if p.TaxRate.IsNegative() || p.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return ErrInvalidTaxRate
	}
	return nil
}

// QualifiesForFreeShipping reports whether subtotal reaches the threshold.
// Reaching the threshold exactly qualifies.
func (p Policy) QualifiesForFreeShipping(subtotal Amount) bool {
	return p.FreeShippingThreshold > 0 && subtotal >= p.FreeShippingThreshold
}

// Tax returns subtotal * TaxRate rounded to the minor unit.
func (p Policy) Tax(subtotal Amount) Amount {
	return FromDecimal(subtotal.Decimal().Mul(p.TaxRate))
}

// Line is anything that can be priced: a cart line, an order line.
type Line interface {
	// UnitPrice returns false when the price is unknown; it then counts as zero.
	UnitPrice() (Amount, bool)
	Qty() int
}

type Totals struct {
	ItemCount                int    `json:"itemCount"`
	Subtotal                 Amount `json:"subtotal"`
	ShippingFee              Amount `json:"shippingFee"`
	Tax                      Amount `json:"tax"`
	GrandTotal               Amount `json:"grandTotal"`
	FreeShipping             bool   `json:"freeShipping"`
	RemainingForFreeShipping Amount `json:"remainingForFreeShipping"`
}

// Compute derives the cart totals. An empty cart yields zero everywhere.
func Compute[L Line](p Policy, lines []L) Totals {
	var t Totals
	for _, l := range lines {
		qty := l.Qty()
		if qty <= 0 {
			continue
		}
		t.ItemCount += qty
		if unit, ok := l.UnitPrice(); ok {
			t.Subtotal += LineTotal(unit, qty)
		}
	}
	if t.ItemCount == 0 {
		return Totals{}
	}

	if p.QualifiesForFreeShipping(t.Subtotal) {
		t.FreeShipping = true
	} else {
		t.ShippingFee = p.ShippingFee
		if p.FreeShippingThreshold > 0 {
			t.RemainingForFreeShipping = p.FreeShippingThreshold - t.Subtotal
		}
	}
	t.Tax = p.Tax(t.Subtotal)
	t.GrandTotal = t.Subtotal + t.ShippingFee + t.Tax
	return t
}
