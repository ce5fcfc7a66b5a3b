package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrLoginRequired      = errors.New("please log in to checkout")
	ErrEmptyCart          = errors.New("your cart is empty")
	ErrNoAddress          = errors.New("please select a shipping address")
	ErrCheckoutInProgress = errors.New("an order is already being placed")
)

const defaultOrderFailure = "Failed to create order"

// InvalidLineError means a cart line could not be turned into an order line.
// Nothing was submitted.
type InvalidLineError struct {
	ProductID int64
	Reason    string
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("cart item for product %d cannot be ordered: %s", e.ProductID, e.Reason)
}

// OrderFailedError carries the message to show when the backend rejected the
// order. The cart is left as it was.
type OrderFailedError struct {
	Message string
	Cause   error
}

func (e *OrderFailedError) Error() string {
	return e.Message
}

func (e *OrderFailedError) Unwrap() error {
	return e.Cause
}
