package order

import (
	"errors"
	"strings"
	"time"

	"github.com/example/ec-storefront/internal/domain/address"
	"github.com/example/ec-storefront/internal/money"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrNotCancellable = errors.New("order can no longer be cancelled")
)

// ParseStatus normalizes the backend's status text; unknown values are kept
// as-is since the lifecycle belongs to the backend.
func ParseStatus(s string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(s)))
}

// Label is the status as shown to shoppers.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusProcessing:
		return "Processing"
	case StatusShipped:
		return "Shipped"
	case StatusDelivered:
		return "Delivered"
	case StatusCancelled:
		return "Cancelled"
	case "":
		return "Unknown"
	default:
		return string(s)
	}
}

// Cancellable reports whether an order in this status may still be
// cancelled: nothing has shipped yet.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusProcessing
}

type PaymentMethod string

const (
	PaymentCreditCard     PaymentMethod = "credit-card"
	PaymentPayPal         PaymentMethod = "paypal"
	PaymentCashOnDelivery PaymentMethod = "cash-on-delivery"
)

var ErrUnknownPaymentMethod = errors.New("unknown payment method")

func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentCreditCard, PaymentPayPal, PaymentCashOnDelivery}
}

// ParsePaymentMethod defaults an empty value to credit card.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return PaymentCreditCard, nil
	case PaymentCreditCard, PaymentPayPal, PaymentCashOnDelivery:
		return m, nil
	default:
		return "", ErrUnknownPaymentMethod
	}
}

// Line is one product of a placed order, priced at purchase time.
type Line struct {
	ProductID   int64        `json:"productId"`
	ProductName string       `json:"productName,omitempty"`
	Quantity    int          `json:"quantity"`
	Price       money.Amount `json:"price"`
}

func (l Line) UnitPrice() (money.Amount, bool) { return l.Price, true }
func (l Line) Qty() int                        { return l.Quantity }

type Order struct {
	ID              int64            `json:"id"`
	Number          string           `json:"orderNumber,omitempty"`
	UserID          int64            `json:"userId,omitempty"`
	Items           []Line           `json:"items"`
	TotalAmount     money.Amount     `json:"totalAmount"`
	Status          Status           `json:"status"`
	OrderDate       time.Time        `json:"orderDate"`
	ShippingAddress *address.Address `json:"shippingAddress,omitempty"`
	PaymentMethod   string           `json:"paymentMethod,omitempty"`
	PaymentStatus   string           `json:"paymentStatus,omitempty"`
	TransactionID   string           `json:"transactionId,omitempty"`
}

// ItemCount sums quantities over the order's lines.
func (o Order) ItemCount() int {
	n := 0
	for _, l := range o.Items {
		n += l.Quantity
	}
	return n
}

type Payment struct {
	ID            int64        `json:"id"`
	OrderID       int64        `json:"orderId,omitempty"`
	Amount        money.Amount `json:"amount"`
	Status        string       `json:"status"`
	PaymentMethod string       `json:"paymentMethod"`
	TransactionID string       `json:"transactionId,omitempty"`
	PaymentDate   time.Time    `json:"paymentDate"`
}
