// Package events carries storefront change notifications between components
// in one process, and optionally out to Kafka.
package events

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/example/ec-storefront/internal/money"
)

const (
	TypeCartChanged = "CartChanged"
	TypeOrderPlaced = "OrderPlaced"
)

type Event interface {
	Type() string
	// Key groups events that must stay ordered, e.g. one cart owner.
	Key() string
}

// CartChanged is published after every successful cart mutation.
type CartChanged struct {
	OwnerKey   string       `json:"ownerKey"`
	ItemCount  int          `json:"itemCount"`
	Subtotal   money.Amount `json:"subtotal"`
	OccurredAt time.Time    `json:"occurredAt"`
}

func (e CartChanged) Type() string { return TypeCartChanged }
func (e CartChanged) Key() string  { return e.OwnerKey }

type OrderPlacedItem struct {
	ProductID int64        `json:"productId"`
	Name      string       `json:"name"`
	Quantity  int          `json:"quantity"`
	Price     money.Amount `json:"price"`
}

// OrderPlaced is published once the backend has accepted an order.
type OrderPlaced struct {
	OrderID         int64             `json:"orderId"`
	UserID          int64             `json:"userId"`
	Email           string            `json:"email"`
	CustomerName    string            `json:"customerName"`
	Total           money.Amount      `json:"total"`
	Items           []OrderPlacedItem `json:"items"`
	ShippingAddress string            `json:"shippingAddress"`
	PaymentMethod   string            `json:"paymentMethod"`
	PlacedAt        time.Time         `json:"placedAt"`
}

func (e OrderPlaced) Type() string { return TypeOrderPlaced }
func (e OrderPlaced) Key() string  { return "user:" + strconv.FormatInt(e.UserID, 10) }

// Envelope is the wire form of an event on Kafka.
type Envelope struct {
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

func NewEnvelope(e Event, at time.Time) (Envelope, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: e.Type(), Key: e.Key(), OccurredAt: at, Data: data}, nil
}
