// Package checkout turns a signed-in user's cart into a backend order.
package checkout

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/example/ec-storefront/internal/backend"
	"github.com/example/ec-storefront/internal/cartsync"
	"github.com/example/ec-storefront/internal/domain/address"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/money"
)

// Backend is the order-related slice of the backend client.
type Backend interface {
	ListAddresses(ctx context.Context, userID int64) ([]address.Address, error)
	CreateOrder(ctx context.Context, userID int64, lines []backend.OrderLine) (order.Order, error)
	CreatePayment(ctx context.Context, orderID int64, method order.PaymentMethod) (order.Payment, error)
}

// Carts is the synchronizer slice checkout needs. Clearing goes through it so
// cart observers see the change.
type Carts interface {
	Refresh(ctx context.Context, owner cart.Owner) (cart.Cart, error)
	Clear(ctx context.Context, owner cart.Owner) (cartsync.View, error)
	Policy() money.Policy
}

// StockInvalidator drops cached stock for ordered products.
type StockInvalidator interface {
	Invalidate(ctx context.Context, productIDs ...int64)
}

// Customer is the signed-in user placing the order.
type Customer struct {
	ID    int64
	Email string
	Name  string
}

type Request struct {
	AddressID     int64  `json:"addressId"`
	PaymentMethod string `json:"paymentMethod"`
}

type Result struct {
	Order            order.Order    `json:"order"`
	Payment          *order.Payment `json:"payment,omitempty"`
	Totals           money.Totals   `json:"totals"`
	ConfirmationPath string         `json:"confirmationPath"`
	Warnings         []string       `json:"warnings,omitempty"`
}

type Preview struct {
	Items             []cart.LineItem       `json:"items"`
	Totals            money.Totals          `json:"totals"`
	Addresses         []address.Address     `json:"addresses"`
	SelectedAddressID int64                 `json:"selectedAddressId,omitempty"`
	PaymentMethods    []order.PaymentMethod `json:"paymentMethods"`
}

type Orchestrator struct {
	backend   Backend
	carts     Carts
	stock     StockInvalidator
	publisher events.Publisher
	now       func() time.Time

	mu       sync.Mutex
	inflight map[int64]struct{}
}

func NewOrchestrator(b Backend, carts Carts, stock StockInvalidator, publisher events.Publisher) *Orchestrator {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Orchestrator{
		backend:   b,
		carts:     carts,
		stock:     stock,
		publisher: publisher,
		now:       time.Now,
		inflight:  make(map[int64]struct{}),
	}
}

func ConfirmationPath(orderID int64) string {
	return "/order-confirmation/" + strconv.FormatInt(orderID, 10)
}

func (o *Orchestrator) begin(userID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[userID]; busy {
		return false
	}
	o.inflight[userID] = struct{}{}
	return true
}

func (o *Orchestrator) end(userID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, userID)
}

// Preview gathers what the checkout page shows: a fresh cart with totals and
// the address book with the default preselected.
func (o *Orchestrator) Preview(ctx context.Context, customer *Customer) (Preview, error) {
	if customer == nil || customer.ID == 0 {
		return Preview{}, ErrLoginRequired
	}

	c, err := o.carts.Refresh(ctx, cart.UserOwner(customer.ID))
	if err != nil {
		return Preview{}, fmt.Errorf("failed to load cart: %w", err)
	}
	addrs, err := o.backend.ListAddresses(ctx, customer.ID)
	if err != nil {
		return Preview{}, fmt.Errorf("failed to load addresses: %w", err)
	}

	p := Preview{
		Items:          c.Items,
		Totals:         c.Totals(o.carts.Policy()),
		Addresses:      addrs,
		PaymentMethods: order.PaymentMethods(),
	}
	if def, ok := address.Default(addrs); ok {
		p.SelectedAddressID = def.ID
	}
	return p, nil
}

// PlaceOrder submits the whole cart as one order. Payment recording and cart
// clearing happen afterwards on a best-effort basis: their failures come back
// as warnings and never undo the order.
func (o *Orchestrator) PlaceOrder(ctx context.Context, customer *Customer, req Request) (Result, error) {
	if customer == nil || customer.ID == 0 {
		return Result{}, ErrLoginRequired
	}
	method, err := order.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return Result{}, err
	}

	if !o.begin(customer.ID) {
		return Result{}, ErrCheckoutInProgress
	}
	defer o.end(customer.ID)

	owner := cart.UserOwner(customer.ID)
	c, err := o.carts.Refresh(ctx, owner)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load cart: %w", err)
	}
	if c.IsEmpty() {
		return Result{}, ErrEmptyCart
	}

	shipTo, err := o.selectAddress(ctx, customer.ID, req.AddressID)
	if err != nil {
		return Result{}, err
	}

	lines, err := orderLines(c)
	if err != nil {
		return Result{}, err
	}
	totals := c.Totals(o.carts.Policy())

	placed, err := o.backend.CreateOrder(ctx, customer.ID, lines)
	if err != nil {
		log.Printf("[Checkout] Order creation failed for user %d: %v", customer.ID, err)
		return Result{}, &OrderFailedError{Message: backend.UserMessage(err, defaultOrderFailure), Cause: err}
	}
	log.Printf("[Checkout] Order %d created for user %d (%d lines)", placed.ID, customer.ID, len(lines))

	if placed.ShippingAddress == nil {
		placed.ShippingAddress = &shipTo
	}
	res := Result{
		Order:            placed,
		Totals:           totals,
		ConfirmationPath: ConfirmationPath(placed.ID),
	}

	// The order exists now; nothing below may fail the request.
	after := context.WithoutCancel(ctx)

	payment, err := o.backend.CreatePayment(after, placed.ID, method)
	if err != nil {
		log.Printf("[Checkout] Payment for order %d failed: %v", placed.ID, err)
		res.Warnings = append(res.Warnings, "Payment could not be recorded: "+backend.UserMessage(err, err.Error()))
	} else {
		res.Payment = &payment
	}

	if _, err := o.carts.Clear(after, owner); err != nil {
		log.Printf("[Checkout] Clearing cart after order %d failed: %v", placed.ID, err)
		res.Warnings = append(res.Warnings, "Your cart could not be cleared: "+backend.UserMessage(err, err.Error()))
	}

	if o.stock != nil {
		ids := make([]int64, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.ProductID)
		}
		o.stock.Invalidate(after, ids...)
	}

	o.publisher.Publish(o.orderPlaced(customer, c, placed, shipTo, method, totals))
	return res, nil
}

func (o *Orchestrator) selectAddress(ctx context.Context, userID, addressID int64) (address.Address, error) {
	if addressID == 0 {
		return address.Address{}, ErrNoAddress
	}
	addrs, err := o.backend.ListAddresses(ctx, userID)
	if err != nil {
		return address.Address{}, fmt.Errorf("failed to load addresses: %w", err)
	}
	a, ok := address.Find(addrs, addressID)
	if !ok {
		return address.Address{}, ErrNoAddress
	}
	return a, nil
}

// orderLines maps every cart line to an order line or fails as a whole.
func orderLines(c cart.Cart) ([]backend.OrderLine, error) {
	lines := make([]backend.OrderLine, 0, len(c.Items))
	for _, item := range c.Items {
		switch {
		case item.ProductID == 0:
			return nil, &InvalidLineError{Reason: "missing product"}
		case !item.Priced:
			return nil, &InvalidLineError{ProductID: item.ProductID, Reason: "missing price"}
		case item.Quantity < 1:
			return nil, &InvalidLineError{ProductID: item.ProductID, Reason: "invalid quantity"}
		}
		lines = append(lines, backend.OrderLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return lines, nil
}

func (o *Orchestrator) orderPlaced(customer *Customer, c cart.Cart, placed order.Order, shipTo address.Address, method order.PaymentMethod, totals money.Totals) events.OrderPlaced {
	total := placed.TotalAmount
	if total == 0 {
		total = totals.GrandTotal
	}
	items := make([]events.OrderPlacedItem, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, events.OrderPlacedItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return events.OrderPlaced{
		OrderID:         placed.ID,
		UserID:          customer.ID,
		Email:           customer.Email,
		CustomerName:    customer.Name,
		Total:           total,
		Items:           items,
		ShippingAddress: formatAddress(shipTo),
		PaymentMethod:   string(method),
		PlacedAt:        o.now(),
	}
}

func formatAddress(a address.Address) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Street, a.City, a.ZipCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
