package cartsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/catalog"
	"github.com/example/ec-storefront/internal/events"
)

// mockBackend keeps one server cart per user and records every call.
type mockBackend struct {
	mu       sync.Mutex
	carts    map[int64]cart.Cart
	products map[int64]catalog.Product
	calls    []string

	failNext error
	failAdd  map[int64]error

	getGate  chan struct{}
	addGate  chan struct{}
	inflight atomic.Int32
	maxSeen  atomic.Int32
}

func newMockBackend(products map[int64]catalog.Product) *mockBackend {
	return &mockBackend{
		carts:    make(map[int64]cart.Cart),
		products: products,
		failAdd:  make(map[int64]error),
	}
}

func (m *mockBackend) enter(call string) func() {
	n := m.inflight.Add(1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
	return func() { m.inflight.Add(-1) }
}

func (m *mockBackend) takeFailure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *mockBackend) cartOf(userID int64) cart.Cart {
	c, ok := m.carts[userID]
	if !ok {
		c = cart.New(cart.UserOwner(userID))
	}
	return cart.New(c.Owner, append([]cart.LineItem(nil), c.Items...)...)
}

func (m *mockBackend) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockBackend) GetCart(ctx context.Context, userID int64) (cart.Cart, error) {
	defer m.enter("GetCart")()
	if m.getGate != nil {
		<-m.getGate
	}
	if err := m.takeFailure(); err != nil {
		return cart.Cart{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cartOf(userID), nil
}

func (m *mockBackend) AddToCart(ctx context.Context, userID, productID int64, qty int) (cart.Cart, error) {
	defer m.enter("AddToCart")()
	if m.addGate != nil {
		<-m.addGate
	}
	if err := m.takeFailure(); err != nil {
		return cart.Cart{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failAdd[productID]; err != nil {
		return cart.Cart{}, err
	}
	p := m.products[productID]
	c := m.cartOf(userID)
	line := lineFromProduct(p, qty)
	line.LineID = int64(len(c.Items) + 100)
	next, err := c.Add(line)
	if err != nil {
		return cart.Cart{}, err
	}
	m.carts[userID] = next
	return next, nil
}

func (m *mockBackend) UpdateCartItem(ctx context.Context, userID, productID int64, qty int) (cart.Cart, error) {
	defer m.enter("UpdateCartItem")()
	if err := m.takeFailure(); err != nil {
		return cart.Cart{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := m.cartOf(userID).SetQuantity(productID, qty)
	if err != nil {
		return cart.Cart{}, err
	}
	m.carts[userID] = next
	return next, nil
}

func (m *mockBackend) RemoveCartItem(ctx context.Context, userID, productID int64) (cart.Cart, error) {
	defer m.enter("RemoveCartItem")()
	if err := m.takeFailure(); err != nil {
		return cart.Cart{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.cartOf(userID).Remove(productID)
	m.carts[userID] = next
	return next, nil
}

func (m *mockBackend) ClearCart(ctx context.Context, userID int64) error {
	defer m.enter("ClearCart")()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[userID] = cart.New(cart.UserOwner(userID))
	return nil
}

// FreshProduct lets the mock double as the product lookup.
func (m *mockBackend) FreshProduct(ctx context.Context, id int64) (catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "FreshProduct")
	p, ok := m.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

var errBackendDown = errors.New("backend down")
