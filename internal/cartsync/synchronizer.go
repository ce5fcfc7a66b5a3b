// Package cartsync keeps the storefront's view of each cart in step with its
// source of truth: the backend for signed-in users, the guest store for
// everyone else.
package cartsync

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/catalog"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/money"
)

// Backend is the cart half of the backend client.
type Backend interface {
	GetCart(ctx context.Context, userID int64) (cart.Cart, error)
	AddToCart(ctx context.Context, userID, productID int64, qty int) (cart.Cart, error)
	UpdateCartItem(ctx context.Context, userID, productID int64, qty int) (cart.Cart, error)
	RemoveCartItem(ctx context.Context, userID, productID int64) (cart.Cart, error)
	ClearCart(ctx context.Context, userID int64) error
}

// ProductLookup resolves current product details and stock.
type ProductLookup interface {
	FreshProduct(ctx context.Context, id int64) (catalog.Product, error)
}

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
)

// View is an owner's cart as last synchronized.
type View struct {
	Owner   cart.Owner      `json:"owner"`
	Items   []cart.LineItem `json:"items"`
	Totals  money.Totals    `json:"totals"`
	Status  Status          `json:"status"`
	Error   string          `json:"error,omitempty"`
	Version uint64          `json:"version"`
}

func (v View) Cart() cart.Cart {
	return cart.New(v.Owner, v.Items...)
}

type ownerState struct {
	lock     chan struct{}
	cart     cart.Cart
	loaded   bool
	inflight int
	lastErr  error
	gen      uint64
	lastUsed time.Time
}

// acquire takes the owner's mutation lock, giving up when ctx ends.
func (st *ownerState) acquire(ctx context.Context) error {
	select {
	case st.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (st *ownerState) release() {
	<-st.lock
}

// busy reports whether an operation holds or uses the state. Caller holds
// the synchronizer mutex.
func (st *ownerState) busy() bool {
	return st.inflight > 0 || len(st.lock) > 0
}

// Synchronizer serializes mutations per owner; different owners never wait
// on each other. Loads do not take the lock: a load that finishes after a
// newer mutation was applied is discarded.
type Synchronizer struct {
	backend   Backend
	guests    *GuestStore
	products  ProductLookup
	policy    money.Policy
	publisher events.Publisher
	now       func() time.Time

	mu     sync.Mutex
	states map[string]*ownerState
}

func NewSynchronizer(b Backend, guests *GuestStore, products ProductLookup, policy money.Policy, publisher events.Publisher) *Synchronizer {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Synchronizer{
		backend:   b,
		guests:    guests,
		products:  products,
		policy:    policy,
		publisher: publisher,
		now:       time.Now,
		states:    make(map[string]*ownerState),
	}
}

func (s *Synchronizer) Policy() money.Policy {
	return s.policy
}

func (s *Synchronizer) state(owner cart.Owner) *ownerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := owner.Key()
	st, ok := s.states[key]
	if !ok {
		st = &ownerState{lock: make(chan struct{}, 1), cart: cart.New(owner)}
		s.states[key] = st
	}
	st.lastUsed = s.now()
	return st
}

// Snapshot returns the cached view without any I/O.
func (s *Synchronizer) Snapshot(owner cart.Owner) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[owner.Key()]
	if !ok {
		return s.viewOf(owner, cart.New(owner), StatusIdle, nil, 0)
	}
	return s.viewLocked(owner, st)
}

func (s *Synchronizer) viewLocked(owner cart.Owner, st *ownerState) View {
	status := StatusIdle
	if st.inflight > 0 {
		status = StatusLoading
	}
	return s.viewOf(owner, st.cart, status, st.lastErr, st.gen)
}

func (s *Synchronizer) viewOf(owner cart.Owner, c cart.Cart, status Status, err error, gen uint64) View {
	items := make([]cart.LineItem, len(c.Items))
	copy(items, c.Items)
	v := View{
		Owner:   owner,
		Items:   items,
		Totals:  money.Compute(s.policy, items),
		Status:  status,
		Version: gen,
	}
	if err != nil {
		v.Error = err.Error()
	}
	return v
}

// Forget drops cached state for owner, e.g. on logout. State still in use
// by an operation keeps its lock and is only marked for reload.
func (s *Synchronizer) Forget(owner cart.Owner) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := owner.Key()
	st, ok := s.states[key]
	if !ok {
		return
	}
	if st.busy() {
		st.loaded = false
		return
	}
	delete(s.states, key)
}

// Sweep drops cached state untouched for longer than maxIdle. The durable
// copies are unaffected.
func (s *Synchronizer) Sweep(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	n := 0
	for key, st := range s.states {
		if !st.busy() && st.lastUsed.Before(cutoff) {
			delete(s.states, key)
			n++
		}
	}
	return n
}

func (s *Synchronizer) fetch(ctx context.Context, owner cart.Owner) (cart.Cart, error) {
	if owner.Authenticated() {
		return s.backend.GetCart(ctx, owner.UserID)
	}
	return s.guests.Load(ctx, owner.GuestID)
}

// Refresh reads the cart from its source of truth and caches it.
func (s *Synchronizer) Refresh(ctx context.Context, owner cart.Owner) (cart.Cart, error) {
	if !owner.Valid() {
		return cart.Cart{}, cart.ErrNoOwner
	}
	st := s.state(owner)

	s.mu.Lock()
	gen := st.gen
	st.inflight++
	s.mu.Unlock()

	fetched, err := s.fetch(ctx, owner)

	s.mu.Lock()
	defer s.mu.Unlock()
	st.inflight--

	if err != nil {
		st.lastErr = err
		log.Printf("[Cart] Failed to load cart for %s: %v", owner, err)
		return cart.Cart{}, err
	}
	if ctx.Err() != nil {
		return cart.Cart{}, ctx.Err()
	}
	if st.gen != gen {
		// A newer state landed while this read was in flight.
		return st.cart, nil
	}
	st.cart = fetched
	st.loaded = true
	st.lastErr = nil
	st.gen++
	return fetched, nil
}

func (s *Synchronizer) Load(ctx context.Context, owner cart.Owner) (View, error) {
	if _, err := s.Refresh(ctx, owner); err != nil {
		return s.Snapshot(owner), err
	}
	return s.Snapshot(owner), nil
}

// Get returns the cached view, loading it on first use.
func (s *Synchronizer) Get(ctx context.Context, owner cart.Owner) (View, error) {
	s.mu.Lock()
	st, ok := s.states[owner.Key()]
	loaded := ok && st.loaded
	s.mu.Unlock()

	if loaded {
		return s.Snapshot(owner), nil
	}
	return s.Load(ctx, owner)
}

// current returns the cached cart, loading it first if needed. Caller holds
// the owner lock.
func (s *Synchronizer) current(ctx context.Context, owner cart.Owner, st *ownerState) (cart.Cart, error) {
	s.mu.Lock()
	if st.loaded {
		c := st.cart
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()
	return s.Refresh(ctx, owner)
}

// lock acquires the owner's mutation lock on the state currently registered
// for owner. A state dropped by Forget or Sweep while waiting is abandoned.
func (s *Synchronizer) lock(ctx context.Context, owner cart.Owner) (*ownerState, error) {
	for {
		st := s.state(owner)
		if err := st.acquire(ctx); err != nil {
			return nil, err
		}
		s.mu.Lock()
		registered := s.states[owner.Key()] == st
		s.mu.Unlock()
		if registered {
			return st, nil
		}
		st.release()
	}
}

type mutation func(ctx context.Context, current cart.Cart) (cart.Cart, error)

func (s *Synchronizer) mutate(ctx context.Context, owner cart.Owner, op string, fn mutation) (View, error) {
	if !owner.Valid() {
		return View{}, cart.ErrNoOwner
	}
	st, err := s.lock(ctx, owner)
	if err != nil {
		return s.Snapshot(owner), err
	}
	defer st.release()

	s.mu.Lock()
	st.inflight++
	s.mu.Unlock()

	next, err := s.run(ctx, owner, st, fn)

	s.mu.Lock()
	st.inflight--
	switch {
	case err != nil:
		st.lastErr = err
	case ctx.Err() != nil:
		// The caller gave up after the change was made; the cached copy can
		// no longer be trusted.
		st.loaded = false
		err = ctx.Err()
	default:
		st.cart = next
		st.loaded = true
		st.lastErr = nil
		st.gen++
	}
	view := s.viewLocked(owner, st)
	s.mu.Unlock()

	if err != nil {
		log.Printf("[Cart] %s failed for %s: %v", op, owner, err)
		return view, err
	}

	totals := view.Totals
	s.publisher.Publish(events.CartChanged{
		OwnerKey:   owner.Key(),
		ItemCount:  totals.ItemCount,
		Subtotal:   totals.Subtotal,
		OccurredAt: s.now(),
	})
	return view, nil
}

func (s *Synchronizer) run(ctx context.Context, owner cart.Owner, st *ownerState, fn mutation) (cart.Cart, error) {
	current, err := s.current(ctx, owner, st)
	if err != nil {
		return cart.Cart{}, err
	}
	return fn(ctx, current)
}

func lineFromProduct(p catalog.Product, qty int) cart.LineItem {
	return cart.LineItem{
		LineID:        p.ID,
		ProductID:     p.ID,
		Name:          p.Name,
		ImageURL:      p.ImageURL,
		Price:         p.Price,
		Priced:        p.Priced,
		StockQuantity: p.StockQuantity,
		Quantity:      qty,
	}
}

// Add puts qty units of productID in the owner's cart, merging with an
// existing line. The resulting quantity may not exceed known stock.
func (s *Synchronizer) Add(ctx context.Context, owner cart.Owner, productID int64, qty int) (View, error) {
	if productID <= 0 {
		return s.Snapshot(owner), cart.ErrInvalidProduct
	}
	if qty < 1 {
		return s.Snapshot(owner), cart.ErrInvalidQuantity
	}

	return s.mutate(ctx, owner, "Add", func(ctx context.Context, current cart.Cart) (cart.Cart, error) {
		p, err := s.products.FreshProduct(ctx, productID)
		if err != nil {
			return cart.Cart{}, err
		}
		next, err := current.Add(lineFromProduct(p, qty))
		if err != nil {
			return cart.Cart{}, err
		}

		if owner.Authenticated() {
			return s.backend.AddToCart(ctx, owner.UserID, productID, qty)
		}
		if err := s.guests.Save(ctx, next); err != nil {
			return cart.Cart{}, err
		}
		return next, nil
	})
}

// UpdateQuantity sets a line's quantity. Quantities below one are rejected;
// use Remove to drop a line.
func (s *Synchronizer) UpdateQuantity(ctx context.Context, owner cart.Owner, productID int64, qty int) (View, error) {
	if qty < 1 {
		return s.Snapshot(owner), cart.ErrInvalidQuantity
	}

	return s.mutate(ctx, owner, "UpdateQuantity", func(ctx context.Context, current cart.Cart) (cart.Cart, error) {
		existing, idx := current.Find(productID)
		if idx < 0 && owner.Authenticated() {
			// The cached copy may predate changes made elsewhere.
			fresh, err := s.backend.GetCart(ctx, owner.UserID)
			if err != nil {
				return cart.Cart{}, err
			}
			current = fresh
			existing, idx = current.Find(productID)
		}
		if idx < 0 {
			return cart.Cart{}, cart.ErrItemNotInCart
		}

		stock := existing.StockQuantity
		p, err := s.products.FreshProduct(ctx, productID)
		switch {
		case err == nil:
			stock = p.StockQuantity
		case !errors.Is(err, catalog.ErrProductNotFound):
			return cart.Cart{}, err
		}
		if err := cart.CheckStock(stock, qty); err != nil {
			return cart.Cart{}, err
		}

		if owner.Authenticated() {
			return s.backend.UpdateCartItem(ctx, owner.UserID, productID, qty)
		}
		items := append([]cart.LineItem(nil), current.Items...)
		items[idx].StockQuantity = stock
		next, err := cart.New(current.Owner, items...).SetQuantity(productID, qty)
		if err != nil {
			return cart.Cart{}, err
		}
		if err := s.guests.Save(ctx, next); err != nil {
			return cart.Cart{}, err
		}
		return next, nil
	})
}

func (s *Synchronizer) Remove(ctx context.Context, owner cart.Owner, productID int64) (View, error) {
	return s.mutate(ctx, owner, "Remove", func(ctx context.Context, current cart.Cart) (cart.Cart, error) {
		if owner.Authenticated() {
			return s.backend.RemoveCartItem(ctx, owner.UserID, productID)
		}
		next := current.Remove(productID)
		if err := s.guests.Save(ctx, next); err != nil {
			return cart.Cart{}, err
		}
		return next, nil
	})
}

func (s *Synchronizer) Clear(ctx context.Context, owner cart.Owner) (View, error) {
	return s.mutate(ctx, owner, "Clear", func(ctx context.Context, current cart.Cart) (cart.Cart, error) {
		if owner.Authenticated() {
			if err := s.backend.ClearCart(ctx, owner.UserID); err != nil {
				return cart.Cart{}, err
			}
		} else if err := s.guests.Delete(ctx, owner.GuestID); err != nil {
			return cart.Cart{}, err
		}
		return current.Cleared(), nil
	})
}
