package cartsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/money"
)

// Guest carts are kept in the same shape the backend uses for user carts so
// a merge on login needs no translation.
type guestProduct struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Price         *money.Amount `json:"price"`
	ImageURL      string        `json:"imageUrl,omitempty"`
	StockQuantity *int          `json:"stockQuantity,omitempty"`
}

type guestItem struct {
	ID       int64        `json:"id"`
	Product  guestProduct `json:"product"`
	Quantity int          `json:"quantity"`
}

type guestCartDoc struct {
	CartItems []guestItem `json:"cartItems"`
}

// GuestStore persists guest carts in the key-value store under
// guestCart:<guestID>.
type GuestStore struct {
	kv  store.KeyValueStore
	ttl time.Duration
}

func NewGuestStore(kv store.KeyValueStore, ttl time.Duration) *GuestStore {
	return &GuestStore{kv: kv, ttl: ttl}
}

func guestKey(guestID string) string {
	return "guestCart:" + guestID
}

// Load returns the guest's cart; a missing or unreadable entry is an empty
// cart.
func (g *GuestStore) Load(ctx context.Context, guestID string) (cart.Cart, error) {
	owner := cart.GuestOwner(guestID)
	data, err := g.kv.Get(ctx, guestKey(guestID))
	if errors.Is(err, store.ErrNotFound) {
		return cart.New(owner), nil
	}
	if err != nil {
		return cart.Cart{}, fmt.Errorf("failed to load guest cart: %w", err)
	}

	var doc guestCartDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("[Cart] Discarding unreadable guest cart %s: %v", guestID, err)
		return cart.New(owner), nil
	}

	c := cart.New(owner)
	for _, it := range doc.CartItems {
		if it.Product.ID == 0 || it.Quantity < 1 {
			continue
		}
		line := cart.LineItem{
			LineID:        it.ID,
			ProductID:     it.Product.ID,
			Name:          it.Product.Name,
			ImageURL:      it.Product.ImageURL,
			StockQuantity: cart.UnknownStock,
			Quantity:      it.Quantity,
		}
		if it.Product.Price != nil {
			line.Price = *it.Product.Price
			line.Priced = true
		}
		if it.Product.StockQuantity != nil {
			line.StockQuantity = *it.Product.StockQuantity
		}
		c.Items = append(c.Items, line)
	}
	return c, nil
}

// Save writes the cart; an empty cart removes the entry.
func (g *GuestStore) Save(ctx context.Context, c cart.Cart) error {
	if c.IsEmpty() {
		return g.Delete(ctx, c.Owner.GuestID)
	}

	doc := guestCartDoc{CartItems: make([]guestItem, 0, len(c.Items))}
	for _, line := range c.Items {
		it := guestItem{
			ID:       line.LineID,
			Quantity: line.Quantity,
			Product: guestProduct{
				ID:       line.ProductID,
				Name:     line.Name,
				ImageURL: line.ImageURL,
			},
		}
		if it.ID == 0 {
			it.ID = line.ProductID
		}
		if line.Priced {
			price := line.Price
			it.Product.Price = &price
		}
		if line.StockQuantity != cart.UnknownStock {
			stock := line.StockQuantity
			it.Product.StockQuantity = &stock
		}
		doc.CartItems = append(doc.CartItems, it)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode guest cart: %w", err)
	}
	if err := g.kv.Set(ctx, guestKey(c.Owner.GuestID), data, g.ttl); err != nil {
		return fmt.Errorf("failed to save guest cart: %w", err)
	}
	return nil
}

func (g *GuestStore) Delete(ctx context.Context, guestID string) error {
	if err := g.kv.Delete(ctx, guestKey(guestID)); err != nil {
		return fmt.Errorf("failed to delete guest cart: %w", err)
	}
	return nil
}
