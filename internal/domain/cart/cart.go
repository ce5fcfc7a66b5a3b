package cart

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/example/ec-storefront/internal/money"
)

// UnknownStock marks a line whose product did not report a stock quantity.
const UnknownStock = -1

var (
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInvalidProduct    = errors.New("product id is required")
	ErrItemNotInCart     = errors.New("item not in cart")
	ErrInsufficientStock = errors.New("requested quantity exceeds available stock")
	ErrNoOwner           = errors.New("cart owner is required")
)

// Owner identifies whose cart this is: a signed-in user or a guest browser.
// Exactly one of the two fields is set.
type Owner struct {
	UserID  int64  `json:"userId,omitempty"`
	GuestID string `json:"guestId,omitempty"`
}

func UserOwner(userID int64) Owner    { return Owner{UserID: userID} }
func GuestOwner(guestID string) Owner { return Owner{GuestID: guestID} }

func (o Owner) Authenticated() bool { return o.UserID != 0 }

func (o Owner) Valid() bool {
	return (o.UserID != 0) != (o.GuestID != "")
}

// Key is the owner's identity as a single string, used for locks and topics.
func (o Owner) Key() string {
	if o.Authenticated() {
		return "user:" + strconv.FormatInt(o.UserID, 10)
	}
	return "guest:" + o.GuestID
}

func (o Owner) String() string { return o.Key() }

// LineItem is a product and the quantity requested of it.
type LineItem struct {
	LineID        int64        `json:"id,omitempty"`
	ProductID     int64        `json:"productId"`
	Name          string       `json:"name"`
	ImageURL      string       `json:"imageUrl,omitempty"`
	Price         money.Amount `json:"price"`
	Priced        bool         `json:"priced"`
	StockQuantity int          `json:"stockQuantity"`
	Quantity      int          `json:"quantity"`
}

func (l LineItem) UnitPrice() (money.Amount, bool) { return l.Price, l.Priced }
func (l LineItem) Qty() int                        { return l.Quantity }

func (l LineItem) Total() money.Amount {
	if !l.Priced {
		return 0
	}
	return money.LineTotal(l.Price, l.Quantity)
}

// CheckStock rejects qty when it exceeds a known stock quantity.
func CheckStock(stock, qty int) error {
	if stock == UnknownStock || qty <= stock {
		return nil
	}
	return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStock, qty, stock)
}

// Cart is a value: mutating methods return a new Cart and leave the receiver
// untouched.
type Cart struct {
	Owner Owner      `json:"owner"`
	Items []LineItem `json:"items"`
}

func New(owner Owner, items ...LineItem) Cart {
	return Cart{Owner: owner, Items: items}
}

// Find returns the line for productID and its index, or -1.
func (c Cart) Find(productID int64) (LineItem, int) {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return item, i
		}
	}
	return LineItem{}, -1
}

func (c Cart) clone() Cart {
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Owner: c.Owner, Items: items}
}

// Add merges item into the cart by product id, adding its quantity to any
// existing line and refreshing the product details.
func (c Cart) Add(item LineItem) (Cart, error) {
	if item.ProductID == 0 {
		return c, ErrInvalidProduct
	}
	if item.Quantity < 1 {
		return c, ErrInvalidQuantity
	}

	next := c.clone()
	existing, idx := next.Find(item.ProductID)
	if idx < 0 {
		if err := CheckStock(item.StockQuantity, item.Quantity); err != nil {
			return c, err
		}
		next.Items = append(next.Items, item)
		return next, nil
	}

	merged := item
	merged.LineID = existing.LineID
	merged.Quantity = existing.Quantity + item.Quantity
	if err := CheckStock(merged.StockQuantity, merged.Quantity); err != nil {
		return c, err
	}
	next.Items[idx] = merged
	return next, nil
}

// SetQuantity replaces the quantity of an existing line. Quantities below one
// are rejected; removal is a separate operation.
func (c Cart) SetQuantity(productID int64, qty int) (Cart, error) {
	if qty < 1 {
		return c, ErrInvalidQuantity
	}
	existing, idx := c.Find(productID)
	if idx < 0 {
		return c, ErrItemNotInCart
	}
	if err := CheckStock(existing.StockQuantity, qty); err != nil {
		return c, err
	}
	next := c.clone()
	next.Items[idx].Quantity = qty
	return next, nil
}

// Remove drops the line for productID. Removing an absent product is a no-op.
func (c Cart) Remove(productID int64) Cart {
	next := Cart{Owner: c.Owner, Items: make([]LineItem, 0, len(c.Items))}
	for _, item := range c.Items {
		if item.ProductID != productID {
			next.Items = append(next.Items, item)
		}
	}
	return next
}

func (c Cart) Cleared() Cart {
	return Cart{Owner: c.Owner, Items: []LineItem{}}
}

// ItemCount is the sum of quantities across lines.
func (c Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (c Cart) DistinctLines() int { return len(c.Items) }

func (c Cart) IsEmpty() bool { return len(c.Items) == 0 }

func (c Cart) Totals(p money.Policy) money.Totals {
	return money.Compute(p, c.Items)
}
