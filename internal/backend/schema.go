package backend

import (
	"strings"
	"time"

	"github.com/example/ec-storefront/internal/domain/address"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/catalog"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/money"
)

// Wire shapes as the backend sends them. Optional fields are pointers so a
// missing value can be told apart from a zero one.

type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	Token     string `json:"token,omitempty"`
}

// DisplayName is "First Last", or the local part of the email when both are
// empty.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

type categoryDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (c categoryDTO) toDomain() catalog.Category {
	return catalog.Category{ID: c.ID, Name: c.Name, Description: c.Description}
}

type productDTO struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Price         *money.Amount `json:"price"`
	StockQuantity *int          `json:"stockQuantity"`
	ImageURL      string        `json:"imageUrl"`
	SKU           string        `json:"sku"`
	Category      *categoryDTO  `json:"category"`
}

func (c *Client) toProduct(p productDTO) catalog.Product {
	out := catalog.Product{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		SKU:           p.SKU,
		ImageURL:      c.AbsoluteURL(p.ImageURL),
		StockQuantity: cart.UnknownStock,
	}
	if p.Price != nil {
		out.Price = *p.Price
		out.Priced = true
	}
	if p.StockQuantity != nil {
		out.StockQuantity = *p.StockQuantity
	}
	if p.Category != nil {
		out.CategoryID = p.Category.ID
		out.CategoryName = p.Category.Name
	}
	return out
}

type cartItemDTO struct {
	ID       int64       `json:"id"`
	Product  *productDTO `json:"product"`
	Quantity *int        `json:"quantity"`
}

type cartDTO struct {
	ID        int64         `json:"id"`
	CartItems []cartItemDTO `json:"cartItems"`
}

func (c *Client) toCart(userID int64, dto cartDTO) cart.Cart {
	out := cart.Cart{Owner: cart.UserOwner(userID), Items: make([]cart.LineItem, 0, len(dto.CartItems))}
	for _, it := range dto.CartItems {
		line := cart.LineItem{
			LineID:        it.ID,
			Quantity:      1,
			StockQuantity: cart.UnknownStock,
		}
		if it.Quantity != nil {
			line.Quantity = *it.Quantity
		}
		if it.Product != nil {
			p := c.toProduct(*it.Product)
			line.ProductID = p.ID
			line.Name = p.Name
			line.ImageURL = p.ImageURL
			line.Price = p.Price
			line.Priced = p.Priced
			line.StockQuantity = p.StockQuantity
		}
		out.Items = append(out.Items, line)
	}
	return out
}

type addressDTO struct {
	ID        int64  `json:"id"`
	Street    string `json:"street"`
	City      string `json:"city"`
	ZipCode   string `json:"zipCode"`
	IsDefault *bool  `json:"isDefault,omitempty"`
	Default   *bool  `json:"default,omitempty"`
}

func (a addressDTO) toDomain(userID int64) address.Address {
	out := address.Address{
		ID:      a.ID,
		UserID:  userID,
		Street:  a.Street,
		City:    a.City,
		ZipCode: a.ZipCode,
	}
	switch {
	case a.IsDefault != nil:
		out.IsDefault = *a.IsDefault
	case a.Default != nil:
		out.IsDefault = *a.Default
	}
	return out
}

func fromAddress(a address.Address) addressDTO {
	def := a.IsDefault
	return addressDTO{
		ID:        a.ID,
		Street:    a.Street,
		City:      a.City,
		ZipCode:   a.ZipCode,
		IsDefault: &def,
	}
}

// OrderLine is the order-creation payload element.
type OrderLine struct {
	ProductID int64        `json:"productId"`
	Quantity  int          `json:"quantity"`
	Price     money.Amount `json:"price"`
}

type orderItemDTO struct {
	ID        int64         `json:"id"`
	ProductID int64         `json:"productId"`
	Product   *productDTO   `json:"product"`
	Quantity  int           `json:"quantity"`
	Price     *money.Amount `json:"price"`
	UnitPrice *money.Amount `json:"unitPrice"`
}

// price prefers the explicit price and falls back to the unit price the
// backend records at purchase.
func (it orderItemDTO) price() money.Amount {
	switch {
	case it.Price != nil:
		return *it.Price
	case it.UnitPrice != nil:
		return *it.UnitPrice
	}
	return 0
}

type orderDTO struct {
	ID              int64          `json:"id"`
	OrderNumber     string         `json:"orderNumber"`
	User            *User          `json:"user"`
	OrderItems      []orderItemDTO `json:"orderItems"`
	Items           []orderItemDTO `json:"items"`
	TotalAmount     money.Amount   `json:"totalAmount"`
	Status          string         `json:"status"`
	OrderDate       string         `json:"orderDate"`
	ShippingAddress *addressDTO    `json:"shippingAddress"`
	PaymentMethod   string         `json:"paymentMethod"`
	PaymentStatus   string         `json:"paymentStatus"`
	TransactionID   string         `json:"transactionId"`
}

func (o orderDTO) toDomain(userID int64) order.Order {
	if o.User != nil && o.User.ID != 0 {
		userID = o.User.ID
	}
	items := o.OrderItems
	if len(items) == 0 {
		items = o.Items
	}

	out := order.Order{
		ID:            o.ID,
		Number:        o.OrderNumber,
		UserID:        userID,
		Items:         make([]order.Line, 0, len(items)),
		TotalAmount:   o.TotalAmount,
		Status:        order.ParseStatus(o.Status),
		OrderDate:     parseTime(o.OrderDate),
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		TransactionID: o.TransactionID,
	}
	for _, it := range items {
		line := order.Line{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.price()}
		if it.Product != nil {
			line.ProductID = it.Product.ID
			line.ProductName = it.Product.Name
		}
		out.Items = append(out.Items, line)
	}
	if o.ShippingAddress != nil {
		a := o.ShippingAddress.toDomain(userID)
		out.ShippingAddress = &a
	}
	return out
}

type paymentDTO struct {
	ID            int64        `json:"id"`
	Amount        money.Amount `json:"amount"`
	Status        string       `json:"status"`
	PaymentMethod string       `json:"paymentMethod"`
	TransactionID string       `json:"transactionId"`
	PaymentDate   string       `json:"paymentDate"`
}

func (p paymentDTO) toDomain(orderID int64) order.Payment {
	return order.Payment{
		ID:            p.ID,
		OrderID:       orderID,
		Amount:        p.Amount,
		Status:        p.Status,
		PaymentMethod: p.PaymentMethod,
		TransactionID: p.TransactionID,
		PaymentDate:   parseTime(p.PaymentDate),
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime accepts the backend's local date-times (no zone) as UTC. An
// unparsable value yields the zero time.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
