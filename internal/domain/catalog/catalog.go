package catalog

import (
	"errors"

	"github.com/example/ec-storefront/internal/money"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	Price         money.Amount `json:"price"`
	Priced        bool         `json:"priced"`
	StockQuantity int          `json:"stockQuantity"`
	SKU           string       `json:"sku,omitempty"`
	ImageURL      string       `json:"imageUrl,omitempty"`
	CategoryID    int64        `json:"categoryId,omitempty"`
	CategoryName  string       `json:"categoryName,omitempty"`
}

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
