package backend

import (
	"context"
	"net/url"

	"github.com/example/ec-storefront/internal/domain/catalog"
)

func (c *Client) products(ctx context.Context, op, path string, query url.Values) ([]catalog.Product, error) {
	var dtos []productDTO
	if err := c.get(ctx, op, path, query, &dtos); err != nil {
		return nil, err
	}
	out := make([]catalog.Product, 0, len(dtos))
	for _, p := range dtos {
		out = append(out, c.toProduct(p))
	}
	return out, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	return c.products(ctx, "ListProducts", "/products", nil)
}

func (c *Client) ProductsByCategory(ctx context.Context, categoryID int64) ([]catalog.Product, error) {
	return c.products(ctx, "ProductsByCategory", idPath("/products/category/%d", categoryID), nil)
}

// SearchProducts forwards keyword unchanged; matching is the backend's job.
func (c *Client) SearchProducts(ctx context.Context, keyword string) ([]catalog.Product, error) {
	return c.products(ctx, "SearchProducts", "/products/search", url.Values{"keyword": {keyword}})
}

func (c *Client) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	var dto productDTO
	if err := c.get(ctx, "GetProduct", idPath("/products/%d", id), nil, &dto); err != nil {
		return catalog.Product{}, err
	}
	return c.toProduct(dto), nil
}

func (c *Client) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	var dtos []categoryDTO
	if err := c.get(ctx, "ListCategories", "/categories", nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]catalog.Category, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain())
	}
	return out, nil
}
