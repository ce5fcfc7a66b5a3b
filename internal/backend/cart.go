package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/example/ec-storefront/internal/domain/cart"
)

func (c *Client) GetCart(ctx context.Context, userID int64) (cart.Cart, error) {
	var dto cartDTO
	if err := c.get(ctx, "GetCart", idPath("/cart/%d", userID), nil, &dto); err != nil {
		return cart.Cart{}, err
	}
	return c.toCart(userID, dto), nil
}

func (c *Client) AddToCart(ctx context.Context, userID, productID int64, qty int) (cart.Cart, error) {
	return c.mutateCart(ctx, "AddToCart", http.MethodPost,
		idPath("/cart/%d/add/%d", userID, productID), quantity(qty), userID)
}

func (c *Client) UpdateCartItem(ctx context.Context, userID, productID int64, qty int) (cart.Cart, error) {
	return c.mutateCart(ctx, "UpdateCartItem", http.MethodPut,
		idPath("/cart/%d/update/%d", userID, productID), quantity(qty), userID)
}

func (c *Client) RemoveCartItem(ctx context.Context, userID, productID int64) (cart.Cart, error) {
	return c.mutateCart(ctx, "RemoveCartItem", http.MethodDelete,
		idPath("/cart/%d/remove/%d", userID, productID), nil, userID)
}

// ClearCart empties the user's server cart. The backend may answer with an
// empty body.
func (c *Client) ClearCart(ctx context.Context, userID int64) error {
	return c.do(ctx, "ClearCart", http.MethodDelete, idPath("/cart/%d/clear", userID), nil, nil, nil)
}

func (c *Client) mutateCart(ctx context.Context, op, method, path string, query url.Values, userID int64) (cart.Cart, error) {
	var dto cartDTO
	if err := c.do(ctx, op, method, path, query, nil, &dto); err != nil {
		return cart.Cart{}, err
	}
	return c.toCart(userID, dto), nil
}

func quantity(qty int) url.Values {
	return url.Values{"quantity": {strconv.Itoa(qty)}}
}
