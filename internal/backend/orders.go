package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/example/ec-storefront/internal/domain/order"
)

// CreateOrder submits all lines in a single call.
func (c *Client) CreateOrder(ctx context.Context, userID int64, lines []OrderLine) (order.Order, error) {
	var dto orderDTO
	err := c.do(ctx, "CreateOrder", http.MethodPost, idPath("/orders/user/%d", userID), nil, lines, &dto)
	if err != nil {
		return order.Order{}, err
	}
	return dto.toDomain(userID), nil
}

func (c *Client) ListOrders(ctx context.Context, userID int64) ([]order.Order, error) {
	var dtos []orderDTO
	if err := c.get(ctx, "ListOrders", idPath("/orders/user/%d", userID), nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]order.Order, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain(userID))
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, id int64) (order.Order, error) {
	var dto orderDTO
	if err := c.get(ctx, "GetOrder", idPath("/orders/%d", id), nil, &dto); err != nil {
		return order.Order{}, err
	}
	return dto.toDomain(0), nil
}

func (c *Client) CreatePayment(ctx context.Context, orderID int64, method order.PaymentMethod) (order.Payment, error) {
	var dto paymentDTO
	query := url.Values{"paymentMethod": {string(method)}}
	err := c.do(ctx, "CreatePayment", http.MethodPost, idPath("/payment/order/%d", orderID), query, nil, &dto)
	if err != nil {
		return order.Payment{}, err
	}
	return dto.toDomain(orderID), nil
}

// UpdateOrderStatus moves an order to status; the backend owns the lifecycle.
func (c *Client) UpdateOrderStatus(ctx context.Context, id int64, status order.Status) (order.Order, error) {
	var dto orderDTO
	query := url.Values{"status": {string(status)}}
	err := c.do(ctx, "UpdateOrderStatus", http.MethodPut, idPath("/orders/%d/status", id), query, nil, &dto)
	if err != nil {
		return order.Order{}, err
	}
	return dto.toDomain(0), nil
}
