package backend

import (
	"context"
	"net/http"

	"github.com/example/ec-storefront/internal/domain/address"
)

func (c *Client) ListAddresses(ctx context.Context, userID int64) ([]address.Address, error) {
	var dtos []addressDTO
	if err := c.get(ctx, "ListAddresses", idPath("/addresses/user/%d", userID), nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]address.Address, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain(userID))
	}
	return out, nil
}

func (c *Client) CreateAddress(ctx context.Context, userID int64, a address.Address) (address.Address, error) {
	var dto addressDTO
	err := c.do(ctx, "CreateAddress", http.MethodPost, idPath("/addresses/user/%d", userID), nil, fromAddress(a), &dto)
	if err != nil {
		return address.Address{}, err
	}
	return dto.toDomain(userID), nil
}

func (c *Client) UpdateAddress(ctx context.Context, a address.Address) (address.Address, error) {
	var dto addressDTO
	err := c.do(ctx, "UpdateAddress", http.MethodPut, idPath("/addresses/%d", a.ID), nil, fromAddress(a), &dto)
	if err != nil {
		return address.Address{}, err
	}
	return dto.toDomain(a.UserID), nil
}

func (c *Client) DeleteAddress(ctx context.Context, id int64) error {
	return c.do(ctx, "DeleteAddress", http.MethodDelete, idPath("/addresses/%d", id), nil, nil, nil)
}

func (c *Client) SetDefaultAddress(ctx context.Context, id int64) error {
	return c.do(ctx, "SetDefaultAddress", http.MethodPut, idPath("/addresses/%d/set-default", id), nil, nil, nil)
}
