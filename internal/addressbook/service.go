// Package addressbook manages a signed-in user's shipping addresses.
package addressbook

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/example/ec-storefront/internal/domain/address"
)

type Backend interface {
	ListAddresses(ctx context.Context, userID int64) ([]address.Address, error)
	CreateAddress(ctx context.Context, userID int64, a address.Address) (address.Address, error)
	UpdateAddress(ctx context.Context, a address.Address) (address.Address, error)
	DeleteAddress(ctx context.Context, id int64) error
	SetDefaultAddress(ctx context.Context, id int64) error
}

type Service struct {
	backend Backend
}

func NewService(b Backend) *Service {
	return &Service{backend: b}
}

func (s *Service) List(ctx context.Context, userID int64) ([]address.Address, error) {
	return s.backend.ListAddresses(ctx, userID)
}

func normalize(a address.Address) address.Address {
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.ZipCode = strings.TrimSpace(a.ZipCode)
	return a
}

func (s *Service) Create(ctx context.Context, userID int64, a address.Address) (address.Address, error) {
	a = normalize(a)
	if err := a.Validate(); err != nil {
		return address.Address{}, err
	}
	a.ID = 0
	a.UserID = userID
	return s.backend.CreateAddress(ctx, userID, a)
}

func (s *Service) Update(ctx context.Context, userID int64, a address.Address) (address.Address, error) {
	a = normalize(a)
	if err := a.Validate(); err != nil {
		return address.Address{}, err
	}
	if _, err := s.owned(ctx, userID, a.ID); err != nil {
		return address.Address{}, err
	}
	a.UserID = userID
	return s.backend.UpdateAddress(ctx, a)
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return s.backend.DeleteAddress(ctx, id)
}

// SetDefault asks the backend to switch the default and returns the list as
// the backend reports it afterwards. Nothing is updated locally first.
func (s *Service) SetDefault(ctx context.Context, userID, id int64) ([]address.Address, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	if err := s.backend.SetDefaultAddress(ctx, id); err != nil {
		return nil, err
	}

	list, err := s.backend.ListAddresses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload addresses: %w", err)
	}
	if n := address.CountDefaults(list); n > 1 {
		log.Printf("[Addresses] Backend reports %d default addresses for user %d", n, userID)
		return list, address.ErrMultipleDefaults
	}
	return list, nil
}

func (s *Service) owned(ctx context.Context, userID, id int64) (address.Address, error) {
	list, err := s.backend.ListAddresses(ctx, userID)
	if err != nil {
		return address.Address{}, err
	}
	a, ok := address.Find(list, id)
	if !ok {
		return address.Address{}, address.ErrAddressNotFound
	}
	return a, nil
}
