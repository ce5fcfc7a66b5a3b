package address

import (
	"errors"
	"strings"
)

var (
	ErrAddressNotFound  = errors.New("address not found")
	ErrStreetRequired   = errors.New("street is required")
	ErrCityRequired     = errors.New("city is required")
	ErrZipCodeRequired  = errors.New("zip code is required")
	ErrMultipleDefaults = errors.New("more than one default address")
)

type Address struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId,omitempty"`
	Street    string `json:"street"`
	City      string `json:"city"`
	ZipCode   string `json:"zipCode"`
	IsDefault bool   `json:"isDefault"`
}

// Validate checks the fields the backend requires before any call is made.
func (a Address) Validate() error {
	var errs []error
	if strings.TrimSpace(a.Street) == "" {
		errs = append(errs, ErrStreetRequired)
	}
	if strings.TrimSpace(a.City) == "" {
		errs = append(errs, ErrCityRequired)
	}
	if strings.TrimSpace(a.ZipCode) == "" {
		errs = append(errs, ErrZipCodeRequired)
	}
	return errors.Join(errs...)
}

// Default picks the address checkout preselects: the default one, else the
// first one.
func Default(list []Address) (Address, bool) {
	for _, a := range list {
		if a.IsDefault {
			return a, true
		}
	}
	if len(list) > 0 {
		return list[0], true
	}
	return Address{}, false
}

func Find(list []Address, id int64) (Address, bool) {
	for _, a := range list {
		if a.ID == id {
			return a, true
		}
	}
	return Address{}, false
}

func CountDefaults(list []Address) int {
	n := 0
	for _, a := range list {
		if a.IsDefault {
			n++
		}
	}
	return n
}
