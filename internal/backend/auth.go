package backend

import (
	"context"
	"errors"
	"net/http"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	const op = "Login"
	body := map[string]string{"email": email, "password": password}

	var u User
	if err := c.do(ctx, op, http.MethodPost, "/auth/login", nil, body, &u); err != nil {
		return User{}, err
	}
	if u.ID == 0 && u.Token == "" {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (User, error) {
	const op = "Register"

	var u User
	if err := c.do(ctx, op, http.MethodPost, "/users", nil, req, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// ProfileUpdate holds the fields a user may change about themselves.
type ProfileUpdate struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// UpdateUser saves a profile. The backend answers with the stored user but no
// token, so callers keep the one they have.
func (c *Client) UpdateUser(ctx context.Context, id int64, p ProfileUpdate) (User, error) {
	var u User
	if err := c.do(ctx, "UpdateUser", http.MethodPut, idPath("/users/%d", id), nil, p, &u); err != nil {
		return User{}, err
	}
	return u, nil
}
