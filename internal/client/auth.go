package client

import (
	"context"
	"net/http"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
)

// LoginResult is the backend answer to a successful login.
type LoginResult struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	User         domain.User `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a backend token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var res LoginResult
	if err := c.do(ctx, call{
		op:     "login",
		method: http.MethodPost,
		path:   "/auth/login",
		in:     loginRequest{Email: email, Password: password},
		out:    &res,
	}); err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout revokes token on the backend.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, call{
		op:     "logout",
		method: http.MethodPost,
		path:   "/auth/logout",
		token:  token,
	})
}

// Me returns the operator that owns token.
func (c *Client) Me(ctx context.Context, token string) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, call{
		op:     "me",
		method: http.MethodGet,
		path:   "/auth/me",
		token:  token,
		out:    &u,
	}); err != nil {
		return nil, err
	}
	return &u, nil
}
