package api

import (
	"context"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
)

// Login exchanges email and password for a session.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	if err := c.Do(ctx, http.MethodPost, "/auth/login", creds, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an unverified account. It does not authenticate.
func (c *Client) Register(ctx context.Context, reg domain.Registration) error {
	return c.Do(ctx, http.MethodPost, "/auth/register", reg, nil, false)
}

// VerifyEmail confirms an account with its one-time code and opens a session.
func (c *Client) VerifyEmail(ctx context.Context, v domain.EmailVerification) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	if err := c.Do(ctx, http.MethodPost, "/auth/verify-email", v, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResendOTP asks the server to send a new verification code.
func (c *Client) ResendOTP(ctx context.Context, email string) error {
	return c.Do(ctx, http.MethodPost, "/auth/resend-otp", map[string]string{"email": email}, nil, false)
}

// Me returns the profile of the authenticated user.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var out struct {
		User domain.User `json:"user"`
	}
	if err := c.Do(ctx, http.MethodGet, "/auth/me", nil, &out, true); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Logout invalidates the session on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "/auth/logout", nil, nil, true)
}
