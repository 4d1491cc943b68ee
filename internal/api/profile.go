package api

import (
	"context"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
)

// GetProfile returns the signed-in user's profile.
func (c *Client) GetProfile(ctx context.Context) (*domain.User, error) {
	var out domain.User
	if err := c.Do(ctx, http.MethodGet, "/user/profile", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile replaces the editable profile fields.
func (c *Client) UpdateProfile(ctx context.Context, in domain.ProfileUpdate) (*domain.User, error) {
	var out domain.User
	if err := c.Do(ctx, http.MethodPut, "/user/profile", in, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangePassword replaces the account password. Open sessions stay valid.
func (c *Client) ChangePassword(ctx context.Context, in domain.PasswordChange) error {
	return c.Do(ctx, http.MethodPatch, "/user/change-password", in, nil, true)
}
