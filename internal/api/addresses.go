package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/utafrali/storefront/internal/domain"
)

// ListAddresses returns the saved addresses.
func (c *Client) ListAddresses(ctx context.Context) ([]domain.Address, error) {
	var out []domain.Address
	if err := c.Do(ctx, http.MethodGet, "/user/addresses", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// AddAddress saves a new address.
func (c *Client) AddAddress(ctx context.Context, in domain.AddressInput) (*domain.Address, error) {
	var out domain.Address
	if err := c.Do(ctx, http.MethodPost, "/user/addresses", in, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAddress replaces an address.
func (c *Client) UpdateAddress(ctx context.Context, id string, in domain.AddressInput) (*domain.Address, error) {
	var out domain.Address
	if err := c.Do(ctx, http.MethodPut, "/user/addresses/"+url.PathEscape(id), in, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAddress removes an address.
func (c *Client) DeleteAddress(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, "/user/addresses/"+url.PathEscape(id), nil, nil, true)
}

// SetDefaultAddress marks an address as the default.
func (c *Client) SetDefaultAddress(ctx context.Context, id string) (*domain.Address, error) {
	var out domain.Address
	if err := c.Do(ctx, http.MethodPatch, "/user/addresses/"+url.PathEscape(id)+"/default", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}
