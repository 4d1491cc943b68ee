package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/utafrali/storefront/internal/domain"
)

// GetCart fetches the authoritative cart.
func (c *Client) GetCart(ctx context.Context) (*domain.Cart, error) {
	var out domain.Cart
	if err := c.Do(ctx, http.MethodGet, "/user/cart", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCartSummary fetches the server-computed totals.
func (c *Client) GetCartSummary(ctx context.Context) (*domain.CartSummary, error) {
	var out domain.CartSummary
	if err := c.Do(ctx, http.MethodGet, "/user/cart/summary", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddToCart adds quantity units of a product.
func (c *Client) AddToCart(ctx context.Context, req domain.AddToCartRequest) (*domain.Cart, error) {
	var out domain.Cart
	if err := c.Do(ctx, http.MethodPost, "/user/cart", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCartItem sets the quantity of an existing line.
func (c *Client) UpdateCartItem(ctx context.Context, productID string, quantity int) (*domain.Cart, error) {
	var out domain.Cart
	body := domain.UpdateCartItemRequest{Quantity: quantity}
	if err := c.Do(ctx, http.MethodPatch, "/user/cart/"+url.PathEscape(productID), body, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveFromCart deletes a line.
func (c *Client) RemoveFromCart(ctx context.Context, productID string) error {
	return c.Do(ctx, http.MethodDelete, "/user/cart/"+url.PathEscape(productID), nil, nil, true)
}

// ClearCart deletes every line.
func (c *Client) ClearCart(ctx context.Context) error {
	return c.Do(ctx, http.MethodDelete, "/user/cart", nil, nil, true)
}
