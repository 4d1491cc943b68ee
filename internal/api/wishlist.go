package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/pagination"
)

// GetWishlist fetches one page of the wishlist. Zero params use the server
// defaults.
func (c *Client) GetWishlist(ctx context.Context, params pagination.Params) (*domain.WishlistPage, error) {
	path := "/user/wishlist"
	q := url.Values{}
	params.Apply(q)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out domain.WishlistPage
	if err := c.Do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddToWishlist adds a product.
func (c *Client) AddToWishlist(ctx context.Context, productID string) error {
	return c.Do(ctx, http.MethodPost, "/user/wishlist", domain.AddToWishlistRequest{ProductID: productID}, nil, true)
}

// RemoveFromWishlist removes a product.
func (c *Client) RemoveFromWishlist(ctx context.Context, productID string) error {
	return c.Do(ctx, http.MethodDelete, "/user/wishlist/"+url.PathEscape(productID), nil, nil, true)
}
