package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/pagination"
)

// ProductReviews returns one page of a product's reviews, newest first.
func (c *Client) ProductReviews(ctx context.Context, productID string, page pagination.Params) (*domain.ReviewPage, error) {
	q := url.Values{}
	q.Set("productId", productID)
	page.Apply(q)
	var out domain.ReviewPage
	if err := c.Do(ctx, http.MethodGet, "/user/reviews?"+q.Encode(), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateReview rates a product.
func (c *Client) CreateReview(ctx context.Context, in domain.ReviewInput) (*domain.Review, error) {
	var out domain.Review
	if err := c.Do(ctx, http.MethodPost, "/user/reviews", in, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}
