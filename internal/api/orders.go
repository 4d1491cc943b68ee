package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/pagination"
)

// CreateOrder places an order from the current cart. idempotencyKey, when
// non-empty, lets the server collapse duplicate submissions.
func (c *Client) CreateOrder(ctx context.Context, req domain.CreateOrderRequest, idempotencyKey string) (*domain.CreateOrderResponse, error) {
	var opts []RequestOption
	if idempotencyKey != "" {
		opts = append(opts, WithIdempotencyKey(idempotencyKey))
	}
	var out domain.CreateOrderResponse
	if err := c.Do(ctx, http.MethodPost, "/user/orders", req, &out, true, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListOrders returns one page of the buyer's orders.
func (c *Client) ListOrders(ctx context.Context, filter domain.OrderFilter) (*domain.OrderPage, error) {
	q := url.Values{}
	pagination.Params{Page: filter.Page, Limit: filter.Limit}.Apply(q)
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	path := "/user/orders"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out domain.OrderPage
	if err := c.Do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrder fetches one order.
func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var out domain.Order
	if err := c.Do(ctx, http.MethodGet, "/user/orders/"+url.PathEscape(id), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelOrder asks the server to cancel an order.
func (c *Client) CancelOrder(ctx context.Context, id, reason string) error {
	return c.Do(ctx, http.MethodPatch, "/user/orders/"+url.PathEscape(id)+"/cancel", domain.CancelOrderRequest{Reason: reason}, nil, true)
}
