package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/utafrali/storefront/internal/domain"
)

// ListProducts returns one page of the public catalog.
func (c *Client) ListProducts(ctx context.Context, filter domain.ProductFilter) (*domain.ProductPage, error) {
	path := "/public/products"
	if q := filter.Query().Encode(); q != "" {
		path += "?" + q
	}
	var out domain.ProductPage
	if err := c.Do(ctx, http.MethodGet, path, nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProduct fetches a product by ID or slug.
func (c *Client) GetProduct(ctx context.Context, idOrSlug string) (*domain.Product, error) {
	var out domain.Product
	if err := c.Do(ctx, http.MethodGet, "/public/products/"+url.PathEscape(idOrSlug), nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchProducts runs a free-text catalog search.
func (c *Client) SearchProducts(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	q := url.Values{}
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []domain.Product
	if err := c.Do(ctx, http.MethodGet, "/public/products/search?"+q.Encode(), nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// ListCategories returns the catalog categories.
func (c *Client) ListCategories(ctx context.Context, filter domain.CategoryFilter) ([]domain.Category, error) {
	path := "/public/categories"
	if q := filter.Query().Encode(); q != "" {
		path += "?" + q
	}
	var out []domain.Category
	if err := c.Do(ctx, http.MethodGet, path, nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCategory fetches a category with its children.
func (c *Client) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	var out domain.Category
	if err := c.Do(ctx, http.MethodGet, "/public/categories/"+url.PathEscape(id), nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}
