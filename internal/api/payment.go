package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/utafrali/storefront/internal/domain"
)

// VerifyPayment submits the provider's proof for server-side verification.
func (c *Client) VerifyPayment(ctx context.Context, v domain.PaymentVerification) error {
	return c.Do(ctx, http.MethodPost, "/payment/verify", v, nil, true)
}

// PaymentMethods lists the methods available for delivery to postalCode.
func (c *Client) PaymentMethods(ctx context.Context, postalCode string) ([]domain.PaymentMethod, error) {
	var out []domain.PaymentMethod
	if err := c.Do(ctx, http.MethodPost, "/payment/methods", domain.PaymentMethodsRequest{PostalCode: postalCode}, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// PaymentStatus fetches the state of a payment.
func (c *Client) PaymentStatus(ctx context.Context, paymentID string) (*domain.PaymentStatusInfo, error) {
	var out domain.PaymentStatusInfo
	if err := c.Do(ctx, http.MethodGet, "/payment/status/"+url.PathEscape(paymentID), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}
