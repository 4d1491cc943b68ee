package order

import (
	"context"

	"github.com/utafrali/storefront/internal/domain"
)

// Prefill is the buyer contact data shown in the payment window.
type Prefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// Handoff is what the payment window is opened with.
type Handoff struct {
	Amount          float64              `json:"amount"`
	Currency        string               `json:"currency"`
	ProviderOrderID string               `json:"providerOrderId"`
	OrderNumber     string               `json:"orderNumber"`
	Method          domain.PaymentMethod `json:"method"`
	Prefill         Prefill              `json:"prefill"`
}

// PaymentProvider runs an external payment window and reports how it ended.
// Pay returns one of ProviderSuccess, ProviderCancelled, ProviderLoadFailed or
// ProviderDeclined. A success is never trusted without server verification.
type PaymentProvider interface {
	Pay(ctx context.Context, h Handoff) Event
}

// ProviderFunc adapts a function to PaymentProvider.
type ProviderFunc func(ctx context.Context, h Handoff) Event

func (f ProviderFunc) Pay(ctx context.Context, h Handoff) Event {
	return f(ctx, h)
}
