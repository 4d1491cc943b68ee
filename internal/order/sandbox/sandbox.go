// Package sandbox is a development payment provider. It settles payments
// locally and signs proofs with the same HMAC scheme the fake API verifies.
package sandbox

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/order"
)

// Outcome selects how the sandbox payment window ends.
type Outcome string

const (
	Approve  Outcome = "approve"
	Cancel   Outcome = "cancel"
	LoadFail Outcome = "load-fail"
	Decline  Outcome = "decline"
	// Tamper approves with a proof whose signature does not match.
	Tamper Outcome = "tamper"
)

// Outcomes lists the supported outcomes.
var Outcomes = []Outcome{Approve, Cancel, LoadFail, Decline, Tamper}

// ParseOutcome parses a flag value.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Outcomes {
		if o == known {
			return o, nil
		}
	}
	return "", fmt.Errorf("unknown sandbox outcome %q", s)
}

// Sign returns the hex HMAC-SHA256 of "providerOrderID|paymentID".
func Sign(secret, providerOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(providerOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a proof's signature in constant time.
func Verify(secret string, proof domain.PaymentProof) bool {
	want := Sign(secret, proof.ProviderOrderID, proof.PaymentID)
	return hmac.Equal([]byte(want), []byte(proof.Signature))
}

// NewPaymentID returns a provider-style payment identifier.
func NewPaymentID() string {
	return "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}

// Provider implements order.PaymentProvider.
type Provider struct {
	secret  string
	outcome Outcome
	logger  *slog.Logger
}

// New creates a sandbox provider that always ends with outcome.
func New(secret string, outcome Outcome, logger *slog.Logger) (*Provider, error) {
	if secret == "" {
		return nil, errors.New("sandbox: payment secret is required")
	}
	if _, err := ParseOutcome(string(outcome)); err != nil {
		return nil, err
	}
	return &Provider{secret: secret, outcome: outcome, logger: logger}, nil
}

// Pay settles the payment according to the configured outcome.
func (p *Provider) Pay(ctx context.Context, h order.Handoff) order.Event {
	if err := ctx.Err(); err != nil {
		return order.ProviderCancelled{}
	}
	p.logger.InfoContext(ctx, "sandbox payment window opened",
		slog.String("provider_order_id", h.ProviderOrderID),
		slog.String("order_number", h.OrderNumber),
		slog.Float64("amount", h.Amount),
		slog.String("currency", h.Currency),
		slog.String("outcome", string(p.outcome)),
	)

	switch p.outcome {
	case Cancel:
		return order.ProviderCancelled{}
	case LoadFail:
		return order.ProviderLoadFailed{Err: errors.New("sandbox: checkout script failed to load")}
	case Decline:
		return order.ProviderDeclined{Description: "card declined by issuing bank"}
	}

	if h.ProviderOrderID == "" {
		return order.ProviderLoadFailed{Err: errors.New("sandbox: missing provider order id")}
	}
	paymentID := NewPaymentID()
	sig := Sign(p.secret, h.ProviderOrderID, paymentID)
	if p.outcome == Tamper {
		sig = Sign(p.secret, h.ProviderOrderID, paymentID+"x")
	}
	return order.ProviderSuccess{Proof: domain.PaymentProof{
		ProviderOrderID: h.ProviderOrderID,
		PaymentID:       paymentID,
		Signature:       sig,
	}}
}
