package order

import (
	"fmt"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// State is the client-tracked state of one order placement attempt.
type State string

const (
	StateNone            State = "none"
	StatePending         State = "pending"
	StateAwaitingPayment State = "awaiting_payment"
	StateVerifying       State = "verifying"
	StateConfirmed       State = "confirmed"
	StateFailed          State = "failed"
)

// IsTerminal reports whether the attempt has finished.
func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// Event drives the placement state machine.
type Event interface {
	eventName() string
}

// OrderSubmitted is raised when the create request is sent.
type OrderSubmitted struct{}

// CreateFailed is raised when the server refused to create the order.
type CreateFailed struct{ Err error }

// OrderCreated carries the server's answer to order creation.
type OrderCreated struct{ PaymentRequired bool }

// ProviderSuccess carries the proof the payment provider issued.
type ProviderSuccess struct{ Proof domain.PaymentProof }

// ProviderCancelled is raised when the buyer dismisses the payment window.
type ProviderCancelled struct{}

// ProviderLoadFailed is raised when the payment window could not be opened.
type ProviderLoadFailed struct{ Err error }

// ProviderDeclined is raised when the provider reports a failed payment.
type ProviderDeclined struct{ Description string }

// VerifyOK is raised when the server accepted the payment proof.
type VerifyOK struct{}

// VerifyFailed is raised when the server rejected the payment proof.
type VerifyFailed struct{ Err error }

func (OrderSubmitted) eventName() string     { return "order_submitted" }
func (CreateFailed) eventName() string       { return "create_failed" }
func (OrderCreated) eventName() string       { return "order_created" }
func (ProviderSuccess) eventName() string    { return "provider_success" }
func (ProviderCancelled) eventName() string  { return "provider_cancelled" }
func (ProviderLoadFailed) eventName() string { return "provider_load_failed" }
func (ProviderDeclined) eventName() string   { return "provider_declined" }
func (VerifyOK) eventName() string           { return "verify_ok" }
func (VerifyFailed) eventName() string       { return "verify_failed" }

// Step is the result of a transition. Reason is set when State is failed.
type Step struct {
	State  State
	Reason string
}

// Transition computes the next step. It has no side effects.
func Transition(from State, ev Event) (Step, error) {
	switch from {
	case StateNone:
		if _, ok := ev.(OrderSubmitted); ok {
			return Step{State: StatePending}, nil
		}
	case StatePending:
		switch e := ev.(type) {
		case OrderCreated:
			if e.PaymentRequired {
				return Step{State: StateAwaitingPayment}, nil
			}
			return Step{State: StateConfirmed}, nil
		case CreateFailed:
			return Step{State: StateNone}, nil
		}
	case StateAwaitingPayment:
		switch ev.(type) {
		case ProviderSuccess:
			return Step{State: StateVerifying}, nil
		case ProviderCancelled:
			return Step{State: StateFailed, Reason: apperrors.ReasonUserCancel}, nil
		case ProviderLoadFailed:
			return Step{State: StateFailed, Reason: apperrors.ReasonProviderLoad}, nil
		case ProviderDeclined:
			return Step{State: StateFailed, Reason: apperrors.ReasonDeclined}, nil
		}
	case StateVerifying:
		switch ev.(type) {
		case VerifyOK:
			return Step{State: StateConfirmed}, nil
		case VerifyFailed:
			return Step{State: StateFailed, Reason: apperrors.ReasonVerifyFail}, nil
		}
	}
	return Step{State: from}, fmt.Errorf("order: %s not allowed in state %s", ev.eventName(), from)
}

// failureMessage is the buyer-facing text for each failure reason.
func failureMessage(reason string, ev Event) string {
	switch reason {
	case apperrors.ReasonProviderLoad:
		return "The payment window could not be opened. Your order was not charged; please try again."
	case apperrors.ReasonUserCancel:
		return "Payment was cancelled. Your order has not been confirmed."
	case apperrors.ReasonVerifyFail:
		return "We could not verify your payment. If you were charged, it will be refunded."
	case apperrors.ReasonDeclined:
		if d, ok := ev.(ProviderDeclined); ok && d.Description != "" {
			return "Payment was declined: " + d.Description
		}
		return "Payment was declined."
	}
	return "Payment failed."
}

// failureCause extracts the underlying error carried by a failure event.
func failureCause(ev Event) error {
	switch e := ev.(type) {
	case ProviderLoadFailed:
		return e.Err
	case VerifyFailed:
		return e.Err
	}
	return nil
}
