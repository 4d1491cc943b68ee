// Package order places orders and tracks each placement attempt through a
// client-side state machine that ends in confirmed or failed.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/metrics"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/tracing"
	"github.com/utafrali/storefront/pkg/validator"
)

// API is the subset of the API adapter the service calls.
type API interface {
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest, idempotencyKey string) (*domain.CreateOrderResponse, error)
	VerifyPayment(ctx context.Context, v domain.PaymentVerification) error
	ListOrders(ctx context.Context, filter domain.OrderFilter) (*domain.OrderPage, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	CancelOrder(ctx context.Context, id, reason string) error
	PaymentMethods(ctx context.Context, postalCode string) ([]domain.PaymentMethod, error)
	PaymentStatus(ctx context.Context, paymentID string) (*domain.PaymentStatusInfo, error)
}

// CartRefresher reloads the cart after the server emptied it.
type CartRefresher interface {
	Refresh(ctx context.Context) error
}

// Config holds service settings.
type Config struct {
	// Currency is used when the server omits one from the payment session.
	Currency string
	// Buyer returns the signed-in user for the payment window prefill.
	Buyer func() *domain.User
}

// PlaceRequest is the input of PlaceOrder.
type PlaceRequest struct {
	AddressID     string
	PaymentMethod domain.PaymentMethod
	Notes         string
}

// Attempt describes one order placement.
type Attempt struct {
	IdempotencyKey string
	State          State
	Reason         string
	Order          *domain.Order

	failedBy Event
}

// Service places and manages orders.
type Service struct {
	api      API
	provider PaymentProvider
	cart     CartRefresher
	cfg      Config
	bus      *event.Bus
	logger   *slog.Logger

	mu      sync.Mutex
	placing bool
	last    *Attempt
}

// NewService creates an order service. cart may be nil.
func NewService(a API, provider PaymentProvider, cart CartRefresher, cfg Config, bus *event.Bus, logger *slog.Logger) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.Buyer == nil {
		cfg.Buyer = func() *domain.User { return nil }
	}
	return &Service{api: a, provider: provider, cart: cart, cfg: cfg, bus: bus, logger: logger}
}

// LastAttempt returns a copy of the most recent placement attempt.
func (s *Service) LastAttempt() (Attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Attempt{}, false
	}
	return *s.last, true
}

// Placing reports whether a placement is in progress.
func (s *Service) Placing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.placing
}

// PlaceOrder creates an order and, for online methods, runs the payment
// handoff and server verification. Only one placement runs at a time; a
// concurrent call fails with a conflict. The returned attempt is set whenever
// the order was created, including when payment failed.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceRequest) (*Attempt, error) {
	create := domain.CreateOrderRequest{
		ShippingAddressID: req.AddressID,
		PaymentMethod:     req.PaymentMethod,
		Notes:             strings.TrimSpace(req.Notes),
	}
	if err := validator.Validate(create); err != nil {
		return nil, validator.ToAppError(err)
	}

	s.mu.Lock()
	if s.placing {
		s.mu.Unlock()
		return nil, apperrors.Conflict("an order is already being placed")
	}
	s.placing = true
	att := &Attempt{IdempotencyKey: uuid.NewString(), State: StateNone}
	s.last = att
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.placing = false
		s.mu.Unlock()
	}()

	ctx = logger.WithCorrelationID(ctx, att.IdempotencyKey)
	ctx, span := tracing.Tracer("storefront/order").Start(ctx, "order.place")
	defer span.End()

	s.advance(ctx, att, OrderSubmitted{})
	resp, err := s.api.CreateOrder(ctx, create, att.IdempotencyKey)
	if err != nil {
		s.advance(ctx, att, CreateFailed{Err: err})
		metrics.OrderOutcomes.WithLabelValues("create_failed").Inc()
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.setOrder(att, &resp.Order)
	s.advance(ctx, att, OrderCreated{PaymentRequired: resp.PaymentRequired})

	if resp.PaymentRequired {
		s.pay(ctx, att, resp)
	}

	final := s.snapshot(att)
	if final.State == StateFailed {
		metrics.OrderOutcomes.WithLabelValues(final.Reason).Inc()
		return &final, s.failure(att)
	}

	metrics.OrderOutcomes.WithLabelValues("confirmed").Inc()
	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", final.Order.ID),
		slog.String("order_number", final.Order.OrderNumber),
		slog.String("payment_method", string(req.PaymentMethod)),
	)
	if s.cart != nil {
		if err := s.cart.Refresh(ctx); err != nil {
			s.logger.WarnContext(ctx, "failed to reload cart after order", slog.String("error", err.Error()))
		}
	}
	return &final, nil
}

// pay runs the provider handoff and, on provider success, the verification.
func (s *Service) pay(ctx context.Context, att *Attempt, resp *domain.CreateOrderResponse) {
	details := resp.PaymentDetails
	if details == nil || details.OrderID == "" {
		s.advance(ctx, att, ProviderLoadFailed{Err: errors.New("server returned no payment session")})
		return
	}

	h := Handoff{
		Amount:          details.Amount,
		Currency:        details.Currency,
		ProviderOrderID: details.OrderID,
		OrderNumber:     resp.Order.OrderNumber,
		Method:          details.Method,
	}
	if h.Currency == "" {
		h.Currency = s.cfg.Currency
	}
	if h.Method == "" {
		h.Method = resp.Order.PaymentInfo.Method
	}
	if u := s.cfg.Buyer(); u != nil {
		h.Prefill = Prefill{Name: u.Name, Email: u.Email, Contact: u.Phone}
	}

	outcome := s.provider.Pay(ctx, h)
	if outcome == nil {
		outcome = ProviderLoadFailed{Err: errors.New("payment provider returned no outcome")}
	}
	if !s.advance(ctx, att, outcome) {
		// Not a provider event; treat the window as broken.
		s.advance(ctx, att, ProviderLoadFailed{Err: fmt.Errorf("unexpected provider outcome %T", outcome)})
		return
	}
	success, ok := outcome.(ProviderSuccess)
	if !ok {
		return
	}

	err := s.api.VerifyPayment(ctx, domain.PaymentVerification{
		OrderID:      resp.Order.ID,
		PaymentProof: success.Proof,
	})
	if err != nil {
		s.advance(ctx, att, VerifyFailed{Err: err})
		return
	}
	s.advance(ctx, att, VerifyOK{})
}

// advance applies ev to the attempt and publishes the change. It reports
// whether the event was accepted.
func (s *Service) advance(ctx context.Context, att *Attempt, ev Event) bool {
	s.mu.Lock()
	from := att.State
	step, err := Transition(from, ev)
	if err != nil {
		s.mu.Unlock()
		s.logger.ErrorContext(ctx, "rejected order event", slog.String("error", err.Error()))
		return false
	}
	att.State = step.State
	att.Reason = step.Reason
	if step.State == StateFailed {
		att.failedBy = ev
	}
	orderID := ""
	if att.Order != nil {
		orderID = att.Order.ID
	}
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "order state changed",
		slog.String("from", string(from)),
		slog.String("to", string(step.State)),
	)
	s.bus.Publish(ctx, event.OrderStateChanged, orderID, event.OrderStatePayload{
		OrderID: orderID,
		From:    string(from),
		To:      string(step.State),
		Reason:  step.Reason,
	})
	return true
}

func (s *Service) setOrder(att *Attempt, o *domain.Order) {
	s.mu.Lock()
	att.Order = o
	s.mu.Unlock()
}

func (s *Service) snapshot(att *Attempt) Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *att
}

// failure builds the error for a failed attempt.
func (s *Service) failure(att *Attempt) error {
	s.mu.Lock()
	reason, ev := att.Reason, att.failedBy
	s.mu.Unlock()
	return apperrors.PaymentFailed(reason, failureMessage(reason, ev), failureCause(ev))
}

// AvailablePaymentMethods returns the methods offered for a delivery postal
// code.
func (s *Service) AvailablePaymentMethods(ctx context.Context, postalCode string) ([]domain.PaymentMethod, error) {
	if err := validator.Validate(domain.PaymentMethodsRequest{PostalCode: postalCode}); err != nil {
		return nil, validator.ToAppError(err)
	}
	methods, err := s.api.PaymentMethods(ctx, postalCode)
	if err != nil {
		return nil, fmt.Errorf("payment methods: %w", err)
	}
	return methods, nil
}

// ListOrders returns one page of the buyer's orders.
func (s *Service) ListOrders(ctx context.Context, filter domain.OrderFilter) (*domain.OrderPage, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperrors.Validation("unknown order status", map[string]string{"status": "must be a valid order status"})
	}
	page, err := s.api.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return page, nil
}

// GetOrder returns one order.
func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.api.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// CancelOrder asks the server to cancel an order and returns it as the server
// now reports it. Orders past processing cannot be cancelled.
func (s *Service) CancelOrder(ctx context.Context, id, reason string) (*domain.Order, error) {
	if err := validator.Validate(domain.CancelOrderRequest{Reason: reason}); err != nil {
		return nil, validator.ToAppError(err)
	}
	current, err := s.api.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	if !current.Status.Cancellable() {
		return nil, apperrors.Validation(
			fmt.Sprintf("order %s is %s and can no longer be cancelled", current.OrderNumber, current.Status), nil)
	}
	if err := s.api.CancelOrder(ctx, id, reason); err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	updated, err := s.api.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	s.bus.Publish(ctx, event.OrderStateChanged, id, event.OrderStatePayload{
		OrderID: id,
		From:    string(current.Status),
		To:      string(updated.Status),
		Reason:  reason,
	})
	return updated, nil
}

// PaymentStatus returns the provider-side state of a payment.
func (s *Service) PaymentStatus(ctx context.Context, paymentID string) (*domain.PaymentStatusInfo, error) {
	info, err := s.api.PaymentStatus(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("payment status: %w", err)
	}
	return info, nil
}
