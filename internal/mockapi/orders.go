package mockapi

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/dunglas/httpsfv"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/pagination"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotency-Replayed"
)

// createOrder handles POST /user/orders. The cart becomes an order, stock is
// reserved and online methods get a provider payment session.
func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	key, err := idempotencyKey(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	uid := middleware.UserIDFromContext(r.Context())
	fp := fingerprint(req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if key != "" {
		if prev, ok := s.st.idem[uid+"\x00"+key]; ok {
			if prev.fingerprint != fp {
				mismatch := apperrors.Conflict("Idempotency-Key was used with a different request")
				mismatch.Status = http.StatusUnprocessableEntity
				s.fail(w, r, mismatch)
				return
			}
			w.Header().Set(replayedHeader, "true")
			httputil.WriteData(w, prev.status, prev.body)
			return
		}
	}

	c := s.st.cart(uid)
	if len(c.lines) == 0 {
		s.fail(w, r, apperrors.Validation("Cart is empty", nil))
		return
	}
	addr := s.st.address(uid, req.ShippingAddressID)
	if addr == nil {
		s.fail(w, r, apperrors.NotFound("address", req.ShippingAddressID))
		return
	}
	if !slices.Contains(availableMethods(addr.PostalCode), req.PaymentMethod) {
		s.fail(w, r, apperrors.Validation("Payment method not available for this address",
			map[string]string{"paymentMethod": "not available for postal code " + addr.PostalCode}))
		return
	}

	items := make([]domain.OrderItem, 0, len(c.lines))
	var subtotal float64
	for _, l := range c.lines {
		p := s.st.product(l.productID)
		if p == nil {
			s.fail(w, r, apperrors.NotFound("product", l.productID))
			return
		}
		if err := checkStock(p, l.quantity); err != nil {
			s.fail(w, r, apperrors.Validation(fmt.Sprintf("%s: %s", p.Name, err.Message), nil))
			return
		}
		unit := p.EffectivePrice()
		subtotal += unit * float64(l.quantity)
		items = append(items, domain.OrderItem{
			Product:        *p,
			Quantity:       l.quantity,
			Price:          unit,
			Customizations: maps.Clone(l.customizations),
		})
	}
	for _, l := range c.lines {
		adjustStock(s.st.product(l.productID), -l.quantity)
	}

	sum := s.st.summary(uid)
	now := time.Now().UTC()
	s.st.orderSeq++
	o := &domain.Order{
		ID:              uuid.NewString(),
		OrderNumber:     fmt.Sprintf("ORD-%d", s.st.orderSeq),
		Items:           items,
		ShippingAddress: *addr,
		PaymentInfo:     domain.PaymentInfo{Method: req.PaymentMethod, Status: domain.PaymentStatusPending},
		Subtotal:        round2(subtotal),
		Tax:             sum.Tax,
		Shipping:        sum.EstimatedShipping,
		Total:           sum.FinalTotal,
		Status:          domain.OrderStatusPending,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.st.orders[uid] = append(s.st.orders[uid], o)
	c.lines = nil
	c.updatedAt = now

	resp := domain.CreateOrderResponse{Order: *o}
	if req.PaymentMethod.RequiresOnlinePayment() {
		pay := &payment{
			providerOrderID: "order_" + randomHex(7),
			orderID:         o.ID,
			userID:          uid,
			amount:          o.Total,
			currency:        s.opts.Currency,
			method:          req.PaymentMethod,
			status:          domain.PaymentStatusPending,
		}
		s.st.payments[pay.providerOrderID] = pay
		resp.PaymentRequired = true
		resp.PaymentDetails = &domain.PaymentDetails{
			Amount:   pay.amount,
			Currency: pay.currency,
			Method:   pay.method,
			OrderID:  pay.providerOrderID,
		}
	}
	if key != "" {
		s.st.idem[uid+"\x00"+key] = storedResponse{fingerprint: fp, status: http.StatusCreated, body: resp}
	}

	s.log(r).InfoContext(r.Context(), "order created",
		slog.String("order_id", o.ID),
		slog.String("order_number", o.OrderNumber),
		slog.Float64("total", o.Total),
		slog.String("payment_method", string(req.PaymentMethod)),
	)
	httputil.WriteData(w, http.StatusCreated, resp)
}

// listOrders handles GET /user/orders, newest first.
func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserIDFromContext(r.Context())
	params := pagination.FromRequest(r)
	status := domain.OrderStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		s.fail(w, r, apperrors.Validation("Invalid status filter", map[string]string{"status": "unknown order status"}))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*domain.Order
	for _, o := range slices.Backward(s.st.orders[uid]) {
		if status == "" || o.Status == status {
			matched = append(matched, o)
		}
	}
	page := domain.OrderPage{Orders: []domain.Order{}, Pagination: pagination.NewMeta(len(matched), params)}
	for _, o := range window(matched, params) {
		page.Orders = append(page.Orders, *o)
	}
	httputil.WriteData(w, http.StatusOK, page)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.st.order(uid, id)
	if o == nil {
		s.fail(w, r, apperrors.NotFound("order", id))
		return
	}
	httputil.WriteData(w, http.StatusOK, *o)
}

// cancelOrder handles PATCH /user/orders/{id}/cancel. Reserved stock is
// returned and a settled payment is refunded.
func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CancelOrderRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	uid := middleware.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.st.order(uid, id)
	if o == nil {
		s.fail(w, r, apperrors.NotFound("order", id))
		return
	}
	if !o.Status.Cancellable() {
		s.fail(w, r, apperrors.Validation("Order cannot be cancelled in its current status", nil))
		return
	}
	s.cancelLocked(o, req.Reason)
	s.log(r).InfoContext(r.Context(), "order cancelled", slog.String("order_id", o.ID), slog.String("reason", req.Reason))
	httputil.WriteData(w, http.StatusOK, *o)
}

type orderStatusRequest struct {
	Status domain.OrderStatus `json:"status" validate:"required"`
}

// updateOrderStatus handles PATCH /admin/orders/{id}/status.
func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req orderStatusRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if !req.Status.IsValid() {
		s.fail(w, r, apperrors.Validation("Invalid order status", map[string]string{"status": "unknown order status"}))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, _ := s.st.orderAnyUser(id)
	if o == nil {
		s.fail(w, r, apperrors.NotFound("order", id))
		return
	}
	if !o.Status.CanTransitionTo(req.Status) {
		s.fail(w, r, apperrors.Validation(fmt.Sprintf("Cannot change status from %s to %s", o.Status, req.Status), nil))
		return
	}
	switch req.Status {
	case domain.OrderStatusCancelled:
		s.cancelLocked(o, "cancelled by store")
	case domain.OrderStatusShipped:
		o.TrackingNumber = "TRK" + strings.ToUpper(randomHex(5))
		fallthrough
	default:
		o.Status = req.Status
		o.UpdatedAt = time.Now().UTC()
	}
	if req.Status == domain.OrderStatusDelivered && o.PaymentInfo.Method == domain.PaymentCashOnDelivery {
		o.PaymentInfo.Status = domain.PaymentStatusCompleted
	}
	httputil.WriteData(w, http.StatusOK, *o)
}

// cancelLocked moves o to cancelled. Caller holds s.mu.
func (s *Server) cancelLocked(o *domain.Order, reason string) {
	for _, it := range o.Items {
		adjustStock(s.st.product(it.Product.ID), it.Quantity)
	}
	if p := s.st.paymentForOrder(o.ID); p != nil && p.status == domain.PaymentStatusCompleted {
		p.status = domain.PaymentStatusRefunded
		o.PaymentInfo.Status = domain.PaymentStatusRefunded
	}
	if reason != "" {
		o.Notes = strings.TrimSpace(o.Notes + "\nCancelled: " + reason)
	}
	o.Status = domain.OrderStatusCancelled
	o.UpdatedAt = time.Now().UTC()
}

func adjustStock(p *domain.Product, delta int) {
	if p == nil {
		return
	}
	p.Stock += delta
	p.IsInStock = p.Stock > 0
}

// idempotencyKey parses the optional Idempotency-Key header, an RFC 8941
// string item.
func idempotencyKey(r *http.Request) (string, error) {
	raw := r.Header.Values(idempotencyHeader)
	if len(raw) == 0 {
		return "", nil
	}
	item, err := httpsfv.UnmarshalItem(raw)
	if err != nil {
		return "", apperrors.Validation("Malformed Idempotency-Key header", map[string]string{idempotencyHeader: err.Error()})
	}
	key, ok := item.Value.(string)
	if !ok || key == "" {
		return "", apperrors.Validation("Idempotency-Key must be a non-empty string", map[string]string{idempotencyHeader: "must be a string"})
	}
	return key, nil
}

func fingerprint(req domain.CreateOrderRequest) string {
	sum := sha256.Sum256([]byte(req.ShippingAddressID + "\x00" + string(req.PaymentMethod) + "\x00" + req.Notes))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
