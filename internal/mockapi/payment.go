package mockapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/order/sandbox"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
)

type verifyRequest struct {
	OrderID         string `json:"orderId" validate:"required"`
	ProviderOrderID string `json:"razorpay_order_id" validate:"required"`
	PaymentID       string `json:"razorpay_payment_id" validate:"required"`
	Signature       string `json:"razorpay_signature" validate:"required"`
}

// verifyPayment handles POST /payment/verify. A valid signature settles the
// payment and moves the order to processing; anything else marks the payment
// failed.
func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	uid := middleware.UserIDFromContext(r.Context())
	proof := domain.PaymentProof{ProviderOrderID: req.ProviderOrderID, PaymentID: req.PaymentID, Signature: req.Signature}

	s.mu.Lock()
	defer s.mu.Unlock()
	pay, ok := s.st.payments[req.ProviderOrderID]
	if !ok || pay.userID != uid || pay.orderID != req.OrderID {
		s.fail(w, r, apperrors.NotFound("payment", req.ProviderOrderID))
		return
	}
	o := s.st.order(uid, pay.orderID)
	if o == nil {
		s.fail(w, r, apperrors.NotFound("order", pay.orderID))
		return
	}
	if pay.status == domain.PaymentStatusCompleted {
		if pay.paymentID == req.PaymentID {
			httputil.WriteMessage(w, http.StatusOK, "Payment already verified")
			return
		}
		s.fail(w, r, apperrors.Conflict("Order is already paid"))
		return
	}

	if !sandbox.Verify(s.opts.PaymentSecret, proof) {
		pay.status = domain.PaymentStatusFailed
		o.PaymentInfo.Status = domain.PaymentStatusFailed
		o.UpdatedAt = time.Now().UTC()
		s.log(r).WarnContext(r.Context(), "payment signature mismatch",
			slog.String("order_id", o.ID),
			slog.String("provider_order_id", req.ProviderOrderID),
		)
		s.fail(w, r, apperrors.Validation("Payment verification failed", map[string]string{"razorpay_signature": "does not match"}))
		return
	}

	pay.paymentID = req.PaymentID
	pay.status = domain.PaymentStatusCompleted
	o.PaymentInfo.Status = domain.PaymentStatusCompleted
	o.PaymentInfo.TransactionID = req.PaymentID
	if o.Status.CanTransitionTo(domain.OrderStatusProcessing) {
		o.Status = domain.OrderStatusProcessing
	}
	o.UpdatedAt = time.Now().UTC()
	s.log(r).InfoContext(r.Context(), "payment verified",
		slog.String("order_id", o.ID),
		slog.String("payment_id", req.PaymentID),
	)
	httputil.WriteMessage(w, http.StatusOK, "Payment verified successfully")
}

func (s *Server) paymentMethods(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentMethodsRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	httputil.WriteData(w, http.StatusOK, availableMethods(req.PostalCode))
}

// paymentStatus handles GET /payment/status/{id}. The id may be a provider
// payment ID, a provider order ID or a storefront order ID.
func (s *Server) paymentStatus(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	pay := s.st.payments[id]
	if pay == nil {
		pay = s.st.paymentForOrder(id)
	}
	if pay == nil {
		for _, p := range s.st.payments {
			if p.paymentID != "" && p.paymentID == id {
				pay = p
				break
			}
		}
	}
	if pay == nil || pay.userID != uid {
		s.fail(w, r, apperrors.NotFound("payment", id))
		return
	}
	httputil.WriteData(w, http.StatusOK, domain.PaymentStatusInfo{
		PaymentID: pay.paymentID,
		OrderID:   pay.orderID,
		Status:    pay.status,
		Amount:    pay.amount,
		Currency:  pay.currency,
		Method:    pay.method,
	})
}
