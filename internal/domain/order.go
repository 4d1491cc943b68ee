package domain

import (
	"slices"
	"time"

	"github.com/utafrali/storefront/pkg/pagination"
)

// OrderStatus is the server-side lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// AllowedTransitions defines the valid server status transitions.
var AllowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// CanTransitionTo reports whether the status may move to target.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	return slices.Contains(AllowedTransitions[s], target)
}

// Cancellable reports whether the buyer may still cancel the order.
func (s OrderStatus) Cancellable() bool {
	return s.CanTransitionTo(OrderStatusCancelled)
}

// IsValid reports whether s is a known status.
func (s OrderStatus) IsValid() bool {
	_, ok := AllowedTransitions[s]
	return ok
}

// PaymentMethod identifies how the buyer pays.
type PaymentMethod string

const (
	PaymentUPI            PaymentMethod = "upi"
	PaymentCreditCard     PaymentMethod = "credit_card"
	PaymentDebitCard      PaymentMethod = "debit_card"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// PaymentMethods lists every supported method.
var PaymentMethods = []PaymentMethod{PaymentUPI, PaymentCreditCard, PaymentDebitCard, PaymentCashOnDelivery}

// IsValid reports whether m is a supported method.
func (m PaymentMethod) IsValid() bool {
	return slices.Contains(PaymentMethods, m)
}

// RequiresOnlinePayment reports whether the method goes through the payment provider.
func (m PaymentMethod) RequiresOnlinePayment() bool {
	return m.IsValid() && m != PaymentCashOnDelivery
}

// PaymentStatus is the state of an order's payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// OrderItem is a purchased line. Price is the unit price at purchase time.
type OrderItem struct {
	Product        Product           `json:"product"`
	Quantity       int               `json:"quantity"`
	Price          float64           `json:"price"`
	Customizations map[string]string `json:"customizations,omitempty"`
}

// PaymentInfo is the payment block of an order.
type PaymentInfo struct {
	Method        PaymentMethod `json:"method"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transactionId,omitempty"`
}

// Order is an immutable placed order.
type Order struct {
	ID              string      `json:"_id"`
	OrderNumber     string      `json:"orderNumber"`
	Items           []OrderItem `json:"items"`
	ShippingAddress Address     `json:"shippingAddress"`
	BillingAddress  *Address    `json:"billingAddress,omitempty"`
	PaymentInfo     PaymentInfo `json:"paymentInfo"`
	Subtotal        float64     `json:"subtotal"`
	Tax             float64     `json:"tax"`
	Shipping        float64     `json:"shipping"`
	Total           float64     `json:"total"`
	Status          OrderStatus `json:"status"`
	TrackingNumber  string      `json:"trackingNumber,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// CreateOrderRequest is the body of POST /user/orders.
type CreateOrderRequest struct {
	ShippingAddressID string        `json:"shippingAddressId" validate:"required"`
	PaymentMethod     PaymentMethod `json:"paymentMethod" validate:"required,oneof=upi credit_card debit_card cash_on_delivery"`
	Notes             string        `json:"notes,omitempty" validate:"max=500"`
}

// PaymentDetails is the payment session the server opens for online methods.
// OrderID is the provider-side order ID, not the storefront order ID.
type PaymentDetails struct {
	Amount   float64       `json:"amount"`
	Currency string        `json:"currency"`
	Method   PaymentMethod `json:"method"`
	OrderID  string        `json:"orderId"`
}

// CreateOrderResponse is returned by order creation.
type CreateOrderResponse struct {
	Order           Order           `json:"order"`
	PaymentRequired bool            `json:"paymentRequired"`
	PaymentDetails  *PaymentDetails `json:"paymentDetails,omitempty"`
}

// PaymentProof is what the payment provider hands back on success.
type PaymentProof struct {
	ProviderOrderID string `json:"razorpay_order_id"`
	PaymentID       string `json:"razorpay_payment_id"`
	Signature       string `json:"razorpay_signature"`
}

// PaymentVerification is the body of POST /payment/verify.
type PaymentVerification struct {
	OrderID string `json:"orderId"`
	PaymentProof
}

// PaymentStatusInfo is returned by GET /payment/status/:id.
type PaymentStatusInfo struct {
	PaymentID string        `json:"paymentId"`
	OrderID   string        `json:"orderId,omitempty"`
	Status    PaymentStatus `json:"status"`
	Amount    float64       `json:"amount"`
	Currency  string        `json:"currency"`
	Method    PaymentMethod `json:"method,omitempty"`
}

// PaymentMethodsRequest is the body of POST /payment/methods.
type PaymentMethodsRequest struct {
	PostalCode string `json:"postalCode" validate:"required"`
}

// CancelOrderRequest is the body of PATCH /user/orders/:id/cancel.
type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// OrderFilter narrows an order listing.
type OrderFilter struct {
	Status OrderStatus
	Page   int
	Limit  int
}

// OrderPage is one page of the buyer's orders.
type OrderPage struct {
	Orders     []Order         `json:"orders"`
	Pagination pagination.Meta `json:"pagination"`
}
