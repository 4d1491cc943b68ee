package order

import (
	"fmt"
	"slices"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// CheckoutStep is a page of the checkout flow.
type CheckoutStep int

const (
	StepAddress CheckoutStep = iota
	StepPayment
	StepReview
)

func (s CheckoutStep) String() string {
	switch s {
	case StepAddress:
		return "address"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Checkout walks the buyer through address, payment method and review.
// Steps are visited in order; going back keeps what was chosen.
type Checkout struct {
	step      CheckoutStep
	addresses []domain.Address
	address   *domain.Address
	methods   []domain.PaymentMethod
	method    domain.PaymentMethod
	notes     string
}

// NewCheckout starts a checkout over the buyer's saved addresses. The default
// address is preselected.
func NewCheckout(addresses []domain.Address) *Checkout {
	c := &Checkout{addresses: slices.Clone(addresses)}
	if def, ok := domain.DefaultAddress(addresses); ok {
		c.address = &def
	}
	return c
}

// Step returns the current step.
func (c *Checkout) Step() CheckoutStep { return c.step }

// Address returns the chosen address.
func (c *Checkout) Address() (domain.Address, bool) {
	if c.address == nil {
		return domain.Address{}, false
	}
	return *c.address, true
}

// PaymentMethod returns the chosen method, if any.
func (c *Checkout) PaymentMethod() domain.PaymentMethod { return c.method }

// Methods returns the methods offered for the chosen address.
func (c *Checkout) Methods() []domain.PaymentMethod { return slices.Clone(c.methods) }

// SelectAddress picks one of the saved addresses.
func (c *Checkout) SelectAddress(id string) error {
	if err := c.at(StepAddress); err != nil {
		return err
	}
	for i := range c.addresses {
		if c.addresses[i].ID == id {
			a := c.addresses[i]
			if c.address == nil || c.address.PostalCode != a.PostalCode {
				// Offered methods depend on the postal code. The chosen method
				// is kept until SetAvailableMethods rules it out.
				c.methods = nil
			}
			c.address = &a
			return nil
		}
	}
	return apperrors.NotFound("address", id)
}

// SetAvailableMethods records the methods the server offers for the chosen
// address. A previously chosen method that is no longer offered is dropped.
func (c *Checkout) SetAvailableMethods(methods []domain.PaymentMethod) {
	c.methods = slices.Clone(methods)
	if c.method != "" && !slices.Contains(c.methods, c.method) {
		c.method = ""
	}
}

// SelectPaymentMethod picks a payment method.
func (c *Checkout) SelectPaymentMethod(m domain.PaymentMethod) error {
	if err := c.at(StepPayment); err != nil {
		return err
	}
	if !m.IsValid() {
		return apperrors.Validation("unknown payment method", map[string]string{"paymentMethod": "must be one of upi, credit_card, debit_card, cash_on_delivery"})
	}
	if c.methods != nil && !slices.Contains(c.methods, m) {
		return apperrors.Validation(
			fmt.Sprintf("%s is not available for this address", m),
			map[string]string{"paymentMethod": "not available for this address"})
	}
	c.method = m
	return nil
}

// SetNotes sets delivery notes.
func (c *Checkout) SetNotes(notes string) { c.notes = notes }

// Next moves to the following step once the current one is complete.
func (c *Checkout) Next() error {
	switch c.step {
	case StepAddress:
		if c.address == nil {
			return apperrors.Validation("choose a delivery address", map[string]string{"shippingAddressId": "is required"})
		}
	case StepPayment:
		if c.method == "" {
			return apperrors.Validation("choose a payment method", map[string]string{"paymentMethod": "is required"})
		}
	case StepReview:
		return apperrors.Validation("already at the last step", nil)
	}
	c.step++
	return nil
}

// Back returns to the previous step.
func (c *Checkout) Back() error {
	if c.step == StepAddress {
		return apperrors.Validation("already at the first step", nil)
	}
	c.step--
	return nil
}

// Request builds the placement request. It is only available on review.
func (c *Checkout) Request() (PlaceRequest, error) {
	if err := c.at(StepReview); err != nil {
		return PlaceRequest{}, err
	}
	return PlaceRequest{AddressID: c.address.ID, PaymentMethod: c.method, Notes: c.notes}, nil
}

func (c *Checkout) at(step CheckoutStep) error {
	if c.step != step {
		return apperrors.Validation(fmt.Sprintf("checkout is at the %s step, not %s", c.step, step), nil)
	}
	return nil
}
