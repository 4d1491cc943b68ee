package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func testAddresses() []domain.Address {
	return []domain.Address{
		{ID: "a1", Label: "Home", Street: "1 Main St", City: "Pune", State: "MH", Country: "India", PostalCode: "411001"},
		{ID: "a2", Label: "Office", Street: "9 Park Rd", City: "Mumbai", State: "MH", Country: "India", PostalCode: "400001", IsDefault: true},
	}
}

func TestCheckout_PreselectsDefaultAddress(t *testing.T) {
	c := NewCheckout(testAddresses())
	a, ok := c.Address()
	require.True(t, ok)
	assert.Equal(t, "a2", a.ID)
	assert.Equal(t, StepAddress, c.Step())
}

func TestCheckout_EnforcesStepOrder(t *testing.T) {
	c := NewCheckout(nil)

	assert.ErrorIs(t, c.Next(), apperrors.ErrValidation, "no address chosen")
	assert.ErrorIs(t, c.SelectPaymentMethod(domain.PaymentUPI), apperrors.ErrValidation, "not at payment step")
	_, err := c.Request()
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.ErrorIs(t, c.Back(), apperrors.ErrValidation)
}

func TestCheckout_FullFlowWithBackNavigation(t *testing.T) {
	c := NewCheckout(testAddresses())
	require.NoError(t, c.SelectAddress("a1"))
	require.NoError(t, c.Next())
	assert.Equal(t, StepPayment, c.Step())

	assert.ErrorIs(t, c.Next(), apperrors.ErrValidation, "no method chosen")
	c.SetAvailableMethods([]domain.PaymentMethod{domain.PaymentUPI, domain.PaymentCashOnDelivery})
	assert.ErrorIs(t, c.SelectPaymentMethod(domain.PaymentCreditCard), apperrors.ErrValidation, "not offered")
	require.NoError(t, c.SelectPaymentMethod(domain.PaymentCashOnDelivery))
	c.SetNotes("leave at the door")
	require.NoError(t, c.Next())
	assert.Equal(t, StepReview, c.Step())

	// Going back keeps the earlier choices.
	require.NoError(t, c.Back())
	require.NoError(t, c.Back())
	assert.Equal(t, StepAddress, c.Step())
	a, _ := c.Address()
	assert.Equal(t, "a1", a.ID)
	assert.Equal(t, domain.PaymentCashOnDelivery, c.PaymentMethod())

	require.NoError(t, c.Next())
	require.NoError(t, c.Next())
	req, err := c.Request()
	require.NoError(t, err)
	assert.Equal(t, PlaceRequest{AddressID: "a1", PaymentMethod: domain.PaymentCashOnDelivery, Notes: "leave at the door"}, req)
	assert.ErrorIs(t, c.Next(), apperrors.ErrValidation)
}

func TestCheckout_ChangingPostalCodeRevalidatesMethod(t *testing.T) {
	c := NewCheckout(testAddresses())
	require.NoError(t, c.SelectAddress("a1"))
	require.NoError(t, c.Next())
	c.SetAvailableMethods([]domain.PaymentMethod{domain.PaymentUPI, domain.PaymentCashOnDelivery})
	require.NoError(t, c.SelectPaymentMethod(domain.PaymentUPI))
	require.NoError(t, c.Back())

	require.NoError(t, c.SelectAddress("a2"))
	assert.Empty(t, c.Methods())
	assert.Equal(t, domain.PaymentUPI, c.PaymentMethod())

	// Still offered for the new postal code: the choice survives.
	require.NoError(t, c.Next())
	c.SetAvailableMethods([]domain.PaymentMethod{domain.PaymentUPI})
	assert.Equal(t, domain.PaymentUPI, c.PaymentMethod())
	require.NoError(t, c.Next())
	req, err := c.Request()
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentUPI, req.PaymentMethod)

	// Not offered after switching back: the choice is dropped.
	require.NoError(t, c.Back())
	require.NoError(t, c.Back())
	require.NoError(t, c.SelectAddress("a1"))
	require.NoError(t, c.Next())
	c.SetAvailableMethods([]domain.PaymentMethod{domain.PaymentCashOnDelivery})
	assert.Empty(t, c.PaymentMethod())
}

func TestCheckout_UnknownAddress(t *testing.T) {
	c := NewCheckout(testAddresses())
	assert.ErrorIs(t, c.SelectAddress("zzz"), apperrors.ErrNotFound)
}

func TestCheckout_SetAvailableMethodsDropsStaleChoice(t *testing.T) {
	c := NewCheckout(testAddresses())
	require.NoError(t, c.Next())
	require.NoError(t, c.SelectPaymentMethod(domain.PaymentCreditCard))

	c.SetAvailableMethods([]domain.PaymentMethod{domain.PaymentUPI})

	assert.Empty(t, c.PaymentMethod())
}

func TestCheckoutStep_String(t *testing.T) {
	assert.Equal(t, "address", StepAddress.String())
	assert.Equal(t, "review", StepReview.String())
	assert.Equal(t, "step(9)", CheckoutStep(9).String())
}
