package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Sentinel error identity ---

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotAuthenticated, ErrAuthExpired, ErrInvalidCredentials, ErrEmailUnverified,
		ErrValidation, ErrConflict, ErrNotFound, ErrForbidden, ErrRateLimited,
		ErrNetwork, ErrServer, ErrServiceUnavail, ErrPaymentFailed, ErrInternal,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

// --- AppError behavior ---

func TestAppError_ErrorString_WithWrappedError(t *testing.T) {
	inner := fmt.Errorf("connection reset")
	appErr := &AppError{Code: "NETWORK_ERROR", Message: "unreachable", Err: inner}
	assert.Contains(t, appErr.Error(), "NETWORK_ERROR")
	assert.Contains(t, appErr.Error(), "unreachable")
	assert.Contains(t, appErr.Error(), "connection reset")
}

func TestAppError_ErrorString_WithoutWrappedError(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "order not found"}
	assert.Equal(t, "NOT_FOUND: order not found", appErr.Error())
}

func TestAppError_Unwrap_Nil(t *testing.T) {
	appErr := &AppError{Code: "TEST", Message: "test"}
	assert.Nil(t, appErr.Unwrap())
}

// --- Constructor functions ---

func TestNotAuthenticated(t *testing.T) {
	err := NotAuthenticated("please login to add items to cart")
	assert.Equal(t, "NOT_AUTHENTICATED", err.Code)
	assert.Equal(t, http.StatusUnauthorized, err.Status)
	assert.True(t, errors.Is(err, ErrNotAuthenticated))
}

func TestAuthExpired_CarriesReturnPathAndCause(t *testing.T) {
	cause := fmt.Errorf("refresh rejected")
	err := AuthExpired("/checkout/review", cause)
	assert.Equal(t, "AUTH_EXPIRED", err.Code)
	assert.Equal(t, "/checkout/review", err.ReturnPath)
	assert.True(t, errors.Is(err, ErrAuthExpired))
	assert.True(t, errors.Is(err, cause))
}

func TestAuthExpired_NilCause(t *testing.T) {
	err := AuthExpired("", nil)
	assert.True(t, errors.Is(err, ErrAuthExpired))
}

func TestLoginFailures(t *testing.T) {
	invalid := InvalidCredentials("wrong password")
	assert.True(t, errors.Is(invalid, ErrInvalidCredentials))
	assert.False(t, errors.Is(invalid, ErrEmailUnverified))

	unverified := EmailUnverified("verify your email first")
	assert.True(t, errors.Is(unverified, ErrEmailUnverified))
	assert.Equal(t, http.StatusForbidden, unverified.Status)
}

func TestValidation_Fields(t *testing.T) {
	err := Validation("request validation failed", map[string]string{"email": "is required"})
	assert.Equal(t, "VALIDATION_ERROR", err.Code)
	assert.Equal(t, "is required", err.Fields["email"])
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestNotFound(t *testing.T) {
	err := NotFound("order", "ord-1")
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "order")
	assert.Contains(t, err.Message, "ord-1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNetwork_WrapsCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := Network(cause)
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.True(t, errors.Is(err, cause))
	assert.Zero(t, err.Status)
}

func TestServer_DefaultMessage(t *testing.T) {
	err := Server(http.StatusBadGateway, "")
	assert.Equal(t, http.StatusBadGateway, err.Status)
	assert.NotEmpty(t, err.Message)
	assert.True(t, errors.Is(err, ErrServer))
}

func TestPaymentFailed_Reasons(t *testing.T) {
	reasons := []string{ReasonProviderLoad, ReasonUserCancel, ReasonVerifyFail, ReasonDeclined}
	for _, reason := range reasons {
		t.Run(reason, func(t *testing.T) {
			err := PaymentFailed(reason, "payment did not complete", nil)
			assert.Equal(t, reason, err.Reason)
			assert.Equal(t, reason, PaymentReason(err))
			assert.True(t, errors.Is(err, ErrPaymentFailed))
		})
	}
}

func TestPaymentReason_Untyped(t *testing.T) {
	assert.Empty(t, PaymentReason(fmt.Errorf("plain")))
}

// --- Wrap / Code ---

func TestWrap(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "get order")
	assert.Contains(t, wrapped.Error(), "get order")
	assert.True(t, errors.Is(wrapped, ErrNotFound))
}

func TestCode(t *testing.T) {
	assert.Equal(t, "CONFLICT", Code(fmt.Errorf("outer: %w", Conflict("dup"))))
	assert.Equal(t, "INTERNAL_ERROR", Code(fmt.Errorf("untyped")))
}

// --- HTTPStatus ---

func TestHTTPStatus_AppError(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(RateLimited("slow down")))
}

func TestHTTPStatus_SentinelErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrValidation, http.StatusBadRequest},
		{ErrNotAuthenticated, http.StatusUnauthorized},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrEmailUnverified, http.StatusForbidden},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrPaymentFailed, http.StatusUnprocessableEntity},
		{ErrServiceUnavail, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestHTTPStatus_NetworkErrorHasNoStatus(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Network(fmt.Errorf("eof"))))
}

func TestHTTPStatus_UnknownError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("unknown")))
}
