package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for the storefront error taxonomy.
var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrAuthExpired        = errors.New("authentication expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailUnverified    = errors.New("email not verified")
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("resource not found")
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("rate limited")
	ErrNetwork            = errors.New("network error")
	ErrServer             = errors.New("server error")
	ErrServiceUnavail     = errors.New("service unavailable")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrInternal           = errors.New("internal error")
)

// Payment failure reasons. Each is surfaced with its own message.
const (
	ReasonProviderLoad = "provider_load"
	ReasonUserCancel   = "user_cancel"
	ReasonVerifyFail   = "verify_fail"
	ReasonDeclined     = "declined"
)

// AppError represents a structured storefront error. Status is the HTTP status
// reported by the API server (0 for failures that never reached it).
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Status     int               `json:"-"`
	Reason     string            `json:"reason,omitempty"`
	ReturnPath string            `json:"return_path,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	Err        error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotAuthenticated is returned when an action requires a session.
func NotAuthenticated(message string) *AppError {
	return &AppError{
		Code:    "NOT_AUTHENTICATED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrNotAuthenticated,
	}
}

// AuthExpired is returned when the token refresh failed and credentials were
// cleared. returnPath is where the caller should resume after logging in again.
func AuthExpired(returnPath string, cause error) *AppError {
	err := ErrAuthExpired
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrAuthExpired, cause)
	}
	return &AppError{
		Code:       "AUTH_EXPIRED",
		Message:    "your session has expired, please log in again",
		Status:     http.StatusUnauthorized,
		ReturnPath: returnPath,
		Err:        err,
	}
}

// InvalidCredentials is returned by login for a wrong email/password pair.
func InvalidCredentials(message string) *AppError {
	return &AppError{
		Code:    "INVALID_CREDENTIALS",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidCredentials,
	}
}

// EmailUnverified is returned by login when the account still needs email verification.
func EmailUnverified(message string) *AppError {
	return &AppError{
		Code:    "EMAIL_UNVERIFIED",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrEmailUnverified,
	}
}

// Validation creates a 400 error. fields may be nil.
func Validation(message string, fields map[string]string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: message,
		Status:  http.StatusBadRequest,
		Fields:  fields,
		Err:     ErrValidation,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// RateLimited creates a 429 error.
func RateLimited(message string) *AppError {
	return &AppError{
		Code:    "RATE_LIMITED",
		Message: message,
		Status:  http.StatusTooManyRequests,
		Err:     ErrRateLimited,
	}
}

// Network wraps a transport failure (DNS, refused connection, timeout).
func Network(err error) *AppError {
	return &AppError{
		Code:    "NETWORK_ERROR",
		Message: "could not reach the storefront server",
		Err:     fmt.Errorf("%w: %w", ErrNetwork, err),
	}
}

// Server creates an error for a 5xx response.
func Server(status int, message string) *AppError {
	if message == "" {
		message = "the storefront server failed to process the request"
	}
	return &AppError{
		Code:    "SERVER_ERROR",
		Message: message,
		Status:  status,
		Err:     ErrServer,
	}
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(message string) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     ErrServiceUnavail,
	}
}

// PaymentFailed creates a payment failure carrying one of the Reason* constants.
func PaymentFailed(reason, message string, cause error) *AppError {
	err := ErrPaymentFailed
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrPaymentFailed, cause)
	}
	return &AppError{
		Code:    "PAYMENT_FAILED",
		Message: message,
		Status:  http.StatusUnprocessableEntity,
		Reason:  reason,
		Err:     err,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrAuthExpired), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrEmailUnverified):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrPaymentFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the AppError code of err, or INTERNAL_ERROR for untyped errors.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "INTERNAL_ERROR"
}

// PaymentReason returns the payment failure reason carried by err, if any.
func PaymentReason(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Reason
	}
	return ""
}
