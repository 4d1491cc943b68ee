package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const maxBodyBytes = 1 << 20

// Envelope is the response wrapper used by every storefront API endpoint.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Errors  []FieldError    `json:"errors,omitempty"`
}

// FieldError is a per-field validation failure reported by the server.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// DecodeEnvelope reads a 2xx response and decodes its data member into out.
// out may be nil when the caller does not need the payload. The body is
// consumed and closed.
func DecodeEnvelope(resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if out == nil || len(body) == 0 {
		return nil
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response envelope: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError. The server message from the envelope is preserved;
// when the body is not an envelope the status text is used instead.
//
// The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperrors.Server(resp.StatusCode, fmt.Sprintf("read error body: %v", err))
	}

	var env Envelope
	message := ""
	if json.Unmarshal(body, &env) == nil {
		message = env.Message
	}
	return mapStatus(resp.StatusCode, message, env.Errors)
}

// mapStatus translates an HTTP status and server message into the storefront
// error taxonomy.
func mapStatus(status int, message string, fieldErrs []FieldError) error {
	if message == "" {
		message = http.StatusText(status)
	}

	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		var fields map[string]string
		if len(fieldErrs) > 0 {
			fields = make(map[string]string, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields[fe.Field] = fe.Message
			}
		}
		appErr := apperrors.Validation(message, fields)
		appErr.Status = status
		return appErr
	case status == http.StatusUnauthorized:
		return &apperrors.AppError{
			Code:    "UNAUTHORIZED",
			Message: message,
			Status:  status,
			Err:     apperrors.ErrNotAuthenticated,
		}
	case status == http.StatusForbidden:
		return apperrors.Forbidden(message)
	case status == http.StatusNotFound:
		return &apperrors.AppError{
			Code:    "NOT_FOUND",
			Message: message,
			Status:  status,
			Err:     apperrors.ErrNotFound,
		}
	case status == http.StatusConflict:
		return apperrors.Conflict(message)
	case status == http.StatusTooManyRequests:
		return apperrors.RateLimited("too many requests, please wait a moment and try again")
	case status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(message)
	case status >= 500:
		return apperrors.Server(status, message)
	default:
		return &apperrors.AppError{
			Code:    "HTTP_ERROR",
			Message: message,
			Status:  status,
		}
	}
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
