package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

// Response is the envelope every storefront API endpoint answers with.
type Response struct {
	Success   bool         `json:"success"`
	Data      any          `json:"data,omitempty"`
	Message   string       `json:"message,omitempty"`
	Errors    []FieldError `json:"errors,omitempty"`
	RequestID string       `json:"requestId,omitempty"`
}

// FieldError is a per-field validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes a successful envelope carrying data.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Response{Success: true, Data: data})
}

// WriteMessage writes a successful envelope carrying only a message.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{Success: true, Message: message})
}

// WriteError writes a failure envelope for err. AppErrors keep their status
// and message; sentinel errors map through apperrors.HTTPStatus; anything else
// is a logged 500. The request-scoped logger is preferred over fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		if appErr.Status >= http.StatusInternalServerError {
			l.ErrorContext(r.Context(), "request failed",
				slog.String("error", err.Error()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
		}
		WriteJSON(w, appErr.Status, Response{
			Message:   appErr.Message,
			Errors:    fieldErrors(appErr.Fields),
			RequestID: requestID,
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	message := http.StatusText(status)
	if status == http.StatusInternalServerError {
		message = "an internal error occurred"
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}
	WriteJSON(w, status, Response{Message: message, RequestID: requestID})
}

// WriteValidationError writes a 400 for a body that failed to decode or
// validate.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Message: "request validation failed",
			Errors:  fieldErrors(valErr.Fields()),
		})
		return
	}
	WriteJSON(w, http.StatusBadRequest, Response{Message: err.Error()})
}

// DecodeAndValidate decodes the request body into dst and validates it. On
// failure it writes the 400 and returns false.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := validator.DecodeAndValidate(r, dst); err != nil {
		WriteValidationError(w, err)
		return false
	}
	return true
}

// ParseUUID validates a path identifier. On failure it writes a 400 naming
// the resource and returns false.
func ParseUUID(w http.ResponseWriter, param, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{Message: "Invalid " + resource + " ID"})
		return uuid.Nil, false
	}
	return id, true
}

func fieldErrors(fields map[string]string) []FieldError {
	if len(fields) == 0 {
		return nil
	}
	out := make([]FieldError, 0, len(fields))
	for f, msg := range fields {
		out = append(out, FieldError{Field: f, Message: msg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
