package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// --- WriteJSON / WriteData ---

func TestWriteJSON_SetsContentTypeAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusTeapot, Response{})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestWriteData_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusCreated, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	assert.JSONEq(t, `true`, string(raw["success"]))
	assert.JSONEq(t, `{"key":"value"}`, string(raw["data"]))
	_, hasErrors := raw["errors"]
	assert.False(t, hasErrors)
}

func TestWriteMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteMessage(rec, http.StatusOK, "Logged out")

	resp := decode(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "Logged out", resp.Message)
	assert.Nil(t, resp.Data)
}

// --- WriteError ---

func TestWriteError_AppErrorKeepsStatusAndMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/user/cart/p1", nil)

	WriteError(rec, req, apperrors.Validation("Only 5 items in stock", nil), logger.Discard())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "Only 5 items in stock", resp.Message)
}

func TestWriteError_FieldsAreSorted(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/register", nil)

	WriteError(rec, req, apperrors.Validation("invalid", map[string]string{
		"phone": "must be 10 digits", "email": "is required",
	}), logger.Discard())

	resp := decode(t, rec)
	require.Len(t, resp.Errors, 2)
	assert.Equal(t, "email", resp.Errors[0].Field)
	assert.Equal(t, "phone", resp.Errors[1].Field)
}

func TestWriteError_Sentinels(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{apperrors.ErrNotFound, http.StatusNotFound},
		{apperrors.ErrConflict, http.StatusConflict},
		{apperrors.ErrForbidden, http.StatusForbidden},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		WriteError(rec, req, tt.err, logger.Discard())
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())
	}
}

func TestWriteError_InternalHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	WriteError(rec, req, errors.New("pq: password authentication failed"), logger.Discard())

	resp := decode(t, rec)
	assert.Equal(t, "an internal error occurred", resp.Message)
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req = req.WithContext(logger.WithCorrelationID(req.Context(), "corr-1"))

	WriteError(rec, req, apperrors.NotFound("order", "o1"), logger.Discard())

	assert.Equal(t, "corr-1", decode(t, rec).RequestID)
}

// --- DecodeAndValidate ---

type loginBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func TestDecodeAndValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.co","password":"x"}`))
		var body loginBody
		assert.True(t, DecodeAndValidate(rec, req, &body))
		assert.Equal(t, "a@b.co", body.Email)
	})

	t.Run("invalid json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{`))
		var body loginBody
		assert.False(t, DecodeAndValidate(rec, req, &body))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validation failure", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"nope"}`))
		var body loginBody
		assert.False(t, DecodeAndValidate(rec, req, &body))
		resp := decode(t, rec)
		assert.Equal(t, "request validation failed", resp.Message)
		assert.Len(t, resp.Errors, 2)
	})
}

// --- ParseUUID ---

func TestParseUUID(t *testing.T) {
	rec := httptest.NewRecorder()
	id, ok := ParseUUID(rec, "6f1c2a9e-1b2c-4d5e-8f90-123456789abc", "order")
	assert.True(t, ok)
	assert.Equal(t, "6f1c2a9e-1b2c-4d5e-8f90-123456789abc", id.String())

	rec = httptest.NewRecorder()
	_, ok = ParseUUID(rec, "not-an-id", "order")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid order ID", decode(t, rec).Message)
}
