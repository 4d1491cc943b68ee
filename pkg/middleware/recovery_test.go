package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/utafrali/storefront/pkg/logger"
)

func TestRecovery_WritesEnvelope(t *testing.T) {
	var buf bytes.Buffer
	h := Recovery(logger.NewWithWriter("test", "info", &buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/public/products", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := envelope(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "an internal error occurred", resp.Message)
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestRecovery_RepanicsOnAbort(t *testing.T) {
	h := Recovery(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
