package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/pkg/logger"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &out))
	return out
}

func TestRequestLogging_GeneratesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	var inCtx string
	h := RequestLogging(logger.NewWithWriter("test", "info", &buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inCtx = logger.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("{}"))
	}))

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/user/orders", nil))

	id := rec.Header().Get(CorrelationHeader)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, inCtx)
	line := lastLine(t, &buf)
	assert.Equal(t, "http request", line["msg"])
	assert.Equal(t, float64(http.StatusCreated), line["status"])
	assert.Equal(t, float64(2), line["bytes"])
	assert.Equal(t, id, line["correlation_id"])
}

func TestRequestLogging_ReusesIncomingID(t *testing.T) {
	h := RequestLogging(logger.Discard())(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "corr-123")

	assert.Equal(t, "corr-123", serve(h, req).Header().Get(CorrelationHeader))
}

func TestRequestLogging_ServerErrorsLogAtError(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLogging(logger.NewWithWriter("test", "info", &buf))(statusHandler(http.StatusBadGateway))

	serve(h, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "ERROR", lastLine(t, &buf)["level"])
}

func TestRequestLogger_EnrichesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logger.NewWithWriter("test", "info", &buf)

	h := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).InfoContext(r.Context(), "handled")
	}))

	ctx := logger.WithCorrelationID(context.Background(), "corr-9")
	ctx = WithClaims(ctx, &Claims{UserID: "u7"})
	serve(h, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))

	line := lastLine(t, &buf)
	assert.Equal(t, "handled", line["msg"])
	assert.Equal(t, "corr-9", line["correlation_id"])
	assert.Equal(t, "u7", line["user_id"])
}

func TestRequestLogger_WithoutUser(t *testing.T) {
	var got *slog.Logger
	h := RequestLogger(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = logger.FromContext(r.Context())
	}))
	serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotNil(t, got)
	assert.NotSame(t, slog.Default(), got)
}
