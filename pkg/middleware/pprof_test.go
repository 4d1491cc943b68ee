package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/utafrali/storefront/pkg/logger"
)

func TestIPAllowlist(t *testing.T) {
	h := IPAllowlist([]string{"10.0.0.0/8", "not-a-cidr", "::1/128", "192.168.1.0/24"}, logger.Discard())(okHandler)

	tests := []struct {
		remote string
		status int
	}{
		{"10.1.2.3:1234", http.StatusOK},
		{"192.168.1.77:80", http.StatusOK},
		{"[::1]:1234", http.StatusOK},
		{"10.9.9.9", http.StatusOK},
		{"[::ffff:10.0.0.1]:1234", http.StatusOK},
		{"8.8.8.8:1234", http.StatusForbidden},
		{"garbage", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			assert.Equal(t, tt.status, serve(h, req).Code)
		})
	}
}

func TestIPAllowlist_EmptyDeniesAll(t *testing.T) {
	h := IPAllowlist(nil, logger.Discard())(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:1"

	rec := serve(h, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "access restricted by IP allowlist", envelope(t, rec).Message)
}

func TestRegisterPprof(t *testing.T) {
	r := chi.NewRouter()
	RegisterPprof(r, []string{"127.0.0.0/8"}, logger.Discard())

	for _, path := range []string{"/debug/pprof/", "/debug/pprof/cmdline", "/debug/pprof/symbol", "/debug/pprof/heap"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "127.0.0.1:1234"
		assert.Equal(t, http.StatusOK, serve(r, req).Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = "192.168.1.1:1234"
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)
}
