// Package api is the typed adapter over the storefront REST API. It owns the
// bearer-token attachment and the single transparent refresh on 401.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dunglas/httpsfv"
	"golang.org/x/sync/singleflight"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/metrics"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
)

const (
	refreshPath       = "/auth/refresh-token"
	IdempotencyHeader = "Idempotency-Key"
)

// Credentials is the token source the adapter authenticates with. The session
// implements it; the adapter never touches persisted storage itself.
type Credentials interface {
	AccessToken() string
	RefreshToken() string
	// StoreTokens persists a refreshed pair. An empty refresh keeps the old one.
	StoreTokens(ctx context.Context, access, refresh string) error
	// Expire drops the session after an irrecoverable refresh failure.
	Expire(ctx context.Context, cause error)
}

// Doer sends one HTTP request. *httpclient.CircuitBreakerClient implements it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

type returnPathKey struct{}

// WithReturnPath records where the caller should resume after logging in
// again. It is carried by AuthExpired and NotAuthenticated errors.
func WithReturnPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, returnPathKey{}, path)
}

// ReturnPath extracts the path stored by WithReturnPath.
func ReturnPath(ctx context.Context) string {
	if v, ok := ctx.Value(returnPathKey{}).(string); ok {
		return v
	}
	return ""
}

// RequestOption customises an outgoing request.
type RequestOption func(*http.Request) error

// WithIdempotencyKey sends key as an RFC 8941 string in the Idempotency-Key header.
func WithIdempotencyKey(key string) RequestOption {
	return func(r *http.Request) error {
		v, err := httpsfv.Marshal(httpsfv.NewItem(key))
		if err != nil {
			return fmt.Errorf("encode idempotency key: %w", err)
		}
		r.Header.Set(IdempotencyHeader, v)
		return nil
	}
}

// Client is the storefront API adapter.
type Client struct {
	baseURL string
	http    Doer
	logger  *slog.Logger

	creds   Credentials
	refresh singleflight.Group
}

// New creates an adapter for the API rooted at baseURL.
func New(baseURL string, doer Doer, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
		logger:  logger,
	}
}

// SetCredentials installs the token source. It must be called before the
// first authenticated request.
func (c *Client) SetCredentials(creds Credentials) {
	c.creds = creds
}

// Do performs one API call and decodes the envelope's data into out (which may
// be nil). Authenticated calls carry the bearer token; a 401 triggers one
// shared refresh and a single replay. Public calls never carry a token.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, authRequired bool, opts ...RequestOption) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		payload = b
	}

	token := ""
	if authRequired {
		token = c.accessToken()
		if token == "" {
			appErr := apperrors.NotAuthenticated("sign in to continue")
			appErr.ReturnPath = ReturnPath(ctx)
			return appErr
		}
	}

	resp, err := c.send(ctx, method, path, payload, token, opts)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && authRequired && path != refreshPath {
		_ = httpclient.ParseResponseError(resp)

		fresh, err := c.refreshAccess(ctx, token)
		if err != nil {
			return err
		}
		resp, err = c.send(ctx, method, path, payload, fresh, opts)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			cause := httpclient.ParseResponseError(resp)
			c.creds.Expire(ctx, cause)
			return apperrors.AuthExpired(ReturnPath(ctx), cause)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp)
	}
	if err := httpclient.DecodeEnvelope(resp, out); err != nil {
		return apperrors.Wrap(err, fmt.Sprintf("%s %s", method, path))
	}
	return nil
}

func (c *Client) accessToken() string {
	if c.creds == nil {
		return ""
	}
	return c.creds.AccessToken()
}

// send issues one request. Transport failures become NetworkError; typed
// errors from the circuit breaker pass through unchanged.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string, opts []RequestOption) (*http.Response, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, opt := range opts {
		if err := opt(req); err != nil {
			return nil, err
		}
	}

	endpoint := endpointLabel(strings.SplitN(path, "?", 2)[0])
	start := time.Now()
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			metrics.ObserveAPIRequest(method, endpoint, appErr.Status, time.Since(start))
			return nil, err
		}
		metrics.ObserveAPIRequest(method, endpoint, 0, time.Since(start))
		c.logger.WarnContext(ctx, "storefront api unreachable",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.Network(err)
	}
	metrics.ObserveAPIRequest(method, endpoint, resp.StatusCode, time.Since(start))
	c.logger.DebugContext(ctx, "storefront api call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

// refreshAccess exchanges the refresh token for a new access token. Concurrent
// callers that were rejected with the same token share one refresh call. If
// another caller already rotated the token, the current one is returned
// without a new refresh.
func (c *Client) refreshAccess(ctx context.Context, rejected string) (string, error) {
	if cur := c.accessToken(); cur != "" && cur != rejected {
		return cur, nil
	}

	v, err, _ := c.refresh.Do(rejected, func() (any, error) {
		refresh := c.creds.RefreshToken()
		if refresh == "" {
			metrics.TokenRefreshes.WithLabelValues("missing").Inc()
			cause := errors.New("no refresh token")
			c.creds.Expire(ctx, cause)
			return "", cause
		}

		var pair domain.TokenPair
		err := c.Do(ctx, http.MethodPost, refreshPath, map[string]string{"refreshToken": refresh}, &pair, false)
		if err == nil && pair.AccessToken == "" {
			err = errors.New("refresh response carried no access token")
		}
		if err != nil {
			metrics.TokenRefreshes.WithLabelValues("failed").Inc()
			c.logger.WarnContext(ctx, "access token refresh failed", slog.String("error", err.Error()))
			c.creds.Expire(ctx, err)
			return "", err
		}

		if err := c.creds.StoreTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
			metrics.TokenRefreshes.WithLabelValues("failed").Inc()
			return "", fmt.Errorf("store refreshed tokens: %w", err)
		}
		metrics.TokenRefreshes.WithLabelValues("ok").Inc()
		return pair.AccessToken, nil
	})
	if err != nil {
		return "", apperrors.AuthExpired(ReturnPath(ctx), err)
	}
	return v.(string), nil
}

// routeWords are path segments that are fixed words rather than IDs.
var routeWords = map[string]bool{
	"summary": true, "cancel": true, "default": true, "search": true,
	"verify": true, "methods": true, "status": true,
}

// endpointLabel replaces ID segments of a path with :id so metric labels stay
// bounded.
func endpointLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if i >= 2 && !routeWords[p] {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}
