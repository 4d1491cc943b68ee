// Package metrics holds the Prometheus instruments of the storefront client.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_api_requests_total",
			Help: "Total number of storefront API requests by endpoint and status",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_api_request_duration_seconds",
			Help:    "Storefront API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_token_refreshes_total",
			Help: "Access token refresh attempts by outcome",
		},
		[]string{"outcome"},
	)

	CartDebounceSends = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_cart_debounce_sends_total",
		Help: "Quantity updates sent after the debounce window elapsed",
	})

	CartCoalescedEdits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_cart_coalesced_edits_total",
		Help: "Quantity edits absorbed by a later edit before being sent",
	})

	CartRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_cart_rollbacks_total",
		Help: "Cart lines reverted to the last confirmed quantity",
	})

	CartStaleResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_cart_stale_responses_total",
		Help: "Quantity update responses discarded because a newer edit exists",
	})

	WishlistRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_wishlist_rollbacks_total",
		Help: "Wishlist toggles reverted after a failed call",
	})

	OrderOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_outcomes_total",
			Help: "Order placement attempts by terminal outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveAPIRequest records one API round trip. status is 0 for requests that
// never got a response.
func ObserveAPIRequest(method, endpoint string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = fmt.Sprintf("%d", status)
	}
	APIRequests.WithLabelValues(method, endpoint, label).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// Serve exposes the default registry on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listener started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
