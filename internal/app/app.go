// Package app wires the storefront client together from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/storefront/internal/api"
	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/metrics"
	"github.com/utafrali/storefront/internal/order"
	"github.com/utafrali/storefront/internal/order/sandbox"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/internal/store"
	"github.com/utafrali/storefront/internal/tokenstore"
	"github.com/utafrali/storefront/internal/wishlist"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/tracing"
)

const serviceName = "storefront"

// ErrPaymentsUnavailable is reported by the payment window when no sandbox
// secret is configured.
var ErrPaymentsUnavailable = errors.New("online payments are not configured: set SANDBOX_PAYMENT_SECRET")

// Options tune how the application is built.
type Options struct {
	// PaymentOutcome selects how sandbox payment windows end. Defaults to approve.
	PaymentOutcome sandbox.Outcome
	// Doer replaces the resilient HTTP client. Used by tests.
	Doer api.Doer
	// Tokens replaces the configured credential store. Used by tests.
	Tokens tokenstore.Store
}

// App holds the running client and everything it must release on exit.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	api       *api.Client
	bus       *event.Bus
	tokens    tokenstore.Store
	session   *session.Session
	store     *store.Store
	health    *health.Handler
	producer  *pkgkafka.Producer
	forwarder *event.Forwarder

	stopTracing  func(context.Context) error
	stopMetrics  context.CancelFunc
	metricsDone  chan error
	unsubForward func()
}

// New builds the dependency graph described by cfg. Nothing is fetched from
// the API until Bootstrap is called.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	a := &App{cfg: cfg, logger: logger, health: health.NewHandler()}

	tcfg := tracing.DefaultConfig(serviceName)
	tcfg.Environment = cfg.Environment
	tcfg.Enabled = cfg.OTELEnabled
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	stop, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.stopTracing = stop

	doer := opts.Doer
	if doer == nil {
		hcfg := httpclient.DefaultConfig()
		hcfg.Timeout = cfg.HTTPTimeout
		hcfg.RateLimit = cfg.RateLimitRPS
		hcfg.RateBurst = cfg.RateBurst
		doer = httpclient.NewCircuitBreakerClient(httpclient.New(hcfg), httpclient.DefaultCircuitBreakerConfig("storefront-api"), logger)
	}
	a.api = api.New(cfg.APIBaseURL, doer, logger)

	a.tokens = opts.Tokens
	if a.tokens == nil {
		a.tokens, err = tokenstore.Open(ctx, cfg, logger)
		if err != nil {
			a.shutdownTracing()
			return nil, err
		}
	}

	a.bus = event.NewBus()
	a.session = session.New(a.api, a.tokens, a.bus, logger)
	a.api.SetCredentials(a.session)

	cartEngine := cart.New(a.api, cart.Config{
		Debounce:      cfg.CartDebounce,
		Authenticated: a.session.IsAuthenticated,
	}, a.bus, logger)
	wl := wishlist.New(a.api, a.session.IsAuthenticated, a.bus, logger)

	provider, err := a.paymentProvider(opts.PaymentOutcome)
	if err != nil {
		_ = a.tokens.Close()
		a.shutdownTracing()
		return nil, err
	}
	orders := order.NewService(a.api, provider, cartEngine, order.Config{
		Currency: cfg.PaymentCurrency,
		Buyer:    a.session.User,
	}, a.bus, logger)

	a.store = store.New(store.Deps{
		Session:   a.session,
		Cart:      cartEngine,
		Wishlist:  wl,
		Orders:    orders,
		Catalog:   a.api,
		Addresses: a.api,
		Reviews:   a.api,
		Profile:   a.api,
		Bus:       a.bus,
		Logger:    logger,
	})

	if cfg.KafkaTopic != "" {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.forwarder = event.NewForwarder(a.producer, cfg.KafkaTopic, 0, logger)
		a.forwarder.Start()
		a.unsubForward = a.bus.Subscribe(a.forwarder.Handle)
		logger.Info("analytics forwarding enabled",
			slog.String("topic", cfg.KafkaTopic),
			slog.Any("brokers", cfg.KafkaBrokers),
		)
	}

	if cfg.MetricsAddr != "" {
		mctx, cancel := context.WithCancel(context.Background())
		a.stopMetrics = cancel
		a.metricsDone = make(chan error, 1)
		go func() {
			a.metricsDone <- metrics.Serve(mctx, cfg.MetricsAddr, logger)
		}()
	}

	a.registerHealth()
	return a, nil
}

func (a *App) paymentProvider(outcome sandbox.Outcome) (order.PaymentProvider, error) {
	if a.cfg.SandboxPaymentSecret == "" {
		return order.ProviderFunc(func(context.Context, order.Handoff) order.Event {
			return order.ProviderLoadFailed{Err: ErrPaymentsUnavailable}
		}), nil
	}
	if outcome == "" {
		outcome = sandbox.Approve
	}
	p, err := sandbox.New(a.cfg.SandboxPaymentSecret, outcome, a.logger)
	if err != nil {
		return nil, fmt.Errorf("payment provider: %w", err)
	}
	return p, nil
}

func (a *App) registerHealth() {
	a.health.RegisterCritical("api", func(ctx context.Context) error {
		_, err := a.api.ListProducts(ctx, domain.ProductFilter{Limit: 1})
		return err
	})
	a.health.RegisterCritical("credentials", func(ctx context.Context) error {
		_, err := a.tokens.Get(ctx, tokenstore.KeyAccessToken)
		if errors.Is(err, tokenstore.ErrNotFound) {
			return nil
		}
		return err
	})
	if a.producer != nil {
		a.health.RegisterNonCritical("kafka", a.producer.Ping)
	}
}

// Bootstrap restores a persisted session and loads its cart and wishlist.
func (a *App) Bootstrap(ctx context.Context) error {
	return a.store.Bootstrap(ctx)
}

// Store returns the state container.
func (a *App) Store() *store.Store { return a.store }

// Bus returns the event bus.
func (a *App) Bus() *event.Bus { return a.bus }

// Health returns the dependency checks.
func (a *App) Health() *health.Handler { return a.health }

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Close flushes pending cart edits and releases every resource. The ctx
// bounds the flush.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.store.Settle(ctx); err != nil {
		errs = append(errs, fmt.Errorf("settle cart: %w", err))
	}
	a.store.Close()

	if a.forwarder != nil {
		a.unsubForward()
		a.forwarder.Close()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
		}
	}
	if err := a.tokens.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close credential store: %w", err))
	}
	if a.stopMetrics != nil {
		a.stopMetrics()
		if err := <-a.metricsDone; err != nil {
			errs = append(errs, err)
		}
	}
	a.shutdownTracing()
	return errors.Join(errs...)
}

func (a *App) shutdownTracing() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.stopTracing(ctx); err != nil {
		a.logger.Warn("tracer shutdown error", slog.String("error", err.Error()))
	}
}
