// Package mockapi is an in-memory stand-in for the storefront REST API,
// used for local development and end-to-end tests of the client.
package mockapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/middleware"
)

// Options configures a Server.
type Options struct {
	BasePath        string
	Latency         time.Duration
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	PaymentSecret   string
	Currency        string
	Seed            bool
	CORSOrigins     []string
	CatalogMaxAge   int
	PprofCIDRs      []string
}

// OptionsFromConfig maps the loaded configuration onto server options.
func OptionsFromConfig(cfg *config.MockAPIConfig) Options {
	return Options{
		BasePath:        cfg.BasePath,
		Latency:         cfg.Latency,
		JWTSecret:       cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		PaymentSecret:   cfg.SandboxPaymentSecret,
		Currency:        cfg.PaymentCurrency,
		Seed:            cfg.SeedDemoData,
		CORSOrigins:     cfg.CORSOrigins,
		CatalogMaxAge:   cfg.CatalogMaxAge,
		PprofCIDRs:      cfg.PprofCIDRs,
	}
}

// Server is the fake API. Its handlers share one mutex over the whole state.
type Server struct {
	opts   Options
	tokens *tokenIssuer
	health *health.Handler
	logger *slog.Logger

	mu sync.Mutex
	st *state
}

// New builds a server, seeding the demo catalog and account when opts.Seed
// is set.
func New(opts Options, logger *slog.Logger) (*Server, error) {
	if opts.JWTSecret == "" {
		return nil, errors.New("mockapi: JWT secret is required")
	}
	if opts.PaymentSecret == "" {
		return nil, errors.New("mockapi: payment secret is required")
	}
	if opts.AccessTokenTTL <= 0 {
		opts.AccessTokenTTL = 15 * time.Minute
	}
	if opts.RefreshTokenTTL <= 0 {
		opts.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	opts.BasePath = "/" + strings.Trim(opts.BasePath, "/")

	s := &Server{
		opts:   opts,
		tokens: newTokenIssuer(opts.JWTSecret, opts.AccessTokenTTL, opts.RefreshTokenTTL),
		health: health.NewHandler(),
		logger: logger,
		st:     newState(),
	}
	if opts.Seed {
		if err := s.seed(); err != nil {
			return nil, err
		}
	}
	s.health.RegisterCritical("catalog", func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if len(s.st.products) == 0 {
			return errors.New("catalog is empty")
		}
		return nil
	})
	return s, nil
}

// Handler returns the HTTP handler serving the API under opts.BasePath plus
// health, metrics and optional pprof endpoints at the root.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	cors := middleware.DefaultCORSConfig()
	if len(s.opts.CORSOrigins) > 0 {
		cors.AllowedOrigins = s.opts.CORSOrigins
	}
	r.Use(middleware.CORS(cors))
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.RequestLogging(s.logger))
	r.Use(middleware.Tracing("mockapi"))
	r.Use(middleware.PrometheusMetrics("mockapi"))
	r.Use(middleware.RequestLogger(s.logger))

	r.Get("/health/live", s.health.LivenessHandler())
	r.Get("/health/ready", s.health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	if len(s.opts.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, s.opts.PprofCIDRs, s.logger)
	}

	authn := middleware.Auth(s.validateAccess)

	r.Route(s.opts.BasePath, func(r chi.Router) {
		r.Use(s.latency)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.register)
			r.Post("/login", s.login)
			r.Post("/verify-email", s.verifyEmail)
			r.Post("/resend-otp", s.resendOTP)
			r.Post("/refresh-token", s.refreshToken)
			r.Group(func(r chi.Router) {
				r.Use(authn, middleware.RequestLogger(s.logger))
				r.Post("/logout", s.logout)
				r.Get("/me", s.me)
			})
		})

		r.Route("/public/products", func(r chi.Router) {
			r.Use(middleware.CacheControl(s.opts.CatalogMaxAge))
			r.Get("/", s.listProducts)
			r.Get("/search", s.searchProducts)
			r.Get("/{idOrSlug}", s.getProduct)
		})

		r.Route("/public/categories", func(r chi.Router) {
			r.Use(middleware.CacheControl(s.opts.CatalogMaxAge))
			r.Get("/", s.listCategories)
			r.Get("/{id}", s.getCategory)
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(authn, middleware.RequestLogger(s.logger), middleware.NoStore)

			r.Get("/profile", s.getProfile)
			r.Put("/profile", s.updateProfile)
			r.Patch("/change-password", s.changePassword)

			r.Get("/reviews", s.listReviews)
			r.Post("/reviews", s.createReview)

			r.Get("/cart", s.getCart)
			r.Post("/cart", s.addToCart)
			r.Delete("/cart", s.clearCart)
			r.Get("/cart/summary", s.cartSummary)
			r.Patch("/cart/{productId}", s.updateCartItem)
			r.Delete("/cart/{productId}", s.removeCartItem)

			r.Get("/wishlist", s.getWishlist)
			r.Post("/wishlist", s.addToWishlist)
			r.Delete("/wishlist/{productId}", s.removeFromWishlist)

			r.Get("/addresses", s.listAddresses)
			r.Post("/addresses", s.addAddress)
			r.Put("/addresses/{id}", s.updateAddress)
			r.Delete("/addresses/{id}", s.deleteAddress)
			r.Patch("/addresses/{id}/default", s.setDefaultAddress)

			r.Post("/orders", s.createOrder)
			r.Get("/orders", s.listOrders)
			r.Get("/orders/{id}", s.getOrder)
			r.Patch("/orders/{id}/cancel", s.cancelOrder)
		})

		r.Route("/payment", func(r chi.Router) {
			r.Use(authn, middleware.RequestLogger(s.logger), middleware.NoStore)
			r.Post("/verify", s.verifyPayment)
			r.Post("/methods", s.paymentMethods)
			r.Get("/status/{id}", s.paymentStatus)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authn, middleware.RequireRole("admin"), middleware.RequestLogger(s.logger))
			r.Patch("/orders/{id}/status", s.updateOrderStatus)
		})
	})

	return r
}

// ExpireAccessTokens invalidates every access token issued so far while
// leaving refresh tokens usable.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.accessEpoch++
}

// OTP returns the pending verification code for email. Codes are never
// delivered; development setups read them from here or from the log.
func (s *Server) OTP(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.st.accountByEmail(email)
	if a == nil || a.otp == "" {
		return "", false
	}
	return a.otp, true
}

func (s *Server) validateAccess(token string) (*middleware.Claims, error) {
	claims, err := s.tokens.parseAccess(token)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.accounts[claims.Subject]
	if !ok {
		return nil, errors.New("unknown user")
	}
	if claims.Gen != a.tokenGen || claims.Epoch != s.st.accessEpoch {
		return nil, errors.New("token revoked")
	}
	return &middleware.Claims{UserID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

func (s *Server) latency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Latency > 0 {
			t := time.NewTimer(s.opts.Latency)
			select {
			case <-t.C:
			case <-r.Context().Done():
				t.Stop()
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, err, s.logger)
}

func (s *Server) log(r *http.Request) *slog.Logger {
	l := logger.FromContext(r.Context())
	if l == slog.Default() {
		return s.logger
	}
	return l
}
