// Package session owns the authentication session and is the only component
// that reads or writes persisted credentials.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/tokenstore"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/validator"
)

// Reasons reported in session.changed events.
const (
	ReasonLogin     = "login"
	ReasonVerify    = "verify"
	ReasonBootstrap = "bootstrap"
	ReasonLogout    = "logout"
	ReasonExpired   = "expired"
	ReasonProfile   = "profile"
)

// AuthAPI is the subset of the API adapter the session calls.
type AuthAPI interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResponse, error)
	Register(ctx context.Context, reg domain.Registration) error
	VerifyEmail(ctx context.Context, v domain.EmailVerification) (*domain.AuthResponse, error)
	ResendOTP(ctx context.Context, email string) error
	Me(ctx context.Context) (*domain.User, error)
	Logout(ctx context.Context) error
}

// Session holds the current user and tokens. IsAuthenticated is true exactly
// when a user is present, and a user is present only while tokens are.
type Session struct {
	api    AuthAPI
	store  tokenstore.Store
	bus    *event.Bus
	logger *slog.Logger

	mu      sync.Mutex
	user    *domain.User
	access  string
	refresh string
}

// New creates an anonymous session. Call Bootstrap before use.
func New(api AuthAPI, store tokenstore.Store, bus *event.Bus, logger *slog.Logger) *Session {
	return &Session{api: api, store: store, bus: bus, logger: logger}
}

// User returns a copy of the signed-in user, or nil.
func (s *Session) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated reports whether a user is signed in.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

// AccessToken implements api.Credentials.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

// RefreshToken implements api.Credentials.
func (s *Session) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh
}

// StoreTokens implements api.Credentials. An empty refresh keeps the current one.
func (s *Session) StoreTokens(ctx context.Context, access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if refresh == "" {
		refresh = s.refresh
	}
	if err := s.persist(ctx, access, refresh); err != nil {
		return err
	}
	s.access, s.refresh = access, refresh
	return nil
}

// Expire implements api.Credentials: the refresh failed, so everything is dropped.
func (s *Session) Expire(ctx context.Context, cause error) {
	attrs := []any{}
	if cause != nil {
		attrs = append(attrs, slog.String("error", cause.Error()))
	}
	s.logger.InfoContext(ctx, "session expired", attrs...)
	s.clear(ctx, ReasonExpired)
}

// ExpiresAt reads the exp claim of the access token without verifying the
// signature. It is for display only.
func (s *Session) ExpiresAt() (time.Time, bool) {
	token := s.AccessToken()
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Bootstrap restores a persisted session. When an access token is stored the
// profile is fetched; any failure clears the stored tokens and leaves the
// session anonymous. Only a failing credential store is reported as an error.
func (s *Session) Bootstrap(ctx context.Context) error {
	access, err := s.load(ctx, tokenstore.KeyAccessToken)
	if err != nil {
		return err
	}
	refresh, err := s.load(ctx, tokenstore.KeyRefreshToken)
	if err != nil {
		return err
	}
	if access == "" {
		if refresh != "" {
			s.clear(ctx, "")
		}
		return nil
	}

	s.mu.Lock()
	s.access, s.refresh = access, refresh
	s.mu.Unlock()

	user, err := s.api.Me(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "stored session rejected, signing out",
			slog.String("error", err.Error()),
		)
		s.clear(ctx, "")
		return nil
	}

	s.mu.Lock()
	if s.access == "" {
		// Expired while the profile was in flight.
		s.mu.Unlock()
		return nil
	}
	s.user = user
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "session restored", slog.String("user_id", user.ID))
	s.publish(ctx, ReasonBootstrap)
	return nil
}

// Login signs in with email and password.
func (s *Session) Login(ctx context.Context, email, password string) (*domain.User, error) {
	creds := domain.Credentials{Email: email, Password: password}
	if err := validator.Validate(creds); err != nil {
		return nil, validator.ToAppError(err)
	}

	resp, err := s.api.Login(ctx, creds)
	if err != nil {
		return nil, mapLoginError(err)
	}
	if err := s.establish(ctx, resp, ReasonLogin); err != nil {
		return nil, err
	}
	return s.User(), nil
}

// Register creates an account. The caller proceeds to VerifyEmail; no session
// is opened.
func (s *Session) Register(ctx context.Context, reg domain.Registration) error {
	if err := validator.Validate(reg); err != nil {
		return validator.ToAppError(err)
	}
	if err := s.api.Register(ctx, reg); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	s.logger.InfoContext(ctx, "account registered", slog.String("email", reg.Email))
	return nil
}

// VerifyEmail confirms a new account and opens a session.
func (s *Session) VerifyEmail(ctx context.Context, email, code string) (*domain.User, error) {
	v := domain.EmailVerification{Email: email, OTP: code}
	if err := validator.Validate(v); err != nil {
		return nil, validator.ToAppError(err)
	}
	resp, err := s.api.VerifyEmail(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("verify email: %w", err)
	}
	if err := s.establish(ctx, resp, ReasonVerify); err != nil {
		return nil, err
	}
	return s.User(), nil
}

// ResendOTP requests a new verification code.
func (s *Session) ResendOTP(ctx context.Context, email string) error {
	if err := validator.Validate(struct {
		Email string `json:"email" validate:"required,email"`
	}{email}); err != nil {
		return validator.ToAppError(err)
	}
	if err := s.api.ResendOTP(ctx, email); err != nil {
		return fmt.Errorf("resend otp: %w", err)
	}
	return nil
}

// UpdateUser replaces the signed-in user after a profile change. It is a
// no-op for an anonymous session or a different user ID.
func (s *Session) UpdateUser(ctx context.Context, u domain.User) {
	s.mu.Lock()
	if s.user == nil || s.user.ID != u.ID {
		s.mu.Unlock()
		return
	}
	s.user = &u
	s.mu.Unlock()
	s.publish(ctx, ReasonProfile)
}

// Logout tells the server (best effort) and then always clears local state.
func (s *Session) Logout(ctx context.Context) {
	if s.AccessToken() != "" {
		if err := s.api.Logout(ctx); err != nil {
			s.logger.WarnContext(ctx, "server logout failed, clearing local session anyway",
				slog.String("error", err.Error()),
			)
		}
	}
	s.clear(ctx, ReasonLogout)
}

func (s *Session) establish(ctx context.Context, resp *domain.AuthResponse, reason string) error {
	if resp.AccessToken == "" {
		return apperrors.Server(0, "authentication response carried no access token")
	}
	user := resp.User

	s.mu.Lock()
	if err := s.persist(ctx, resp.AccessToken, resp.RefreshToken); err != nil {
		s.mu.Unlock()
		return err
	}
	s.access, s.refresh = resp.AccessToken, resp.RefreshToken
	s.user = &user
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "session established",
		slog.String("user_id", user.ID),
		slog.String("reason", reason),
	)
	s.publish(ctx, reason)
	return nil
}

// clear drops the user and tokens from memory and storage. An empty reason
// suppresses the event when nobody was signed in.
func (s *Session) clear(ctx context.Context, reason string) {
	s.mu.Lock()
	wasAuthenticated := s.user != nil
	s.user = nil
	s.access, s.refresh = "", ""
	for _, key := range []string{tokenstore.KeyAccessToken, tokenstore.KeyRefreshToken} {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.ErrorContext(ctx, "failed to delete stored credential",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
	s.mu.Unlock()

	if reason == "" && !wasAuthenticated {
		return
	}
	if reason == "" {
		reason = ReasonExpired
	}
	s.publish(ctx, reason)
}

// persist writes both tokens; s.mu must be held.
func (s *Session) persist(ctx context.Context, access, refresh string) error {
	if err := s.store.Set(ctx, tokenstore.KeyAccessToken, access); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if refresh == "" {
		if err := s.store.Delete(ctx, tokenstore.KeyRefreshToken); err != nil {
			return fmt.Errorf("drop refresh token: %w", err)
		}
		return nil
	}
	if err := s.store.Set(ctx, tokenstore.KeyRefreshToken, refresh); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (s *Session) load(ctx context.Context, key string) (string, error) {
	v, err := s.store.Get(ctx, key)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read stored %s: %w", key, err)
	}
	return v, nil
}

func (s *Session) publish(ctx context.Context, reason string) {
	s.mu.Lock()
	payload := event.SessionPayload{Authenticated: s.user != nil, Reason: reason}
	if s.user != nil {
		payload.UserID = s.user.ID
	}
	s.mu.Unlock()
	s.bus.Publish(ctx, event.SessionChanged, payload.UserID, payload)
}

// mapLoginError narrows generic auth statuses to the login taxonomy.
func mapLoginError(err error) error {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, apperrors.ErrNotAuthenticated):
		return apperrors.InvalidCredentials(appErr.Message)
	case errors.Is(err, apperrors.ErrForbidden):
		return apperrors.EmailUnverified(appErr.Message)
	}
	return err
}
