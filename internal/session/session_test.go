package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/tokenstore"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
)

// --- Mock Auth API ---

type mockAuthAPI struct {
	mock.Mock
}

func (m *mockAuthAPI) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResponse, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthResponse), args.Error(1)
}

func (m *mockAuthAPI) Register(ctx context.Context, reg domain.Registration) error {
	return m.Called(ctx, reg).Error(0)
}

func (m *mockAuthAPI) VerifyEmail(ctx context.Context, v domain.EmailVerification) (*domain.AuthResponse, error) {
	args := m.Called(ctx, v)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthResponse), args.Error(1)
}

func (m *mockAuthAPI) ResendOTP(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuthAPI) Me(ctx context.Context) (*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockAuthAPI) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// --- helpers ---

func newTestSession(t *testing.T) (*Session, *mockAuthAPI, *tokenstore.MemoryStore, *event.Recorder) {
	t.Helper()
	api := &mockAuthAPI{}
	store := tokenstore.NewMemoryStore()
	bus := event.NewBus()
	rec := &event.Recorder{}
	bus.Subscribe(rec.Handle)
	return New(api, store, bus, logger.Discard()), api, store, rec
}

func authResponse() *domain.AuthResponse {
	return &domain.AuthResponse{
		User:         domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com", EmailVerified: true},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}
}

func assertInvariant(t *testing.T, s *Session) {
	t.Helper()
	assert.Equal(t, s.User() != nil, s.IsAuthenticated())
}

func storedToken(t *testing.T, store tokenstore.Store, key string) string {
	t.Helper()
	v, err := store.Get(context.Background(), key)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return ""
	}
	require.NoError(t, err)
	return v
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	s, api, store, rec := newTestSession(t)
	ctx := context.Background()
	api.On("Login", mock.Anything, domain.Credentials{Email: "ada@example.com", Password: "pw"}).Return(authResponse(), nil)

	user, err := s.Login(ctx, "ada@example.com", "pw")

	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.True(t, s.IsAuthenticated())
	assertInvariant(t, s)
	assert.Equal(t, "access-1", storedToken(t, store, tokenstore.KeyAccessToken))
	assert.Equal(t, "refresh-1", storedToken(t, store, tokenstore.KeyRefreshToken))

	events := rec.Events(event.SessionChanged)
	require.Len(t, events, 1)
	assert.Equal(t, event.SessionPayload{UserID: "u1", Authenticated: true, Reason: ReasonLogin}, events[0].Data)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	s, api, store, _ := newTestSession(t)
	api.On("Login", mock.Anything, mock.Anything).Return(nil, &apperrors.AppError{
		Code: "UNAUTHORIZED", Message: "Invalid email or password", Status: 401, Err: apperrors.ErrNotAuthenticated,
	})

	_, err := s.Login(context.Background(), "ada@example.com", "wrong")

	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "Invalid email or password")
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, storedToken(t, store, tokenstore.KeyAccessToken))
}

func TestLogin_EmailUnverified(t *testing.T) {
	s, api, _, _ := newTestSession(t)
	api.On("Login", mock.Anything, mock.Anything).Return(nil, apperrors.Forbidden("Please verify your email"))

	_, err := s.Login(context.Background(), "ada@example.com", "pw")

	assert.ErrorIs(t, err, apperrors.ErrEmailUnverified)
}

func TestLogin_RejectsMalformedEmailWithoutCallingServer(t *testing.T) {
	s, api, _, _ := newTestSession(t)

	_, err := s.Login(context.Background(), "not-an-email", "pw")

	require.ErrorIs(t, err, apperrors.ErrValidation)
	api.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

// --- Register ---

func validRegistration() domain.Registration {
	return domain.Registration{
		Name:            "Ada Lovelace",
		Email:           "ada@example.com",
		Phone:           "9876543210",
		Password:        "Sup3r$ecret",
		ConfirmPassword: "Sup3r$ecret",
	}
}

func TestRegister_Success(t *testing.T) {
	s, api, _, rec := newTestSession(t)
	api.On("Register", mock.Anything, validRegistration()).Return(nil)

	require.NoError(t, s.Register(context.Background(), validRegistration()))
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, rec.Events())
}

func TestRegister_ClientValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Registration)
		field  string
	}{
		{"short name", func(r *domain.Registration) { r.Name = "A" }, "name"},
		{"bad email", func(r *domain.Registration) { r.Email = "ada" }, "email"},
		{"short phone", func(r *domain.Registration) { r.Phone = "12345" }, "phone"},
		{"weak password", func(r *domain.Registration) { r.Password, r.ConfirmPassword = "password", "password" }, "password"},
		{"mismatch", func(r *domain.Registration) { r.ConfirmPassword = "Other$ecret1" }, "ConfirmPassword"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, api, _, _ := newTestSession(t)
			reg := validRegistration()
			tt.mutate(&reg)

			err := s.Register(context.Background(), reg)

			require.ErrorIs(t, err, apperrors.ErrValidation)
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Contains(t, appErr.Fields, tt.field)
			api.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
		})
	}
}

func TestRegister_EmailConflict(t *testing.T) {
	s, api, _, _ := newTestSession(t)
	api.On("Register", mock.Anything, mock.Anything).Return(apperrors.Conflict("User already exists with this email"))

	err := s.Register(context.Background(), validRegistration())

	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

// --- VerifyEmail / ResendOTP ---

func TestVerifyEmail_EstablishesSession(t *testing.T) {
	s, api, _, rec := newTestSession(t)
	api.On("VerifyEmail", mock.Anything, domain.EmailVerification{Email: "ada@example.com", OTP: "123456"}).Return(authResponse(), nil)

	user, err := s.VerifyEmail(context.Background(), "ada@example.com", "123456")

	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.True(t, s.IsAuthenticated())
	events := rec.Events(event.SessionChanged)
	require.Len(t, events, 1)
	assert.Equal(t, ReasonVerify, events[0].Data.(event.SessionPayload).Reason)
}

func TestVerifyEmail_RejectsMalformedCode(t *testing.T) {
	s, api, _, _ := newTestSession(t)

	_, err := s.VerifyEmail(context.Background(), "ada@example.com", "12ab")

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	api.AssertNotCalled(t, "VerifyEmail", mock.Anything, mock.Anything)
}

func TestResendOTP(t *testing.T) {
	s, api, _, _ := newTestSession(t)
	api.On("ResendOTP", mock.Anything, "ada@example.com").Return(nil)

	require.NoError(t, s.ResendOTP(context.Background(), "ada@example.com"))
	assert.ErrorIs(t, s.ResendOTP(context.Background(), "nope"), apperrors.ErrValidation)
}

// --- Logout ---

func TestLogout_SwallowsServerFailure(t *testing.T) {
	s, api, store, rec := newTestSession(t)
	ctx := context.Background()
	api.On("Login", mock.Anything, mock.Anything).Return(authResponse(), nil)
	api.On("Logout", mock.Anything).Return(apperrors.Network(errors.New("connection refused")))
	_, err := s.Login(ctx, "ada@example.com", "pw")
	require.NoError(t, err)

	s.Logout(ctx)

	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.User())
	assertInvariant(t, s)
	assert.Empty(t, s.AccessToken())
	assert.Empty(t, storedToken(t, store, tokenstore.KeyAccessToken))
	assert.Empty(t, storedToken(t, store, tokenstore.KeyRefreshToken))

	events := rec.Events(event.SessionChanged)
	require.Len(t, events, 2)
	assert.Equal(t, event.SessionPayload{Authenticated: false, Reason: ReasonLogout}, events[1].Data)
}

func TestLogout_AnonymousSkipsServer(t *testing.T) {
	s, api, _, _ := newTestSession(t)

	s.Logout(context.Background())

	api.AssertNotCalled(t, "Logout", mock.Anything)
	assertInvariant(t, s)
}

// --- Bootstrap ---

func TestBootstrap_RestoresSession(t *testing.T) {
	s, api, store, rec := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, tokenstore.KeyAccessToken, "access-1"))
	require.NoError(t, store.Set(ctx, tokenstore.KeyRefreshToken, "refresh-1"))
	api.On("Me", mock.Anything).Return(&domain.User{ID: "u1"}, nil)

	require.NoError(t, s.Bootstrap(ctx))

	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "refresh-1", s.RefreshToken())
	events := rec.Events(event.SessionChanged)
	require.Len(t, events, 1)
	assert.Equal(t, ReasonBootstrap, events[0].Data.(event.SessionPayload).Reason)
}

func TestBootstrap_RejectedTokenLeavesAnonymous(t *testing.T) {
	s, api, store, _ := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, tokenstore.KeyAccessToken, "expired"))
	require.NoError(t, store.Set(ctx, tokenstore.KeyRefreshToken, "revoked"))
	api.On("Me", mock.Anything).Return(nil, apperrors.AuthExpired("", errors.New("jwt expired")))

	require.NoError(t, s.Bootstrap(ctx))

	assert.False(t, s.IsAuthenticated())
	assertInvariant(t, s)
	assert.Empty(t, s.AccessToken())
	assert.Empty(t, storedToken(t, store, tokenstore.KeyAccessToken))
	assert.Empty(t, storedToken(t, store, tokenstore.KeyRefreshToken))
}

func TestBootstrap_NetworkFailureAlsoClears(t *testing.T) {
	s, api, store, _ := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, tokenstore.KeyAccessToken, "a"))
	api.On("Me", mock.Anything).Return(nil, apperrors.Network(errors.New("dial tcp: refused")))

	require.NoError(t, s.Bootstrap(ctx))

	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, storedToken(t, store, tokenstore.KeyAccessToken))
}

func TestBootstrap_NoTokenSkipsProfile(t *testing.T) {
	s, api, store, _ := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, tokenstore.KeyRefreshToken, "orphan"))

	require.NoError(t, s.Bootstrap(ctx))

	api.AssertNotCalled(t, "Me", mock.Anything)
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, storedToken(t, store, tokenstore.KeyRefreshToken))
}

type failingStore struct{ *tokenstore.MemoryStore }

func (*failingStore) Get(context.Context, string) (string, error) {
	return "", errors.New("disk on fire")
}

func TestBootstrap_StoreFailure(t *testing.T) {
	s := New(&mockAuthAPI{}, &failingStore{MemoryStore: tokenstore.NewMemoryStore()}, event.NewBus(), logger.Discard())

	err := s.Bootstrap(context.Background())
	assert.ErrorContains(t, err, "disk on fire")
}

// --- Credentials ---

func TestStoreTokens_KeepsRefreshWhenNotRotated(t *testing.T) {
	s, api, store, _ := newTestSession(t)
	ctx := context.Background()
	api.On("Login", mock.Anything, mock.Anything).Return(authResponse(), nil)
	_, err := s.Login(ctx, "ada@example.com", "pw")
	require.NoError(t, err)

	require.NoError(t, s.StoreTokens(ctx, "access-2", ""))

	assert.Equal(t, "access-2", s.AccessToken())
	assert.Equal(t, "refresh-1", s.RefreshToken())
	assert.Equal(t, "access-2", storedToken(t, store, tokenstore.KeyAccessToken))
	assert.True(t, s.IsAuthenticated())
}

func TestExpire_ClearsEverything(t *testing.T) {
	s, api, store, rec := newTestSession(t)
	ctx := context.Background()
	api.On("Login", mock.Anything, mock.Anything).Return(authResponse(), nil)
	_, err := s.Login(ctx, "ada@example.com", "pw")
	require.NoError(t, err)

	s.Expire(ctx, errors.New("refresh revoked"))

	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, storedToken(t, store, tokenstore.KeyRefreshToken))
	events := rec.Events(event.SessionChanged)
	assert.Equal(t, ReasonExpired, events[len(events)-1].Data.(event.SessionPayload).Reason)
}

func TestUpdateUser_ReplacesSignedInUser(t *testing.T) {
	s, api, _, rec := newTestSession(t)
	ctx := context.Background()
	api.On("Login", mock.Anything, mock.Anything).Return(authResponse(), nil)
	_, err := s.Login(ctx, "ada@example.com", "pw")
	require.NoError(t, err)

	s.UpdateUser(ctx, domain.User{ID: "u1", Name: "Ada L.", Email: "ada@example.com"})
	assert.Equal(t, "Ada L.", s.User().Name)
	events := rec.Events(event.SessionChanged)
	assert.Equal(t, event.SessionPayload{UserID: "u1", Authenticated: true, Reason: ReasonProfile}, events[len(events)-1].Data)

	s.UpdateUser(ctx, domain.User{ID: "u2", Name: "Mallory"})
	assert.Equal(t, "Ada L.", s.User().Name)
	assert.Len(t, rec.Events(event.SessionChanged), len(events))
}

func TestUpdateUser_AnonymousIsIgnored(t *testing.T) {
	s, _, _, rec := newTestSession(t)
	s.UpdateUser(context.Background(), domain.User{ID: "u1"})
	assert.Nil(t, s.User())
	assertInvariant(t, s)
	assert.Empty(t, rec.Events(event.SessionChanged))
}

func TestExpiresAt(t *testing.T) {
	s, api, _, _ := newTestSession(t)
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("someone-elses-secret"))
	require.NoError(t, err)

	resp := authResponse()
	resp.AccessToken = token
	api.On("Login", mock.Anything, mock.Anything).Return(resp, nil)
	_, err = s.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)

	got, ok := s.ExpiresAt()
	require.True(t, ok)
	assert.True(t, exp.Equal(got))
}

func TestExpiresAt_OpaqueToken(t *testing.T) {
	s, api, _, _ := newTestSession(t)
	api.On("Login", mock.Anything, mock.Anything).Return(authResponse(), nil)
	_, err := s.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)

	_, ok := s.ExpiresAt()
	assert.False(t, ok)
}
