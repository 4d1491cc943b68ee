package store

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/api"
	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/mockapi"
	"github.com/utafrali/storefront/internal/order"
	"github.com/utafrali/storefront/internal/order/sandbox"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/internal/tokenstore"
	"github.com/utafrali/storefront/internal/wishlist"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/pagination"
)

const paymentSecret = "store-test-secret"

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type harness struct {
	api    *mockapi.Server
	url    string
	tokens *tokenstore.MemoryStore
	events *event.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv, err := mockapi.New(mockapi.Options{
		BasePath:      "/api/v1",
		JWTSecret:     "store-test-jwt",
		PaymentSecret: paymentSecret,
		Seed:          true,
	}, logger.Discard())
	require.NoError(t, err)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return &harness{api: srv, url: hs.URL + "/api/v1", tokens: tokenstore.NewMemoryStore(), events: &event.Recorder{}}
}

// open builds a store the way the application does, over the harness's API
// and credential store.
func (h *harness) open(t *testing.T, outcome sandbox.Outcome) *Store {
	t.Helper()
	log := logger.Discard()
	bus := event.NewBus()
	bus.Subscribe(h.events.Handle)

	cfg := httpclient.DefaultConfig()
	cfg.RateLimit = 0
	doer := httpclient.NewCircuitBreakerClient(httpclient.New(cfg), httpclient.DefaultCircuitBreakerConfig("store-test"), log)
	client := api.New(h.url, doer, log)

	sess := session.New(client, h.tokens, bus, log)
	client.SetCredentials(sess)

	cartEngine := cart.New(client, cart.Config{Debounce: 20 * time.Millisecond, Authenticated: sess.IsAuthenticated}, bus, log)
	wl := wishlist.New(client, sess.IsAuthenticated, bus, log)
	provider, err := sandbox.New(paymentSecret, outcome, log)
	require.NoError(t, err)
	orders := order.NewService(client, provider, cartEngine, order.Config{Currency: "INR", Buyer: sess.User}, bus, log)

	s := New(Deps{
		Session:   sess,
		Cart:      cartEngine,
		Wishlist:  wl,
		Orders:    orders,
		Catalog:   client,
		Addresses: client,
		Reviews:   client,
		Profile:   client,
		Bus:       bus,
		Logger:    log,
	})
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(context.Background()))
	return s
}

func loginDemo(t *testing.T, s *Store) {
	t.Helper()
	_, err := s.Login(context.Background(), mockapi.DemoEmail, mockapi.DemoPassword)
	require.NoError(t, err)
}

func settle(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Settle(ctx))
}

// checkoutWith drives a checkout to review with the default address and m.
func checkoutWith(t *testing.T, s *Store, m domain.PaymentMethod) *order.Checkout {
	t.Helper()
	ctx := context.Background()
	c, err := s.StartCheckout(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Next())
	_, err = s.LoadPaymentMethods(ctx, c)
	require.NoError(t, err)
	require.NoError(t, c.SelectPaymentMethod(m))
	require.NoError(t, c.Next())
	return c
}

// ---------------------------------------------------------------------------
// session lifecycle
// ---------------------------------------------------------------------------

func TestLoginLoadsCartAndWishlist(t *testing.T) {
	h := newHarness(t)
	s := h.open(t, sandbox.Approve)
	ctx := context.Background()

	loginDemo(t, s)
	require.NoError(t, s.AddToCart(ctx, "prod-001", 2, nil))
	added, err := s.ToggleWishlist(ctx, "prod-003")
	require.NoError(t, err)
	assert.True(t, added)

	s.Logout(ctx)
	snap := s.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Empty(t, snap.Cart.Items)
	assert.Zero(t, snap.WishlistCount)

	loginDemo(t, s)
	require.NoError(t, s.LoadError())
	snap = s.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, 2, snap.CartCount)
	require.NotNil(t, snap.Summary)
	assert.Equal(t, []string{"prod-003"}, snap.WishlistIDs)
}

func TestBootstrapRestoresPersistedSession(t *testing.T) {
	h := newHarness(t)
	first := h.open(t, sandbox.Approve)
	loginDemo(t, first)
	require.NoError(t, first.AddToCart(context.Background(), "prod-002", 1, nil))

	second := h.open(t, sandbox.Approve)
	assert.True(t, second.IsAuthenticated())
	assert.Equal(t, mockapi.DemoEmail, second.User().Email)
	assert.Equal(t, 1, second.CartCount())
}

func TestBootstrapDropsRevokedSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.open(t, sandbox.Approve)
	loginDemo(t, first)
	access, err := h.tokens.Get(ctx, tokenstore.KeyAccessToken)
	require.NoError(t, err)
	refresh, err := h.tokens.Get(ctx, tokenstore.KeyRefreshToken)
	require.NoError(t, err)

	// Server-side logout revokes both tokens; put the stale pair back.
	first.Logout(ctx)
	require.NoError(t, h.tokens.Set(ctx, tokenstore.KeyAccessToken, access))
	require.NoError(t, h.tokens.Set(ctx, tokenstore.KeyRefreshToken, refresh))

	second := h.open(t, sandbox.Approve)
	assert.False(t, second.IsAuthenticated())
	_, err = h.tokens.Get(ctx, tokenstore.KeyAccessToken)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestExpiredAccessTokenRefreshesTransparently(t *testing.T) {
	h := newHarness(t)
	s := h.open(t, sandbox.Approve)
	loginDemo(t, s)

	h.api.ExpireAccessTokens()
	require.NoError(t, s.RefreshCart(context.Background()))
	assert.True(t, s.IsAuthenticated())
}

func TestSessionExpiryDiscardsState(t *testing.T) {
	h := newHarness(t)
	s := h.open(t, sandbox.Approve)
	ctx := context.Background()
	loginDemo(t, s)
	require.NoError(t, s.AddToCart(ctx, "prod-001", 1, nil))

	s.session.Expire(ctx, apperrors.NotAuthenticated("refresh rejected"))

	snap := s.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Empty(t, snap.Cart.Items)

	err := s.AddToCart(ctx, "prod-001", 1, nil)
	assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
}

// ---------------------------------------------------------------------------
// cart
// ---------------------------------------------------------------------------

func TestSetQuantityCoalescesEdits(t *testing.T) {
	h := newHarness(t)
	s := h.open(t, sandbox.Approve)
	ctx := context.Background()
	loginDemo(t, s)
	require.NoError(t, s.AddToCart(ctx, "prod-005", 1, nil))

	for q := 2; q <= 5; q++ {
		require.NoError(t, s.SetQuantity(ctx, "prod-005", q))
	}
	assert.Equal(t, 5, s.CartCount(), "optimistic quantity shows immediately")
	settle(t, s)

	require.NoError(t, s.RefreshCart(ctx))
	assert.Equal(t, 5, s.CartCount())
	assert.Empty(t, h.events.Events(event.CartSyncFailed))
}

func TestSetQuantityRollsBackWhenRejected(t *testing.T) {
	h := newHarness(t)
	s := h.open(t, sandbox.Approve)
	ctx := context.Background()
	loginDemo(t, s)
	require.NoError(t, s.AddToCart(ctx, "prod-010", 1, nil))

	require.NoError(t, s.SetQuantity(ctx, "prod-010", 9))
	settle(t, s)

	assert.Equal(t, 1, s.CartCount())
	failed := h.events.Events(event.CartSyncFailed)
	require.Len(t, failed, 1)
	p := failed[0].Data.(event.CartSyncFailedPayload)
	assert.Equal(t, 9, p.Rejected)
	assert.Equal(t, 1, p.Restored)
	assert.ErrorIs(t, p.Err, apperrors.ErrValidation)
}

func TestRemoveAndClearCart(t *testing.T) {
	h := newHarness(t)
	s := h.open(t, sandbox.Approve)
	ctx := context.Background()
	loginDemo(t, s)
	require.NoError(t, s.AddToCart(ctx, "prod-001", 1, nil))
	require.NoError(t, s.AddToCart(ctx, "prod-002", 1, nil))

	require.NoError(t, s.RemoveFromCart(ctx, "prod-001"))
	require.Len(t, s.Cart().Items, 1)
	assert.Equal(t, "prod-002", s.Cart().Items[0].ProductID())

	require.NoError(t, s.ClearCart(ctx))
	assert.Zero(t, s.CartCount())
}

// ---------------------------------------------------------------------------
// wishlist
// ---------------------------------------------------------------------------

func TestToggleWishlistTwiceRemoves(t *testing.T) {
	h := newHarness(t)
	s := h.open(t, sandbox.Approve)
	ctx := context.Background()
	loginDemo(t, s)

	in, err := s.ToggleWishlist(ctx, "prod-004")
	require.NoError(t, err)
	assert.True(t, in)
	in, err = s.ToggleWishlist(ctx, "prod-004")
	require.NoError(t, err)
	assert.False(t, in)

	require.NoError(t, s.RefreshWishlist(ctx))
	assert.False(t, s.InWishlist("prod-004"))
	assert.Empty(t, s.Wishlist())
}

// ---------------------------------------------------------------------------
// checkout
// ---------------------------------------------------------------------------

func TestStartCheckoutPreconditions(t *testing.T) {
	h := newHarness(t)
	s := h.open(t, sandbox.Approve)
	ctx := context.Background()

	_, err := s.StartCheckout(ctx)
	assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)

	loginDemo(t, s)
	_, err = s.StartCheckout(ctx)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestPlaceOrder_CashOnDelivery(t *testing.T) {
	h := newHarness(t)
	s := h.open(t, sandbox.Approve)
	ctx := context.Background()
	loginDemo(t, s)
	require.NoError(t, s.AddToCart(ctx, "prod-002", 1, nil))

	c := checkoutWith(t, s, domain.PaymentCashOnDelivery)
	att, err := s.PlaceOrder(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, order.StateConfirmed, att.State)
	require.NotNil(t, att.Order)
	assert.Zero(t, s.CartCount(), "cart reloads empty after the order")

	snap := s.Snapshot()
	require.NotNil(t, snap.LastOrder)
	assert.Equal(t, att.Order.ID, snap.LastOrder.Order.ID)
}

func TestPlaceOrder_OnlinePaymentApproved(t *testing.T) {
	h := newHarness(t)
	s := h.open(t, sandbox.Approve)
	ctx := context.Background()
	loginDemo(t, s)
	require.NoError(t, s.AddToCart(ctx, "prod-001", 1, nil))

	att, err := s.PlaceOrder(ctx, checkoutWith(t, s, domain.PaymentUPI))
	require.NoError(t, err)
	assert.Equal(t, order.StateConfirmed, att.State)

	o, err := s.GetOrder(ctx, att.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, o.Status)
	assert.Equal(t, domain.PaymentStatusCompleted, o.PaymentInfo.Status)
}

func TestPlaceOrder_PaymentFailures(t *testing.T) {
	cases := []struct {
		outcome sandbox.Outcome
		reason  string
	}{
		{sandbox.Decline, apperrors.ReasonDeclined},
		{sandbox.Cancel, apperrors.ReasonUserCancel},
		{sandbox.LoadFail, apperrors.ReasonProviderLoad},
		{sandbox.Tamper, apperrors.ReasonVerifyFail},
	}
	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			h := newHarness(t)
			s := h.open(t, tc.outcome)
			ctx := context.Background()
			loginDemo(t, s)
			require.NoError(t, s.AddToCart(ctx, "prod-001", 1, nil))

			att, err := s.PlaceOrder(ctx, checkoutWith(t, s, domain.PaymentCreditCard))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)
			assert.Equal(t, tc.reason, apperrors.PaymentReason(err))
			require.NotNil(t, att)
			assert.Equal(t, order.StateFailed, att.State)
			require.NotNil(t, att.Order, "the order exists even though payment failed")
		})
	}
}

func TestCancelOrder(t *testing.T) {
	h := newHarness(t)
	s := h.open(t, sandbox.Approve)
	ctx := context.Background()
	loginDemo(t, s)
	require.NoError(t, s.AddToCart(ctx, "prod-001", 1, nil))
	att, err := s.PlaceOrder(ctx, checkoutWith(t, s, domain.PaymentCashOnDelivery))
	require.NoError(t, err)

	o, err := s.CancelOrder(ctx, att.Order.ID, "ordered by mistake")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, o.Status)

	_, err = s.CancelOrder(ctx, att.Order.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	page, err := s.ListOrders(ctx, domain.OrderFilter{Status: domain.OrderStatusCancelled})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 1)
}

func TestAddAddressValidatesLocally(t *testing.T) {
	h := newHarness(t)
	s := h.open(t, sandbox.Approve)
	loginDemo(t, s)

	_, err := s.AddAddress(context.Background(), domain.AddressInput{Label: "Incomplete"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

// ---------------------------------------------------------------------------
// account, reviews and categories
// ---------------------------------------------------------------------------

func TestUpdateProfileReplacesSessionUser(t *testing.T) {
	h := newHarness(t)
	s := h.open(t, sandbox.Approve)
	ctx := context.Background()
	loginDemo(t, s)
	require.NoError(t, s.AddToCart(ctx, "prod-001", 1, nil))
	settle(t, s)

	u, err := s.UpdateProfile(ctx, domain.ProfileUpdate{Name: "Demo Buyer", Phone: "9123456780"})
	require.NoError(t, err)
	assert.Equal(t, "Demo Buyer", u.Name)

	snap := s.Snapshot()
	require.NotNil(t, snap.User)
	assert.Equal(t, "Demo Buyer", snap.User.Name)
	assert.Equal(t, 1, snap.CartCount, "a profile change keeps the cart")

	events := h.events.Events(event.SessionChanged)
	assert.Equal(t, session.ReasonProfile, events[len(events)-1].Data.(event.SessionPayload).Reason)

	p, err := s.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "9123456780", p.Phone)
}

func TestAccountOperationsValidateLocally(t *testing.T) {
	h := newHarness(t)
	s := h.open(t, sandbox.Approve)
	ctx := context.Background()

	_, err := s.Profile(ctx)
	assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)

	loginDemo(t, s)
	_, err = s.UpdateProfile(ctx, domain.ProfileUpdate{Name: "D", Phone: "98765"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	err = s.ChangePassword(ctx, domain.PasswordChange{CurrentPassword: mockapi.DemoPassword, NewPassword: "weak"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	err = s.ChangePassword(ctx, domain.PasswordChange{CurrentPassword: mockapi.DemoPassword, NewPassword: mockapi.DemoPassword})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	require.NoError(t, s.ChangePassword(ctx, domain.PasswordChange{CurrentPassword: mockapi.DemoPassword, NewPassword: "Fresh@5678"}))
	s.Logout(ctx)
	_, err = s.Login(ctx, mockapi.DemoEmail, "Fresh@5678")
	require.NoError(t, err)
}

func TestAddReview(t *testing.T) {
	h := newHarness(t)
	s := h.open(t, sandbox.Approve)
	ctx := context.Background()

	_, err := s.AddReview(ctx, domain.ReviewInput{ProductID: "prod-001", Rating: 5})
	assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)

	loginDemo(t, s)
	_, err = s.AddReview(ctx, domain.ReviewInput{ProductID: "prod-001", Rating: 0})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	rv, err := s.AddReview(ctx, domain.ReviewInput{ProductID: "prod-001", Rating: 4, Comment: "Solid mug."})
	require.NoError(t, err)
	assert.Equal(t, 4, rv.Rating)

	page, err := s.ProductReviews(ctx, "prod-001", pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Reviews, 1)
	assert.Equal(t, "Solid mug.", page.Reviews[0].Comment)

	_, err = s.AddReview(ctx, domain.ReviewInput{ProductID: "prod-001", Rating: 2})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestListCategories(t *testing.T) {
	h := newHarness(t)
	s := h.open(t, sandbox.Approve)
	ctx := context.Background()

	cats, err := s.ListCategories(ctx, domain.CategoryFilter{ParentOnly: true, IncludeEmpty: true})
	require.NoError(t, err)
	require.Len(t, cats, 4)
	assert.Equal(t, "Garden", cats[3].Name)

	c, err := s.GetCategory(ctx, "kitchen")
	require.NoError(t, err)
	assert.Equal(t, 4, c.ProductCount)
}
