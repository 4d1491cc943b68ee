// Package store is the state container of the storefront client. It owns the
// session, the cart and wishlist mirrors and the order service, and exposes
// every mutation as a named operation.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/order"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/internal/wishlist"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/validator"
)

// CatalogAPI is the product catalog.
type CatalogAPI interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) (*domain.ProductPage, error)
	GetProduct(ctx context.Context, idOrSlug string) (*domain.Product, error)
	SearchProducts(ctx context.Context, query string, limit int) ([]domain.Product, error)
	ListCategories(ctx context.Context, filter domain.CategoryFilter) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
}

// ReviewAPI reads and writes product reviews.
type ReviewAPI interface {
	ProductReviews(ctx context.Context, productID string, page pagination.Params) (*domain.ReviewPage, error)
	CreateReview(ctx context.Context, in domain.ReviewInput) (*domain.Review, error)
}

// ProfileAPI manages the signed-in account.
type ProfileAPI interface {
	GetProfile(ctx context.Context) (*domain.User, error)
	UpdateProfile(ctx context.Context, in domain.ProfileUpdate) (*domain.User, error)
	ChangePassword(ctx context.Context, in domain.PasswordChange) error
}

// AddressAPI manages the buyer's saved addresses.
type AddressAPI interface {
	ListAddresses(ctx context.Context) ([]domain.Address, error)
	AddAddress(ctx context.Context, in domain.AddressInput) (*domain.Address, error)
	UpdateAddress(ctx context.Context, id string, in domain.AddressInput) (*domain.Address, error)
	DeleteAddress(ctx context.Context, id string) error
	SetDefaultAddress(ctx context.Context, id string) (*domain.Address, error)
}

// Deps are the components the store composes.
type Deps struct {
	Session   *session.Session
	Cart      *cart.Engine
	Wishlist  *wishlist.Engine
	Orders    *order.Service
	Catalog   CatalogAPI
	Addresses AddressAPI
	Reviews   ReviewAPI
	Profile   ProfileAPI
	Bus       *event.Bus
	Logger    *slog.Logger
}

// Snapshot is a copy of the renderable state.
type Snapshot struct {
	User            *domain.User        `json:"user,omitempty"`
	IsAuthenticated bool                `json:"isAuthenticated"`
	Cart            domain.Cart         `json:"cart"`
	Summary         *domain.CartSummary `json:"summary,omitempty"`
	CartCount       int                 `json:"cartCount"`
	WishlistIDs     []string            `json:"wishlistIds"`
	WishlistCount   int                 `json:"wishlistCount"`
	LastOrder       *order.Attempt      `json:"lastOrder,omitempty"`
}

// Store is the single owner of client state.
type Store struct {
	session   *session.Session
	cart      *cart.Engine
	wishlist  *wishlist.Engine
	orders    *order.Service
	catalog   CatalogAPI
	addresses AddressAPI
	reviews   ReviewAPI
	profile   ProfileAPI
	bus       *event.Bus
	logger    *slog.Logger

	unsubscribe func()
	mu          sync.Mutex
	loadErr     error
}

// New wires the store and subscribes it to session changes: signing in loads
// the cart and wishlist, signing out or expiry discards them.
func New(d Deps) *Store {
	s := &Store{
		session:   d.Session,
		cart:      d.Cart,
		wishlist:  d.Wishlist,
		orders:    d.Orders,
		catalog:   d.Catalog,
		addresses: d.Addresses,
		reviews:   d.Reviews,
		profile:   d.Profile,
		bus:       d.Bus,
		logger:    d.Logger,
	}
	s.unsubscribe = d.Bus.Subscribe(s.onEvent)
	return s
}

// Close detaches the store from the bus.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Subscribe registers a handler for store events.
func (s *Store) Subscribe(h event.Handler) func() {
	return s.bus.Subscribe(h)
}

func (s *Store) onEvent(ctx context.Context, ev event.Event) {
	if ev.Type != event.SessionChanged {
		return
	}
	p, ok := ev.Data.(event.SessionPayload)
	if !ok {
		return
	}
	if !p.Authenticated {
		s.cart.Discard(ctx)
		s.wishlist.Discard(ctx)
		return
	}
	if p.Reason == session.ReasonProfile {
		return
	}
	err := s.load(ctx)
	s.mu.Lock()
	s.loadErr = err
	s.mu.Unlock()
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load cart and wishlist",
			slog.String("reason", p.Reason),
			slog.String("error", err.Error()),
		)
	}
}

// load fetches the cart, its summary and the wishlist concurrently.
func (s *Store) load(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.cart.Refresh(gctx) })
	g.Go(func() error { return s.wishlist.Refresh(gctx) })
	return g.Wait()
}

// LoadError returns the error of the last sign-in load, if it failed.
func (s *Store) LoadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		User:          s.session.User(),
		Cart:          s.cart.Cart(),
		CartCount:     s.cart.CartCount(),
		WishlistIDs:   s.wishlist.IDs(),
		WishlistCount: s.wishlist.Count(),
	}
	snap.IsAuthenticated = snap.User != nil
	if sum, ok := s.cart.Summary(); ok {
		snap.Summary = &sum
	}
	if att, ok := s.orders.LastAttempt(); ok {
		snap.LastOrder = &att
	}
	return snap
}

// --- Session ---

// Bootstrap restores a persisted session. It must finish before the state is
// rendered.
func (s *Store) Bootstrap(ctx context.Context) error {
	return s.session.Bootstrap(ctx)
}

// Login signs in.
func (s *Store) Login(ctx context.Context, email, password string) (*domain.User, error) {
	return s.session.Login(ctx, email, password)
}

// Register creates an account. It does not sign in.
func (s *Store) Register(ctx context.Context, reg domain.Registration) error {
	return s.session.Register(ctx, reg)
}

// VerifyEmail confirms the account and signs in.
func (s *Store) VerifyEmail(ctx context.Context, email, code string) (*domain.User, error) {
	return s.session.VerifyEmail(ctx, email, code)
}

// ResendOTP asks for a new verification code.
func (s *Store) ResendOTP(ctx context.Context, email string) error {
	return s.session.ResendOTP(ctx, email)
}

// Logout signs out. It always succeeds locally.
func (s *Store) Logout(ctx context.Context) {
	s.session.Logout(ctx)
}

// User returns the signed-in user, or nil.
func (s *Store) User() *domain.User {
	return s.session.User()
}

// IsAuthenticated reports whether a user is signed in.
func (s *Store) IsAuthenticated() bool {
	return s.session.IsAuthenticated()
}

// --- Catalog ---

// ListProducts returns one page of the catalog.
func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) (*domain.ProductPage, error) {
	return s.catalog.ListProducts(ctx, filter)
}

// GetProduct returns a product by ID or slug.
func (s *Store) GetProduct(ctx context.Context, idOrSlug string) (*domain.Product, error) {
	return s.catalog.GetProduct(ctx, idOrSlug)
}

// SearchProducts runs a catalog text search.
func (s *Store) SearchProducts(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	return s.catalog.SearchProducts(ctx, query, limit)
}

// ListCategories returns the catalog categories.
func (s *Store) ListCategories(ctx context.Context, filter domain.CategoryFilter) ([]domain.Category, error) {
	return s.catalog.ListCategories(ctx, filter)
}

// GetCategory fetches a category by ID or slug.
func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	return s.catalog.GetCategory(ctx, id)
}

// --- Cart ---

// Cart returns the local cart.
func (s *Store) Cart() domain.Cart { return s.cart.Cart() }

// CartCount is the number of units in the cart.
func (s *Store) CartCount() int { return s.cart.CartCount() }

// CartLineState returns the sync state of a cart line.
func (s *Store) CartLineState(productID string) cart.LineState { return s.cart.LineState(productID) }

// AddToCart adds a product and reloads the cart.
func (s *Store) AddToCart(ctx context.Context, productID string, qty int, customizations map[string]string) error {
	return s.cart.Add(ctx, productID, qty, customizations)
}

// SetQuantity edits a cart line optimistically.
func (s *Store) SetQuantity(ctx context.Context, productID string, qty int) error {
	return s.cart.SetQuantity(ctx, productID, qty)
}

// RemoveFromCart deletes a cart line.
func (s *Store) RemoveFromCart(ctx context.Context, productID string) error {
	return s.cart.Remove(ctx, productID)
}

// ClearCart empties the cart.
func (s *Store) ClearCart(ctx context.Context) error {
	return s.cart.Clear(ctx)
}

// RefreshCart reloads the cart and summary.
func (s *Store) RefreshCart(ctx context.Context) error {
	return s.cart.Refresh(ctx)
}

// Settle waits for pending cart edits to reach the server.
func (s *Store) Settle(ctx context.Context) error {
	return s.cart.Settle(ctx)
}

// --- Wishlist ---

// ToggleWishlist flips a product's wishlist membership.
func (s *Store) ToggleWishlist(ctx context.Context, productID string) (bool, error) {
	return s.wishlist.Toggle(ctx, productID)
}

// InWishlist reports wishlist membership.
func (s *Store) InWishlist(productID string) bool { return s.wishlist.Contains(productID) }

// Wishlist returns the wishlisted products.
func (s *Store) Wishlist() []domain.Product { return s.wishlist.Products() }

// RefreshWishlist reloads the wishlist.
func (s *Store) RefreshWishlist(ctx context.Context) error { return s.wishlist.Refresh(ctx) }

// --- Addresses ---

// ListAddresses returns the saved addresses.
func (s *Store) ListAddresses(ctx context.Context) ([]domain.Address, error) {
	return s.addresses.ListAddresses(ctx)
}

// AddAddress saves a new address.
func (s *Store) AddAddress(ctx context.Context, in domain.AddressInput) (*domain.Address, error) {
	if err := validator.Validate(in); err != nil {
		return nil, validator.ToAppError(err)
	}
	return s.addresses.AddAddress(ctx, in)
}

// UpdateAddress replaces an address.
func (s *Store) UpdateAddress(ctx context.Context, id string, in domain.AddressInput) (*domain.Address, error) {
	if err := validator.Validate(in); err != nil {
		return nil, validator.ToAppError(err)
	}
	return s.addresses.UpdateAddress(ctx, id, in)
}

// DeleteAddress removes an address.
func (s *Store) DeleteAddress(ctx context.Context, id string) error {
	return s.addresses.DeleteAddress(ctx, id)
}

// SetDefaultAddress marks an address as the default.
func (s *Store) SetDefaultAddress(ctx context.Context, id string) (*domain.Address, error) {
	return s.addresses.SetDefaultAddress(ctx, id)
}

// --- Account ---

// Profile fetches the signed-in user's profile.
func (s *Store) Profile(ctx context.Context) (*domain.User, error) {
	if !s.session.IsAuthenticated() {
		return nil, apperrors.NotAuthenticated("sign in to view your profile")
	}
	return s.profile.GetProfile(ctx)
}

// UpdateProfile saves the editable profile fields and replaces the session
// user with the server's copy.
func (s *Store) UpdateProfile(ctx context.Context, in domain.ProfileUpdate) (*domain.User, error) {
	if !s.session.IsAuthenticated() {
		return nil, apperrors.NotAuthenticated("sign in to edit your profile")
	}
	if err := validator.Validate(in); err != nil {
		return nil, validator.ToAppError(err)
	}
	u, err := s.profile.UpdateProfile(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.session.UpdateUser(ctx, *u)
	return u, nil
}

// ChangePassword replaces the account password.
func (s *Store) ChangePassword(ctx context.Context, in domain.PasswordChange) error {
	if !s.session.IsAuthenticated() {
		return apperrors.NotAuthenticated("sign in to change your password")
	}
	if err := validator.Validate(in); err != nil {
		return validator.ToAppError(err)
	}
	if err := s.profile.ChangePassword(ctx, in); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

// --- Reviews ---

// ProductReviews returns one page of a product's reviews. The server only
// serves reviews to signed-in users.
func (s *Store) ProductReviews(ctx context.Context, productID string, page pagination.Params) (*domain.ReviewPage, error) {
	if !s.session.IsAuthenticated() {
		return nil, apperrors.NotAuthenticated("sign in to read reviews")
	}
	return s.reviews.ProductReviews(ctx, productID, page)
}

// AddReview rates a product once.
func (s *Store) AddReview(ctx context.Context, in domain.ReviewInput) (*domain.Review, error) {
	if !s.session.IsAuthenticated() {
		return nil, apperrors.NotAuthenticated("sign in to write a review")
	}
	if err := validator.Validate(in); err != nil {
		return nil, validator.ToAppError(err)
	}
	rv, err := s.reviews.CreateReview(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("add review: %w", err)
	}
	s.logger.InfoContext(ctx, "review added",
		slog.String("product_id", rv.Product),
		slog.Int("rating", rv.Rating),
	)
	return rv, nil
}

// --- Checkout and orders ---

// StartCheckout begins a checkout over the saved addresses. The cart must
// not be empty.
func (s *Store) StartCheckout(ctx context.Context) (*order.Checkout, error) {
	if !s.session.IsAuthenticated() {
		return nil, apperrors.NotAuthenticated("sign in to check out")
	}
	if err := s.cart.Settle(ctx); err != nil {
		return nil, fmt.Errorf("start checkout: %w", err)
	}
	if len(s.cart.Cart().Items) == 0 {
		return nil, apperrors.Validation("your cart is empty", nil)
	}
	addrs, err := s.addresses.ListAddresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("start checkout: %w", err)
	}
	return order.NewCheckout(addrs), nil
}

// LoadPaymentMethods fetches the methods offered for the checkout's address
// and records them on it.
func (s *Store) LoadPaymentMethods(ctx context.Context, c *order.Checkout) ([]domain.PaymentMethod, error) {
	addr, ok := c.Address()
	if !ok {
		return nil, apperrors.Validation("choose a delivery address first", nil)
	}
	methods, err := s.orders.AvailablePaymentMethods(ctx, addr.PostalCode)
	if err != nil {
		return nil, err
	}
	c.SetAvailableMethods(methods)
	return methods, nil
}

// PlaceOrder places the order reviewed in c.
func (s *Store) PlaceOrder(ctx context.Context, c *order.Checkout) (*order.Attempt, error) {
	req, err := c.Request()
	if err != nil {
		return nil, err
	}
	return s.orders.PlaceOrder(ctx, req)
}

// ListOrders returns one page of orders.
func (s *Store) ListOrders(ctx context.Context, filter domain.OrderFilter) (*domain.OrderPage, error) {
	return s.orders.ListOrders(ctx, filter)
}

// GetOrder returns one order.
func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.orders.GetOrder(ctx, id)
}

// CancelOrder cancels an order.
func (s *Store) CancelOrder(ctx context.Context, id, reason string) (*domain.Order, error) {
	return s.orders.CancelOrder(ctx, id, reason)
}

// PaymentStatus returns the state of a payment.
func (s *Store) PaymentStatus(ctx context.Context, paymentID string) (*domain.PaymentStatusInfo, error) {
	return s.orders.PaymentStatus(ctx, paymentID)
}
