package mockapi

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/slug"
)

// account is a registered user plus the server-side secrets the wire type
// does not carry.
type account struct {
	user         domain.User
	passwordHash []byte
	otp          string
	otpExpires   time.Time
	// tokenGen invalidates every token issued before the last logout.
	tokenGen int
}

type cartLine struct {
	productID      string
	lineID         string
	quantity       int
	customizations map[string]string
	addedAt        time.Time
}

type userCart struct {
	lines     []*cartLine
	updatedAt time.Time
}

func (c *userCart) find(productID string) int {
	return slices.IndexFunc(c.lines, func(l *cartLine) bool { return l.productID == productID })
}

// payment is the provider-side session opened for an online order.
type payment struct {
	providerOrderID string
	paymentID       string
	orderID         string
	userID          string
	amount          float64
	currency        string
	method          domain.PaymentMethod
	status          domain.PaymentStatus
}

// storedResponse is a recorded order creation, replayed for a repeated
// Idempotency-Key.
type storedResponse struct {
	fingerprint string
	status      int
	body        domain.CreateOrderResponse
}

// state is the whole in-memory backend. Every field is guarded by Server.mu.
type state struct {
	accounts map[string]*account // by user ID
	byEmail  map[string]string   // lower-cased email -> user ID
	products []*domain.Product   // catalog order
	// categories in creation order; parents precede their children
	categories []*domain.Category
	reviews    map[string][]*domain.Review // product ID -> reviews, oldest first
	carts      map[string]*userCart
	wishlists  map[string][]string // user ID -> product IDs, insertion order
	addresses  map[string][]*domain.Address
	orders     map[string][]*domain.Order // user ID -> orders, oldest first
	payments   map[string]*payment        // by provider order ID
	idem       map[string]storedResponse  // user ID + key
	// spent refresh token IDs
	spent       map[string]bool
	orderSeq    int
	accessEpoch int
}

func newState() *state {
	return &state{
		accounts:  make(map[string]*account),
		byEmail:   make(map[string]string),
		reviews:   make(map[string][]*domain.Review),
		carts:     make(map[string]*userCart),
		wishlists: make(map[string][]string),
		addresses: make(map[string][]*domain.Address),
		orders:    make(map[string][]*domain.Order),
		payments:  make(map[string]*payment),
		idem:      make(map[string]storedResponse),
		spent:     make(map[string]bool),
		orderSeq:  100000,
	}
}

func (s *state) addAccount(u domain.User, passwordHash []byte) *account {
	u.ID = uuid.NewString()
	a := &account{user: u, passwordHash: passwordHash}
	s.accounts[u.ID] = a
	s.byEmail[strings.ToLower(u.Email)] = u.ID
	return a
}

func (s *state) accountByEmail(email string) *account {
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil
	}
	return s.accounts[id]
}

// product finds a catalog entry by ID or slug.
func (s *state) product(idOrSlug string) *domain.Product {
	for _, p := range s.products {
		if slug.Matches(idOrSlug, p.ID, p.Name) || (p.Slug != "" && p.Slug == idOrSlug) {
			return p
		}
	}
	return nil
}

// category finds a category by ID or slug.
func (s *state) category(idOrSlug string) *domain.Category {
	for _, c := range s.categories {
		if c.ID == idOrSlug || c.Slug == idOrSlug {
			return c
		}
	}
	return nil
}

// renderCategory copies c with its live product count. Parents count the
// products of their children too.
func (s *state) renderCategory(c *domain.Category, withChildren bool) domain.Category {
	out := *c
	out.Children = nil
	for _, p := range s.products {
		if p.Category != nil && p.Category.ID == c.ID {
			out.ProductCount++
		}
	}
	for _, child := range s.categories {
		if child.ParentCategory != c.ID {
			continue
		}
		rc := s.renderCategory(child, false)
		out.ProductCount += rc.ProductCount
		if withChildren {
			out.Children = append(out.Children, rc)
		}
	}
	return out
}

// hasOrdered reports whether the user has a non-cancelled order containing
// the product.
func (s *state) hasOrdered(userID, productID string) bool {
	for _, o := range s.orders[userID] {
		if o.Status == domain.OrderStatusCancelled {
			continue
		}
		for _, it := range o.Items {
			if it.Product.ID == productID {
				return true
			}
		}
	}
	return false
}

func (s *state) cart(userID string) *userCart {
	c, ok := s.carts[userID]
	if !ok {
		c = &userCart{updatedAt: time.Now().UTC()}
		s.carts[userID] = c
	}
	return c
}

// renderCart populates product references the way the real API does.
func (s *state) renderCart(userID string) domain.Cart {
	c := s.cart(userID)
	out := domain.Cart{ID: "cart-" + userID, Items: make([]domain.CartItem, 0, len(c.lines)), UpdatedAt: c.updatedAt}
	for _, l := range c.lines {
		item := domain.CartItem{ID: l.lineID, Quantity: l.quantity, Customizations: l.customizations, AddedAt: l.addedAt}
		if p := s.product(l.productID); p != nil {
			item.Product = *p
		} else {
			item.Product = domain.Product{ID: l.productID}
		}
		out.TotalPrice += item.LineTotal()
		out.Items = append(out.Items, item)
	}
	out.TotalPrice = round2(out.TotalPrice)
	return out
}

// Pricing rules of the fake backend.
const (
	freeShippingFrom = 500.0
	flatShipping     = 50.0
	taxRate          = 0.18
)

func (s *state) summary(userID string) domain.CartSummary {
	cart := s.renderCart(userID)
	sum := domain.CartSummary{TotalItems: cart.Count(), TotalPrice: cart.TotalPrice}
	if len(cart.Items) > 0 && cart.TotalPrice < freeShippingFrom {
		sum.EstimatedShipping = flatShipping
	}
	sum.Tax = round2(cart.TotalPrice * taxRate)
	sum.FinalTotal = round2(sum.TotalPrice + sum.EstimatedShipping + sum.Tax)
	return sum
}

func (s *state) address(userID, id string) *domain.Address {
	for _, a := range s.addresses[userID] {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (s *state) order(userID, id string) *domain.Order {
	for _, o := range s.orders[userID] {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// orderAnyUser finds an order regardless of owner.
func (s *state) orderAnyUser(id string) (*domain.Order, string) {
	for uid, orders := range s.orders {
		for _, o := range orders {
			if o.ID == id {
				return o, uid
			}
		}
	}
	return nil, ""
}

func (s *state) paymentForOrder(orderID string) *payment {
	for _, p := range s.payments {
		if p.orderID == orderID {
			return p
		}
	}
	return nil
}

// availableMethods is the set of payment methods offered for a postal code.
// Cash on delivery is not offered to remote areas (postal codes starting
// with 9).
func availableMethods(postalCode string) []domain.PaymentMethod {
	out := make([]domain.PaymentMethod, 0, len(domain.PaymentMethods))
	for _, m := range domain.PaymentMethods {
		if m == domain.PaymentCashOnDelivery && strings.HasPrefix(postalCode, "9") {
			continue
		}
		out = append(out, m)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
