// Package wishlist mirrors the server-side wishlist with optimistic toggles.
package wishlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/utafrali/storefront/internal/api"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/metrics"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/tracing"
)

// maxPages bounds Refresh against a server that never reports the last page.
const maxPages = 50

// API is the subset of the API adapter the engine calls.
type API interface {
	GetWishlist(ctx context.Context, params pagination.Params) (*domain.WishlistPage, error)
	AddToWishlist(ctx context.Context, productID string) error
	RemoveFromWishlist(ctx context.Context, productID string) error
}

// toggles tracks the calls issued for one product. Calls run in click order:
// each waits for the previous one's done channel.
type toggles struct {
	seq     uint64
	pending int
	tail    chan struct{}
}

// Engine holds the wishlist membership set.
type Engine struct {
	api    API
	authed func() bool
	bus    *event.Bus
	logger *slog.Logger

	mu       sync.Mutex
	members  map[string]bool
	products map[string]domain.Product
	toggles  map[string]*toggles
	gen      uint64
}

// New creates an empty engine. authenticated may be nil.
func New(a API, authenticated func() bool, bus *event.Bus, logger *slog.Logger) *Engine {
	if authenticated == nil {
		authenticated = func() bool { return true }
	}
	return &Engine{
		api:      a,
		authed:   authenticated,
		bus:      bus,
		logger:   logger,
		members:  make(map[string]bool),
		products: make(map[string]domain.Product),
		toggles:  make(map[string]*toggles),
	}
}

// Contains reports the optimistic membership of a product.
func (e *Engine) Contains(productID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.members[productID]
}

// IDs returns the wishlisted product IDs in sorted order.
func (e *Engine) IDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.members))
	for id := range e.members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Count is the number of wishlisted products.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.members)
}

// Products returns the known product details of wishlisted products, in ID
// order. Products added since the last Refresh carry only their ID.
func (e *Engine) Products() []domain.Product {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Product, 0, len(e.members))
	for id := range e.members {
		p, ok := e.products[id]
		if !ok {
			p = domain.Product{ID: id}
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Toggle flips the membership of a product and returns the new membership.
// The decision is taken from the optimistic set at the time of the call.
// Calls for the same product reach the server in call order. On failure the
// product goes back to its previous membership unless a later toggle has
// superseded this one.
func (e *Engine) Toggle(ctx context.Context, productID string) (bool, error) {
	if !e.authed() {
		appErr := apperrors.NotAuthenticated("sign in to use your wishlist")
		appErr.ReturnPath = api.ReturnPath(ctx)
		return false, appErr
	}
	if productID == "" {
		return false, apperrors.Validation("product id is required", map[string]string{"productId": "is required"})
	}

	e.mu.Lock()
	want := !e.members[productID]
	e.setMember(productID, want)
	t, ok := e.toggles[productID]
	if !ok {
		t = &toggles{}
		e.toggles[productID] = t
	}
	t.seq++
	t.pending++
	seq, gen := t.seq, e.gen
	prev := t.tail
	mine := make(chan struct{})
	t.tail = mine
	e.mu.Unlock()

	e.publishChanged(ctx)

	if prev != nil {
		<-prev
	}
	err := e.call(ctx, productID, want)
	close(mine)

	e.mu.Lock()
	t.pending--
	if t.pending == 0 && e.toggles[productID] == t {
		delete(e.toggles, productID)
	}
	if err == nil {
		e.mu.Unlock()
		return want, nil
	}
	reverted := false
	if t.seq == seq && gen == e.gen {
		e.setMember(productID, !want)
		reverted = true
		metrics.WishlistRollbacks.Inc()
	}
	e.mu.Unlock()

	e.logger.WarnContext(ctx, "wishlist toggle failed",
		slog.String("product_id", productID),
		slog.Bool("wanted", want),
		slog.Bool("reverted", reverted),
		slog.String("error", err.Error()),
	)
	e.bus.Publish(ctx, event.WishlistToggleFailed, productID, event.WishlistToggleFailedPayload{
		ProductID: productID,
		Wanted:    want,
		Error:     err.Error(),
		Err:       err,
	})
	if reverted {
		e.publishChanged(ctx)
	}
	return !want, fmt.Errorf("toggle wishlist: %w", err)
}

// call issues the add or remove. An add of a present product and a remove of
// an absent one already match the wanted state.
func (e *Engine) call(ctx context.Context, productID string, want bool) error {
	ctx, span := tracing.Tracer("storefront/wishlist").Start(ctx, "wishlist.toggle")
	defer span.End()

	if want {
		err := e.api.AddToWishlist(ctx, productID)
		if errors.Is(err, apperrors.ErrConflict) {
			return nil
		}
		return err
	}
	err := e.api.RemoveFromWishlist(ctx, productID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	return err
}

// Refresh loads every page of the wishlist. Products with toggles still in
// flight keep their optimistic membership.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	gen := e.gen
	e.mu.Unlock()

	var all []domain.Product
	for page := 1; page <= maxPages; page++ {
		resp, err := e.api.GetWishlist(ctx, pagination.Params{Page: page, Limit: pagination.MaxLimit})
		if err != nil {
			return fmt.Errorf("refresh wishlist: %w", err)
		}
		all = append(all, resp.Products...)
		if !resp.Pagination.HasNext || len(resp.Products) == 0 {
			break
		}
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return nil
	}
	members := make(map[string]bool, len(all))
	products := make(map[string]domain.Product, len(all))
	for _, p := range all {
		members[p.ID] = true
		products[p.ID] = p
	}
	for id := range e.toggles {
		if e.members[id] {
			members[id] = true
		} else {
			delete(members, id)
		}
	}
	e.members = members
	e.products = products
	e.mu.Unlock()

	e.publishChanged(ctx)
	return nil
}

// Discard empties the set. Toggles that resolve afterwards do not revert.
func (e *Engine) Discard(ctx context.Context) {
	e.mu.Lock()
	e.members = make(map[string]bool)
	e.products = make(map[string]domain.Product)
	e.gen++
	e.mu.Unlock()

	e.publishChanged(ctx)
}

// setMember updates the set. e.mu must be held.
func (e *Engine) setMember(productID string, member bool) {
	if member {
		e.members[productID] = true
		return
	}
	delete(e.members, productID)
}

func (e *Engine) publishChanged(ctx context.Context) {
	e.bus.Publish(ctx, event.WishlistChanged, "wishlist", event.WishlistPayload{Count: e.Count()})
}
