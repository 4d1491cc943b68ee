// Package cart mirrors the server-side cart and reconciles optimistic
// quantity edits with it.
//
// Each line being edited carries a sequence number that grows with every
// edit. Edits are debounced per line, at most one update request per line is
// in flight, and a response only takes effect if no newer edit exists for its
// line. A rejected update puts the line back to its last confirmed quantity.
//
// Server carts arrive as whole snapshots, from update responses and from
// fetches. Every applied mutation response is numbered, and a snapshot
// remembers the number current when its request was issued. A snapshot never
// overrides a line changed by a mutation it may not have seen, and snapshots
// issued before an add, remove or clear are dropped.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/storefront/internal/api"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/metrics"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/tracing"
)

// DefaultDebounce is the quiescence window before a quantity edit is sent.
const DefaultDebounce = 750 * time.Millisecond

// API is the subset of the API adapter the engine calls.
type API interface {
	GetCart(ctx context.Context) (*domain.Cart, error)
	GetCartSummary(ctx context.Context) (*domain.CartSummary, error)
	AddToCart(ctx context.Context, req domain.AddToCartRequest) (*domain.Cart, error)
	UpdateCartItem(ctx context.Context, productID string, quantity int) (*domain.Cart, error)
	RemoveFromCart(ctx context.Context, productID string) error
	ClearCart(ctx context.Context) error
}

// LineStatus is the sync state of one cart line.
type LineStatus int

const (
	Synced LineStatus = iota
	Pending
	RollingBack
)

func (s LineStatus) String() string {
	switch s {
	case Synced:
		return "synced"
	case Pending:
		return "pending"
	case RollingBack:
		return "rolling-back"
	default:
		return "unknown"
	}
}

// LineState reports a line's status and its latest edit sequence.
type LineState struct {
	Status LineStatus
	Seq    uint64
}

// line tracks a cart line with unsent or unconfirmed edits.
type line struct {
	ctx       context.Context
	confirmed int    // last quantity the server accepted
	desired   int    // latest optimistic quantity
	seq       uint64 // latest edit
	status    LineStatus
	stop      func() bool // pending debounce task
	inFlight  bool
	sendAgain bool // the debounce fired while a request was in flight
}

// Config holds engine settings.
type Config struct {
	Debounce  time.Duration
	Scheduler Scheduler
	// Authenticated reports whether a session exists. Add requires one.
	Authenticated func() bool
}

// Engine is the cart synchronization engine.
type Engine struct {
	api      API
	sched    Scheduler
	debounce time.Duration
	authed   func() bool
	bus      *event.Bus
	logger   *slog.Logger

	mu          sync.Mutex
	cart        domain.Cart
	summary     *domain.CartSummary
	lines       map[string]*line
	gen         uint64 // bumped by Discard; stale fetches are dropped
	acks        uint64 // mutation responses applied
	lineAck     map[string]uint64
	cartAck     uint64 // last add, remove or clear
	summaryAck  uint64 // issue number of the applied summary
	outstanding int    // pending debounce tasks plus in-flight work
	idle        chan struct{}
}

// New creates an empty engine.
func New(a API, cfg Config, bus *event.Bus, logger *slog.Logger) *Engine {
	if cfg.Scheduler == nil {
		cfg.Scheduler = RealScheduler{}
	}
	if cfg.Authenticated == nil {
		cfg.Authenticated = func() bool { return true }
	}
	return &Engine{
		api:      a,
		sched:    cfg.Scheduler,
		debounce: cfg.Debounce,
		authed:   cfg.Authenticated,
		bus:      bus,
		logger:   logger,
		lines:    make(map[string]*line),
		lineAck:  make(map[string]uint64),
		idle:     make(chan struct{}),
	}
}

// Cart returns a copy of the local cart, including optimistic quantities.
func (e *Engine) Cart() domain.Cart {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Clone()
}

// Summary returns the last server-computed summary, if any.
func (e *Engine) Summary() (domain.CartSummary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.summary == nil {
		return domain.CartSummary{}, false
	}
	return *e.summary, true
}

// CartCount is the sum of quantities over the local cart.
func (e *Engine) CartCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Count()
}

// LineState returns the sync state of a line. Lines without edits are synced.
func (e *Engine) LineState(productID string) LineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if l, ok := e.lines[productID]; ok {
		return LineState{Status: l.status, Seq: l.seq}
	}
	return LineState{Status: Synced}
}

// SetQuantity applies qty to the line locally and schedules the update. Only
// the last quantity set within the debounce window is sent. Failures of the
// deferred update are reported through cart.sync_failed.
func (e *Engine) SetQuantity(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return apperrors.Validation("quantity must be at least 1", map[string]string{"quantity": "must be at least 1"})
	}

	e.mu.Lock()
	idx := e.cart.FindItem(productID)
	if idx < 0 {
		e.mu.Unlock()
		return apperrors.NotFound("cart item", productID)
	}

	l, ok := e.lines[productID]
	if !ok {
		l = &line{confirmed: e.cart.Items[idx].Quantity}
		e.lines[productID] = l
	}
	l.ctx = context.WithoutCancel(ctx)
	l.seq++
	l.desired = qty
	l.status = Pending
	e.cart.Items[idx].Quantity = qty

	if l.stop != nil && l.stop() {
		metrics.CartCoalescedEdits.Inc()
		e.done()
	}
	seq := l.seq
	e.outstanding++
	l.stop = e.sched.AfterFunc(e.debounce, func() { e.fire(productID, l, seq) })
	e.mu.Unlock()

	e.publishChanged(ctx)
	return nil
}

// fire runs when a line's debounce window elapses.
func (e *Engine) fire(productID string, l *line, seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.done()

	if e.lines[productID] != l || l.seq != seq {
		return
	}
	l.stop = nil
	if l.inFlight {
		l.sendAgain = true
		metrics.CartCoalescedEdits.Inc()
		return
	}
	e.startSend(productID, l)
}

// startSend launches the update for the line's latest quantity. e.mu must be held.
func (e *Engine) startSend(productID string, l *line) {
	l.inFlight = true
	l.sendAgain = false
	e.outstanding++
	go e.send(l.ctx, productID, l, l.seq, l.desired, e.acks)
}

// ack numbers a mutation response. e.mu must be held.
func (e *Engine) ack() uint64 {
	e.acks++
	return e.acks
}

func (e *Engine) send(ctx context.Context, productID string, l *line, seq uint64, qty int, issued uint64) {
	ctx, span := tracing.Tracer("storefront/cart").Start(ctx, "cart.update_quantity")
	defer span.End()

	metrics.CartDebounceSends.Inc()
	serverCart, err := e.api.UpdateCartItem(ctx, productID, qty)

	e.mu.Lock()
	if e.lines[productID] != l {
		// Removed, cleared or discarded while in flight.
		metrics.CartStaleResponses.Inc()
		e.done()
		e.mu.Unlock()
		return
	}
	l.inFlight = false

	if l.seq != seq {
		metrics.CartStaleResponses.Inc()
		if err == nil {
			if i := serverCart.FindItem(productID); i >= 0 {
				l.confirmed = serverCart.Items[i].Quantity
				e.lineAck[productID] = e.ack()
			}
		}
		if l.sendAgain {
			e.startSend(productID, l)
		}
		e.done()
		e.mu.Unlock()
		return
	}

	if err != nil {
		restored := e.rollback(productID, l)
		e.mu.Unlock()

		e.logger.WarnContext(ctx, "cart quantity update rejected, rolled back",
			slog.String("product_id", productID),
			slog.Int("rejected", qty),
			slog.Int("restored", restored),
			slog.String("error", err.Error()),
		)
		e.bus.Publish(ctx, event.CartSyncFailed, productID, event.CartSyncFailedPayload{
			ProductID: productID,
			Rejected:  qty,
			Restored:  restored,
			Error:     err.Error(),
			Err:       err,
		})

		e.mu.Lock()
		if e.lines[productID] == l && l.status == RollingBack {
			delete(e.lines, productID)
		}
		e.mu.Unlock()
		e.publishChanged(ctx)

		e.mu.Lock()
		e.done()
		e.mu.Unlock()
		return
	}

	delete(e.lines, productID)
	if !e.applyServerCart(serverCart, issued) {
		e.applyServerLine(serverCart, productID)
	}
	e.lineAck[productID] = e.ack()
	gen, sumIssued := e.gen, e.acks
	e.mu.Unlock()
	e.publishChanged(ctx)

	// The summary is recomputed by the server after every change.
	summary, err := e.api.GetCartSummary(ctx)
	e.mu.Lock()
	if err == nil && gen == e.gen && sumIssued >= e.summaryAck {
		e.summary = summary
		e.summaryAck = sumIssued
	}
	e.done()
	e.mu.Unlock()
	if err != nil {
		e.logger.WarnContext(ctx, "failed to refresh cart summary", slog.String("error", err.Error()))
	}
}

// rollback restores the line to its last confirmed quantity. The line stays
// in the rolling-back state until subscribers have been told. e.mu must be held.
func (e *Engine) rollback(productID string, l *line) int {
	l.status = RollingBack
	l.desired = l.confirmed
	metrics.CartRollbacks.Inc()
	if i := e.cart.FindItem(productID); i >= 0 {
		e.cart.Items[i].Quantity = l.confirmed
	}
	return l.confirmed
}

// applyServerCart replaces the local cart with a snapshot requested when
// issued mutation responses had been applied. Lines changed by a later
// response keep their local state, and lines with unconfirmed edits keep
// their optimistic quantity. It reports false, changing nothing, when the
// snapshot predates the last add, remove or clear. e.mu must be held.
func (e *Engine) applyServerCart(c *domain.Cart, issued uint64) bool {
	if issued < e.cartAck {
		return false
	}
	next := c.Clone()
	var cur *domain.Cart
	for pid, at := range e.lineAck {
		if at <= issued {
			continue
		}
		if cur == nil {
			clone := e.cart.Clone()
			cur = &clone
		}
		local, i := cur.FindItem(pid), next.FindItem(pid)
		switch {
		case local >= 0 && i >= 0:
			next.Items[i] = cur.Items[local]
		case local >= 0:
			next.Items = append(next.Items, cur.Items[local])
		case i >= 0:
			next.Items = slices.Delete(next.Items, i, i+1)
		}
	}

	for pid, l := range e.lines {
		i := next.FindItem(pid)
		if i < 0 {
			if l.stop != nil && l.stop() {
				e.done()
			}
			delete(e.lines, pid)
			continue
		}
		if !l.inFlight && e.lineAck[pid] <= issued {
			l.confirmed = next.Items[i].Quantity
		}
		next.Items[i].Quantity = l.desired
	}
	e.cart = next
	return true
}

// applyServerLine takes a single line from a snapshot too old to apply as a
// whole. e.mu must be held.
func (e *Engine) applyServerLine(c *domain.Cart, productID string) {
	i, local := c.FindItem(productID), e.cart.FindItem(productID)
	if i < 0 || local < 0 {
		return
	}
	e.cart.Items[local] = c.Clone().Items[i]
}

// mutated records an add, remove or clear. e.mu must be held.
func (e *Engine) mutated() {
	e.cartAck = e.ack()
}

// Add puts qty units of a product in the cart and then reloads the cart and
// summary from the server.
func (e *Engine) Add(ctx context.Context, productID string, qty int, customizations map[string]string) error {
	if !e.authed() {
		appErr := apperrors.NotAuthenticated("sign in to add items to your cart")
		appErr.ReturnPath = api.ReturnPath(ctx)
		return appErr
	}
	if qty < 1 {
		return apperrors.Validation("quantity must be at least 1", map[string]string{"quantity": "must be at least 1"})
	}
	if _, err := e.api.AddToCart(ctx, domain.AddToCartRequest{
		ProductID:      productID,
		Quantity:       qty,
		Customizations: customizations,
	}); err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}
	e.mu.Lock()
	e.mutated()
	e.mu.Unlock()
	return e.Refresh(ctx)
}

// Remove deletes a line, dropping any unsent edit for it, and reloads the cart.
func (e *Engine) Remove(ctx context.Context, productID string) error {
	e.mu.Lock()
	if l, ok := e.lines[productID]; ok {
		if l.stop != nil && l.stop() {
			e.done()
		}
		delete(e.lines, productID)
		if i := e.cart.FindItem(productID); i >= 0 {
			e.cart.Items[i].Quantity = l.confirmed
		}
	}
	e.mu.Unlock()

	if err := e.api.RemoveFromCart(ctx, productID); err != nil {
		e.publishChanged(ctx)
		return fmt.Errorf("remove from cart: %w", err)
	}
	e.mu.Lock()
	e.mutated()
	e.mu.Unlock()
	return e.Refresh(ctx)
}

// Clear empties the cart. Confirmation is the caller's concern.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	e.dropLines()
	e.mu.Unlock()

	if err := e.api.ClearCart(ctx); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	e.mu.Lock()
	e.mutated()
	e.mu.Unlock()
	return e.Refresh(ctx)
}

// Refresh loads the cart and summary from the server.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	gen, issued := e.gen, e.acks
	e.mu.Unlock()

	var (
		c *domain.Cart
		s *domain.CartSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		c, err = e.api.GetCart(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		s, err = e.api.GetCartSummary(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("refresh cart: %w", err)
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return nil
	}
	e.applyServerCart(c, issued)
	if issued >= e.summaryAck {
		e.summary = s
		e.summaryAck = issued
	}
	e.mu.Unlock()

	e.publishChanged(ctx)
	return nil
}

// Settle blocks until no debounce task or update request is outstanding.
func (e *Engine) Settle(ctx context.Context) error {
	for {
		e.mu.Lock()
		if e.outstanding == 0 {
			e.mu.Unlock()
			return nil
		}
		ch := e.idle
		e.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Discard drops all local state and pending edits. Responses that arrive
// afterwards are ignored.
func (e *Engine) Discard(ctx context.Context) {
	e.mu.Lock()
	e.dropLines()
	e.cart = domain.Cart{}
	e.summary = nil
	e.gen++
	clear(e.lineAck)
	e.mu.Unlock()

	e.publishChanged(ctx)
}

// dropLines cancels every pending debounce task. e.mu must be held.
func (e *Engine) dropLines() {
	for pid, l := range e.lines {
		if l.stop != nil && l.stop() {
			e.done()
		}
		delete(e.lines, pid)
	}
}

// done marks one outstanding task finished. e.mu must be held.
func (e *Engine) done() {
	e.outstanding--
	close(e.idle)
	e.idle = make(chan struct{})
}

func (e *Engine) publishChanged(ctx context.Context) {
	e.mu.Lock()
	payload := event.CartPayload{Lines: len(e.cart.Items), Count: e.cart.Count()}
	e.mu.Unlock()
	e.bus.Publish(ctx, event.CartChanged, "cart", payload)
}
