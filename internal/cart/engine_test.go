package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/api"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
)

// ---------------------------------------------------------------------------
// fake API
// ---------------------------------------------------------------------------

type update struct {
	productID string
	qty       int
}

type fakeAPI struct {
	mu      sync.Mutex
	server  domain.Cart
	stock   map[string]int
	updates []update
	adds    int
	gets    int
	// hook, when set, replaces the default update behaviour.
	hook func(productID string, qty int) (*domain.Cart, error)
	// holdGet, when set, runs after GetCart has read the server cart.
	holdGet func()
}

func newFakeAPI(items ...domain.CartItem) *fakeAPI {
	return &fakeAPI{
		server: domain.Cart{Items: items},
		stock:  map[string]int{},
	}
}

func item(productID string, qty int) domain.CartItem {
	return domain.CartItem{ID: "line-" + productID, Product: domain.Product{ID: productID, Price: 10}, Quantity: qty}
}

func (f *fakeAPI) GetCart(context.Context) (*domain.Cart, error) {
	f.mu.Lock()
	f.gets++
	c := f.server.Clone()
	hold := f.holdGet
	f.mu.Unlock()
	if hold != nil {
		hold()
	}
	return &c, nil
}

func (f *fakeAPI) GetCartSummary(context.Context) (*domain.CartSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &domain.CartSummary{TotalItems: f.server.Count(), TotalPrice: float64(f.server.Count()) * 10}, nil
}

func (f *fakeAPI) AddToCart(_ context.Context, req domain.AddToCartRequest) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds++
	if i := f.server.FindItem(req.ProductID); i >= 0 {
		f.server.Items[i].Quantity += req.Quantity
	} else {
		f.server.Items = append(f.server.Items, item(req.ProductID, req.Quantity))
	}
	c := f.server.Clone()
	return &c, nil
}

func (f *fakeAPI) UpdateCartItem(_ context.Context, productID string, qty int) (*domain.Cart, error) {
	f.mu.Lock()
	f.updates = append(f.updates, update{productID, qty})
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		return hook(productID, qty)
	}
	return f.applyUpdate(productID, qty)
}

func (f *fakeAPI) applyUpdate(productID string, qty int) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stock, ok := f.stock[productID]; ok && qty > stock {
		return nil, apperrors.Validation(fmt.Sprintf("Only %d items in stock", stock), nil)
	}
	i := f.server.FindItem(productID)
	if i < 0 {
		return nil, apperrors.NotFound("cart item", productID)
	}
	f.server.Items[i].Quantity = qty
	c := f.server.Clone()
	return &c, nil
}

func (f *fakeAPI) RemoveFromCart(_ context.Context, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.server.FindItem(productID)
	if i < 0 {
		return apperrors.NotFound("cart item", productID)
	}
	f.server.Items = append(f.server.Items[:i], f.server.Items[i+1:]...)
	return nil
}

func (f *fakeAPI) ClearCart(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.server.Items = nil
	return nil
}

func (f *fakeAPI) sentUpdates() []update {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]update(nil), f.updates...)
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type harness struct {
	engine *Engine
	api    *fakeAPI
	sched  *ManualScheduler
	events *event.Recorder
}

func newHarness(t *testing.T, fa *fakeAPI) *harness {
	t.Helper()
	sched := NewManualScheduler()
	bus := event.NewBus()
	rec := &event.Recorder{}
	bus.Subscribe(rec.Handle)

	e := New(fa, Config{Debounce: DefaultDebounce, Scheduler: sched}, bus, logger.Discard())
	require.NoError(t, e.Refresh(context.Background()))
	return &harness{engine: e, api: fa, sched: sched, events: rec}
}

func (h *harness) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.engine.Settle(ctx))
}

func (e *Engine) lineInFlight(productID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.lines[productID]
	return ok && l.inFlight
}

func (h *harness) quantity(productID string) int {
	c := h.engine.Cart()
	if i := c.FindItem(productID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

// ---------------------------------------------------------------------------
// Derived count
// ---------------------------------------------------------------------------

func TestCartCount_IsAlwaysTheSumOfQuantities(t *testing.T) {
	fa := newFakeAPI(item("p1", 1), item("p2", 2))
	fa.stock["p1"] = 3
	h := newHarness(t, fa)
	ctx := context.Background()

	// Check the invariant inside every change notification too.
	var mu sync.Mutex
	var violations []string
	h.engine.bus.Subscribe(func(_ context.Context, ev event.Event) {
		if ev.Type != event.CartChanged {
			return
		}
		c := h.engine.Cart()
		sum := 0
		for _, it := range c.Items {
			sum += it.Quantity
		}
		if got := h.engine.CartCount(); got != sum {
			mu.Lock()
			violations = append(violations, fmt.Sprintf("count %d != sum %d", got, sum))
			mu.Unlock()
		}
	})

	check := func() {
		c := h.engine.Cart()
		sum := 0
		for _, it := range c.Items {
			sum += it.Quantity
		}
		assert.Equal(t, sum, h.engine.CartCount())
	}

	assert.Equal(t, 3, h.engine.CartCount())
	require.NoError(t, h.engine.SetQuantity(ctx, "p1", 2))
	check()
	assert.Equal(t, 4, h.engine.CartCount())
	require.NoError(t, h.engine.SetQuantity(ctx, "p2", 5))
	check()
	h.sched.Advance(DefaultDebounce)
	h.settle(t)
	check()
	require.NoError(t, h.engine.SetQuantity(ctx, "p1", 9)) // exceeds stock
	check()
	h.sched.Advance(DefaultDebounce)
	h.settle(t)
	check()
	require.NoError(t, h.engine.Add(ctx, "p3", 1, nil))
	check()
	require.NoError(t, h.engine.Remove(ctx, "p2"))
	check()
	require.NoError(t, h.engine.Clear(ctx))
	check()
	assert.Equal(t, 0, h.engine.CartCount())

	assert.Empty(t, violations)
}

// ---------------------------------------------------------------------------
// Debounce
// ---------------------------------------------------------------------------

func TestSetQuantity_DebounceSendsOnlyTheLastValue(t *testing.T) {
	h := newHarness(t, newFakeAPI(item("p1", 1)))
	ctx := context.Background()

	require.NoError(t, h.engine.SetQuantity(ctx, "p1", 2))
	h.sched.Advance(300 * time.Millisecond)
	require.NoError(t, h.engine.SetQuantity(ctx, "p1", 3))
	h.sched.Advance(300 * time.Millisecond)
	require.NoError(t, h.engine.SetQuantity(ctx, "p1", 4))

	assert.Equal(t, 4, h.quantity("p1"), "applied locally at once")
	assert.Equal(t, LineState{Status: Pending, Seq: 3}, h.engine.LineState("p1"))
	assert.Equal(t, 1, h.sched.Pending())

	h.sched.Advance(DefaultDebounce - time.Millisecond)
	assert.Empty(t, h.api.sentUpdates())

	h.sched.Advance(time.Millisecond)
	h.settle(t)

	assert.Equal(t, []update{{"p1", 4}}, h.api.sentUpdates())
	assert.Equal(t, 4, h.quantity("p1"))
	assert.Equal(t, Synced, h.engine.LineState("p1").Status)

	summary, ok := h.engine.Summary()
	require.True(t, ok)
	assert.Equal(t, 4, summary.TotalItems)
}

func TestSetQuantity_LinesAreDebouncedIndependently(t *testing.T) {
	h := newHarness(t, newFakeAPI(item("p1", 1), item("p2", 1)))
	ctx := context.Background()

	require.NoError(t, h.engine.SetQuantity(ctx, "p1", 2))
	require.NoError(t, h.engine.SetQuantity(ctx, "p2", 3))
	h.sched.Advance(DefaultDebounce)
	h.settle(t)

	assert.ElementsMatch(t, []update{{"p1", 2}, {"p2", 3}}, h.api.sentUpdates())
}

func TestSetQuantity_Validation(t *testing.T) {
	h := newHarness(t, newFakeAPI(item("p1", 1)))

	assert.ErrorIs(t, h.engine.SetQuantity(context.Background(), "p1", 0), apperrors.ErrValidation)
	assert.ErrorIs(t, h.engine.SetQuantity(context.Background(), "nope", 2), apperrors.ErrNotFound)
	assert.Equal(t, 0, h.sched.Pending())
}

// ---------------------------------------------------------------------------
// No-overtaking
// ---------------------------------------------------------------------------

// blockingHook holds every update until released and reports entry.
func blockingHook(fa *fakeAPI, entered chan<- int, release <-chan error) func(string, int) (*domain.Cart, error) {
	return func(productID string, qty int) (*domain.Cart, error) {
		entered <- qty
		if err := <-release; err != nil {
			return nil, err
		}
		return fa.applyUpdate(productID, qty)
	}
}

func TestSetQuantity_OlderResponseDoesNotOverwriteNewerEdit(t *testing.T) {
	fa := newFakeAPI(item("p1", 1))
	h := newHarness(t, fa)
	ctx := context.Background()
	entered := make(chan int, 4)
	release := make(chan error, 4)
	fa.hook = blockingHook(fa, entered, release)

	require.NoError(t, h.engine.SetQuantity(ctx, "p1", 2))
	h.sched.Advance(DefaultDebounce)
	assert.Equal(t, 2, <-entered) // #1 in flight

	require.NoError(t, h.engine.SetQuantity(ctx, "p1", 3))
	h.sched.Advance(DefaultDebounce) // #2 waits for #1

	release <- nil // #1 resolves after #2 was made
	assert.Equal(t, 3, <-entered)
	assert.Equal(t, 3, h.quantity("p1"), "stale response must not overwrite the newer edit")

	release <- nil
	h.settle(t)

	assert.Equal(t, 3, h.quantity("p1"))
	assert.Equal(t, []update{{"p1", 2}, {"p1", 3}}, fa.sentUpdates())
	assert.Equal(t, Synced, h.engine.LineState("p1").Status)
}

func TestSetQuantity_StaleFailureDoesNotRollBackNewerEdit(t *testing.T) {
	fa := newFakeAPI(item("p1", 1))
	h := newHarness(t, fa)
	ctx := context.Background()
	entered := make(chan int, 4)
	release := make(chan error, 4)
	fa.hook = blockingHook(fa, entered, release)

	require.NoError(t, h.engine.SetQuantity(ctx, "p1", 2))
	h.sched.Advance(DefaultDebounce)
	<-entered

	require.NoError(t, h.engine.SetQuantity(ctx, "p1", 3))
	release <- errors.New("gateway timeout")

	// #1 failed, but #2 is still pending: nothing is rolled back yet.
	require.Eventually(t, func() bool { return !h.engine.lineInFlight("p1") }, time.Second, time.Millisecond)
	assert.Equal(t, 3, h.quantity("p1"))
	assert.Empty(t, h.events.Events(event.CartSyncFailed))

	h.sched.Advance(DefaultDebounce)
	assert.Equal(t, 3, <-entered)
	release <- nil
	h.settle(t)

	assert.Equal(t, 3, h.quantity("p1"))
}

func TestRefresh_KeepsOptimisticQuantityOfPendingLines(t *testing.T) {
	h := newHarness(t, newFakeAPI(item("p1", 1), item("p2", 1)))
	ctx := context.Background()

	require.NoError(t, h.engine.SetQuantity(ctx, "p1", 4))
	require.NoError(t, h.engine.Refresh(ctx))

	assert.Equal(t, 4, h.quantity("p1"))
	assert.Equal(t, Pending, h.engine.LineState("p1").Status)

	h.sched.Advance(DefaultDebounce)
	h.settle(t)
	assert.Equal(t, 4, h.quantity("p1"))
}

func TestSetQuantity_LateResponseKeepsOtherLinesConfirmedQuantity(t *testing.T) {
	fa := newFakeAPI(item("p1", 1), item("p2", 1))
	h := newHarness(t, fa)
	ctx := context.Background()
	handled := make(chan struct{})
	release := make(chan struct{})
	fa.hook = func(productID string, qty int) (*domain.Cart, error) {
		c, err := fa.applyUpdate(productID, qty)
		if productID == "p1" {
			close(handled)
			<-release
		}
		return c, err
	}

	require.NoError(t, h.engine.SetQuantity(ctx, "p1", 2))
	h.sched.Advance(DefaultDebounce)
	<-handled // the p1 response carries p2=1 and is held back

	require.NoError(t, h.engine.SetQuantity(ctx, "p2", 5))
	h.sched.Advance(DefaultDebounce)
	require.Eventually(t, func() bool { return h.engine.LineState("p2").Status == Synced }, time.Second, time.Millisecond)
	assert.Equal(t, 5, h.quantity("p2"))

	close(release)
	h.settle(t)

	assert.Equal(t, 2, h.quantity("p1"))
	assert.Equal(t, 5, h.quantity("p2"))
	assert.Equal(t, 7, h.engine.CartCount())
	summary, ok := h.engine.Summary()
	require.True(t, ok)
	assert.Equal(t, 7, summary.TotalItems)
}

func TestRefresh_SnapshotOlderThanUpdateKeepsConfirmedLine(t *testing.T) {
	fa := newFakeAPI(item("p1", 1), item("p2", 1))
	h := newHarness(t, fa)
	ctx := context.Background()
	read := make(chan struct{})
	release := make(chan struct{})
	fa.mu.Lock()
	fa.holdGet = func() {
		close(read)
		<-release
	}
	fa.mu.Unlock()

	refreshed := make(chan error, 1)
	go func() { refreshed <- h.engine.Refresh(ctx) }()
	<-read // the fetched cart still has p2=1

	fa.mu.Lock()
	fa.holdGet = nil
	fa.mu.Unlock()

	require.NoError(t, h.engine.SetQuantity(ctx, "p2", 5))
	h.sched.Advance(DefaultDebounce)
	require.Eventually(t, func() bool { return h.engine.LineState("p2").Status == Synced }, time.Second, time.Millisecond)

	close(release)
	require.NoError(t, <-refreshed)
	h.settle(t)

	assert.Equal(t, 1, h.quantity("p1"))
	assert.Equal(t, 5, h.quantity("p2"))
	summary, ok := h.engine.Summary()
	require.True(t, ok)
	assert.Equal(t, 6, summary.TotalItems)
}

func TestRefresh_SnapshotOlderThanClearIsDropped(t *testing.T) {
	fa := newFakeAPI(item("p1", 3))
	h := newHarness(t, fa)
	ctx := context.Background()
	read := make(chan struct{})
	release := make(chan struct{})
	fa.mu.Lock()
	fa.holdGet = func() {
		close(read)
		<-release
	}
	fa.mu.Unlock()

	refreshed := make(chan error, 1)
	go func() { refreshed <- h.engine.Refresh(ctx) }()
	<-read

	fa.mu.Lock()
	fa.holdGet = nil
	fa.mu.Unlock()
	require.NoError(t, h.engine.Clear(ctx))
	assert.Equal(t, 0, h.engine.CartCount())

	close(release)
	require.NoError(t, <-refreshed)
	assert.Equal(t, 0, h.engine.CartCount(), "the cart fetched before the clear is not applied")
}

// ---------------------------------------------------------------------------
// Rollback
// ---------------------------------------------------------------------------

func TestSetQuantity_RejectedUpdateRollsBack(t *testing.T) {
	fa := newFakeAPI(item("p1", 2))
	fa.stock["p1"] = 5
	h := newHarness(t, fa)

	var observed []LineStatus
	h.engine.bus.Subscribe(func(_ context.Context, ev event.Event) {
		if ev.Type == event.CartSyncFailed {
			observed = append(observed, h.engine.LineState("p1").Status)
		}
	})

	require.NoError(t, h.engine.SetQuantity(context.Background(), "p1", 100))
	assert.Equal(t, 100, h.quantity("p1"))

	h.sched.Advance(DefaultDebounce)
	h.settle(t)

	assert.Equal(t, 2, h.quantity("p1"), "reverts to the last confirmed quantity")
	assert.Equal(t, 2, h.engine.CartCount())
	assert.Equal(t, Synced, h.engine.LineState("p1").Status)
	assert.Equal(t, []LineStatus{RollingBack}, observed)

	failed := h.events.Events(event.CartSyncFailed)
	require.Len(t, failed, 1)
	payload := failed[0].Data.(event.CartSyncFailedPayload)
	assert.Equal(t, 100, payload.Rejected)
	assert.Equal(t, 2, payload.Restored)
	assert.ErrorIs(t, payload.Err, apperrors.ErrValidation)
	assert.Contains(t, payload.Error, "Only 5 items in stock")
}

func TestSetQuantity_RollbackUsesLatestConfirmedValue(t *testing.T) {
	fa := newFakeAPI(item("p1", 1))
	fa.stock["p1"] = 5
	h := newHarness(t, fa)
	ctx := context.Background()

	require.NoError(t, h.engine.SetQuantity(ctx, "p1", 4))
	h.sched.Advance(DefaultDebounce)
	h.settle(t)

	require.NoError(t, h.engine.SetQuantity(ctx, "p1", 6))
	h.sched.Advance(DefaultDebounce)
	h.settle(t)

	assert.Equal(t, 4, h.quantity("p1"))
}

// ---------------------------------------------------------------------------
// Add / Remove / Clear
// ---------------------------------------------------------------------------

func TestAdd_RequiresAuthentication(t *testing.T) {
	fa := newFakeAPI()
	e := New(fa, Config{Scheduler: NewManualScheduler(), Authenticated: func() bool { return false }}, event.NewBus(), logger.Discard())

	err := e.Add(api.WithReturnPath(context.Background(), "/products/mug"), "p1", 1, nil)

	require.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "/products/mug", appErr.ReturnPath)
	assert.Zero(t, fa.adds)
}

func TestAdd_RefetchesCart(t *testing.T) {
	fa := newFakeAPI(item("p1", 1))
	h := newHarness(t, fa)
	getsBefore := fa.gets

	require.NoError(t, h.engine.Add(context.Background(), "p2", 2, map[string]string{"color": "blue"}))

	assert.Equal(t, 1, fa.adds)
	assert.Equal(t, getsBefore+1, fa.gets)
	assert.Equal(t, 2, h.quantity("p2"))
	assert.Equal(t, 3, h.engine.CartCount())
	summary, ok := h.engine.Summary()
	require.True(t, ok)
	assert.Equal(t, 3, summary.TotalItems)
}

func TestAdd_RejectsZeroQuantity(t *testing.T) {
	h := newHarness(t, newFakeAPI())
	assert.ErrorIs(t, h.engine.Add(context.Background(), "p1", 0, nil), apperrors.ErrValidation)
}

func TestRemove_DropsPendingEdit(t *testing.T) {
	fa := newFakeAPI(item("p1", 1), item("p2", 1))
	h := newHarness(t, fa)
	ctx := context.Background()

	require.NoError(t, h.engine.SetQuantity(ctx, "p1", 5))
	require.NoError(t, h.engine.Remove(ctx, "p1"))

	assert.Equal(t, 0, h.sched.Pending())
	h.settle(t)
	assert.Empty(t, fa.sentUpdates())
	assert.Equal(t, -1, h.engine.Cart().FindItem("p1"))
	assert.Equal(t, 1, h.engine.CartCount())
}

func TestRemove_FailureKeepsLine(t *testing.T) {
	h := newHarness(t, newFakeAPI(item("p1", 1)))

	err := h.engine.Remove(context.Background(), "ghost")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 1, h.engine.CartCount())
}

func TestClear_EmptiesCart(t *testing.T) {
	fa := newFakeAPI(item("p1", 2), item("p2", 1))
	h := newHarness(t, fa)
	ctx := context.Background()
	require.NoError(t, h.engine.SetQuantity(ctx, "p2", 3))

	require.NoError(t, h.engine.Clear(ctx))

	assert.Empty(t, h.engine.Cart().Items)
	assert.Equal(t, 0, h.engine.CartCount())
	assert.Equal(t, 0, h.sched.Pending())
	h.settle(t)
	assert.Empty(t, fa.sentUpdates())
}

// ---------------------------------------------------------------------------
// Settle / Discard
// ---------------------------------------------------------------------------

func TestSettle_WaitsForInFlightUpdate(t *testing.T) {
	fa := newFakeAPI(item("p1", 1))
	h := newHarness(t, fa)
	entered := make(chan int, 1)
	release := make(chan error, 1)
	fa.hook = blockingHook(fa, entered, release)

	require.NoError(t, h.engine.SetQuantity(context.Background(), "p1", 2))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.engine.Settle(ctx), context.DeadlineExceeded, "debounce task outstanding")

	h.sched.Advance(DefaultDebounce)
	<-entered
	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	assert.ErrorIs(t, h.engine.Settle(ctx2), context.DeadlineExceeded, "request in flight")

	release <- nil
	h.settle(t)
}

func TestDiscard_DropsStateAndIgnoresLateResponses(t *testing.T) {
	fa := newFakeAPI(item("p1", 1), item("p2", 1))
	h := newHarness(t, fa)
	ctx := context.Background()
	entered := make(chan int, 1)
	release := make(chan error, 1)
	fa.hook = blockingHook(fa, entered, release)

	require.NoError(t, h.engine.SetQuantity(ctx, "p1", 2))
	h.sched.Advance(DefaultDebounce)
	<-entered
	require.NoError(t, h.engine.SetQuantity(ctx, "p2", 4))

	h.engine.Discard(ctx)
	assert.Equal(t, 0, h.sched.Pending())

	release <- nil
	h.settle(t)

	assert.Empty(t, h.engine.Cart().Items)
	assert.Equal(t, 0, h.engine.CartCount())
	_, ok := h.engine.Summary()
	assert.False(t, ok)
}

func TestEngine_RealScheduler(t *testing.T) {
	fa := newFakeAPI(item("p1", 1))
	e := New(fa, Config{Debounce: 200 * time.Millisecond}, event.NewBus(), logger.Discard())
	ctx := context.Background()
	require.NoError(t, e.Refresh(ctx))

	require.NoError(t, e.SetQuantity(ctx, "p1", 2))
	require.NoError(t, e.SetQuantity(ctx, "p1", 3))

	settleCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, e.Settle(settleCtx))
	assert.Equal(t, []update{{"p1", 3}}, fa.sentUpdates())
}

func TestLineStatus_String(t *testing.T) {
	assert.Equal(t, "synced", Synced.String())
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "rolling-back", RollingBack.String())
}
