// Package event is the in-process notification bus of the store.
package event

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Type names an event.
type Type string

const (
	SessionChanged       Type = "session.changed"
	CartChanged          Type = "cart.changed"
	CartSyncFailed       Type = "cart.sync_failed"
	WishlistChanged      Type = "wishlist.changed"
	WishlistToggleFailed Type = "wishlist.toggle_failed"
	OrderStateChanged    Type = "order.state_changed"
)

// Event is one notification. Data holds one of the payload types below.
type Event struct {
	Type        Type      `json:"type"`
	AggregateID string    `json:"aggregate_id,omitempty"`
	Time        time.Time `json:"time"`
	Data        any       `json:"data"`
}

// SessionPayload accompanies SessionChanged.
type SessionPayload struct {
	UserID        string `json:"user_id,omitempty"`
	Authenticated bool   `json:"authenticated"`
	Reason        string `json:"reason"` // login, verify, bootstrap, logout, expired
}

// CartPayload accompanies CartChanged.
type CartPayload struct {
	Lines int `json:"lines"`
	Count int `json:"count"`
}

// CartSyncFailedPayload accompanies CartSyncFailed.
type CartSyncFailedPayload struct {
	ProductID string `json:"product_id"`
	Rejected  int    `json:"rejected_quantity"`
	Restored  int    `json:"restored_quantity"`
	Error     string `json:"error"`
	Err       error  `json:"-"`
}

// WishlistPayload accompanies WishlistChanged.
type WishlistPayload struct {
	Count int `json:"count"`
}

// WishlistToggleFailedPayload accompanies WishlistToggleFailed.
type WishlistToggleFailedPayload struct {
	ProductID string `json:"product_id"`
	Wanted    bool   `json:"wanted"`
	Error     string `json:"error"`
	Err       error  `json:"-"`
}

// OrderStatePayload accompanies OrderStateChanged.
type OrderStatePayload struct {
	OrderID string `json:"order_id,omitempty"`
	From    string `json:"from"`
	To      string `json:"to"`
	Reason  string `json:"reason,omitempty"`
}

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(ctx context.Context, ev Event)

// Bus fans events out to subscribers.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
	now      func() time.Time
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler), now: time.Now}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Publish delivers an event of type t to every subscriber. A nil bus drops it.
func (b *Bus) Publish(ctx context.Context, t Type, aggregateID string, data any) {
	if b == nil {
		return
	}
	ev := Event{Type: t, AggregateID: aggregateID, Time: b.now().UTC(), Data: data}

	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(ctx, ev)
	}
}

// Recorder collects events; tests and the CLI use it to observe the store.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Handle implements Handler.
func (r *Recorder) Handle(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns recorded events, optionally filtered by type.
func (r *Recorder) Events(types ...Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, len(r.events))
	for _, ev := range r.events {
		if len(types) == 0 || slices.Contains(types, ev.Type) {
			out = append(out, ev)
		}
	}
	return out
}
