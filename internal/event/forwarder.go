package event

import (
	"context"
	"log/slog"
	"sync"

	"github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

const forwarderSource = "storefront-client"

// Publisher is the subset of *kafka.Producer the forwarder uses.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// Forwarder copies bus events to a Kafka topic for analytics. Delivery is
// asynchronous and best effort: a full buffer drops events and publish
// failures are only logged.
type Forwarder struct {
	pub    Publisher
	topic  string
	logger *slog.Logger

	ch chan queued
	wg sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type queued struct {
	ev            Event
	correlationID string
}

// NewForwarder creates a forwarder with room for buffer pending events.
func NewForwarder(pub Publisher, topic string, buffer int, logger *slog.Logger) *Forwarder {
	if buffer < 1 {
		buffer = 256
	}
	return &Forwarder{
		pub:    pub,
		topic:  topic,
		logger: logger,
		ch:     make(chan queued, buffer),
	}
}

// Start launches the publishing goroutine. Call Close to flush and stop it.
func (f *Forwarder) Start() {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for q := range f.ch {
			f.publish(q)
		}
	}()
}

// Handle implements Handler. Events handled after Close are dropped.
func (f *Forwarder) Handle(ctx context.Context, ev Event) {
	q := queued{ev: ev, correlationID: logger.CorrelationIDFromContext(ctx)}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		f.logger.DebugContext(ctx, "analytics forwarder closed, dropping event",
			slog.String("event_type", string(ev.Type)),
		)
		return
	}
	select {
	case f.ch <- q:
	default:
		f.logger.WarnContext(ctx, "analytics buffer full, dropping event",
			slog.String("event_type", string(ev.Type)),
		)
	}
}

// Close stops accepting events and waits for queued ones to be published.
func (f *Forwarder) Close() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *Forwarder) publish(q queued) {
	ctx := context.Background()
	out, err := kafka.NewEvent(string(q.ev.Type), q.ev.AggregateID, aggregateType(q.ev.Type), forwarderSource, q.ev.Data)
	if err != nil {
		f.logger.Warn("failed to encode analytics event",
			slog.String("event_type", string(q.ev.Type)),
			slog.String("error", err.Error()),
		)
		return
	}
	out.Timestamp = q.ev.Time
	if q.correlationID != "" {
		out.WithCorrelationID(q.correlationID)
	}
	if err := f.pub.Publish(ctx, f.topic, out); err != nil {
		f.logger.Warn("failed to forward analytics event",
			slog.String("topic", f.topic),
			slog.String("event_type", string(q.ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}

func aggregateType(t Type) string {
	switch t {
	case SessionChanged:
		return "session"
	case CartChanged, CartSyncFailed:
		return "cart"
	case WishlistChanged, WishlistToggleFailed:
		return "wishlist"
	case OrderStateChanged:
		return "order"
	default:
		return "storefront"
	}
}
