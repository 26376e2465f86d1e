// Package bus is the in-process broadcast channel that fans committed
// chat events out to every live session. Each subscription has its own
// bounded queue; a publisher never blocks on a slow consumer. When a
// queue overflows, the oldest queued event is evicted and the
// subscription is flagged, so its next Recv reports ErrLagged.
package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ChafterInnovations/Kutter/internal/domain"
	"github.com/ChafterInnovations/Kutter/internal/metrics"
)

// DefaultCapacity bounds the per-subscription queue.
const DefaultCapacity = 20

var (
	// ErrLagged reports that events were dropped because the subscriber
	// fell behind. The subscriber must resynchronize (re-fetch history)
	// or disconnect.
	ErrLagged = errors.New("subscription lagged, events dropped")

	// ErrClosed reports that the bus was shut down.
	ErrClosed = errors.New("bus closed")
)

// Bus delivers every published event to every current subscription in
// publish order. Publish serializes under the bus lock, which is what
// guarantees all subscriptions observe the same total order.
type Bus struct {
	mu       sync.Mutex
	subs     map[*Subscription]struct{}
	capacity int
	closed   bool
}

// Subscription is one receiver's handle onto the bus. Only the owning
// session reads from it.
type Subscription struct {
	bus    *Bus
	ch     chan domain.OutgoingEvent
	lagged atomic.Bool
}

// New creates a bus with the given per-subscription queue capacity.
// capacity <= 0 falls back to DefaultCapacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		subs:     make(map[*Subscription]struct{}),
		capacity: capacity,
	}
}

// Subscribe registers a new receiver. The returned subscription yields
// every event published after this call, until Close.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		bus: b,
		ch:  make(chan domain.OutgoingEvent, b.capacity),
	}
	if b.closed {
		close(sub.ch)
		return sub
	}

	b.subs[sub] = struct{}{}
	metrics.BusSubscribers.Set(float64(len(b.subs)))
	return sub
}

// Publish delivers the event to every current subscription without
// blocking. A full subscription queue loses its oldest event and is
// flagged as lagged.
func (b *Bus) Publish(event domain.OutgoingEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for sub := range b.subs {
		sub.offer(event)
	}
	metrics.BusEventsPublishedTotal.WithLabelValues(eventType(event)).Inc()
}

// SubscriberCount returns the number of current subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Shutdown closes every subscription. Subsequent Recv calls drain any
// queued events and then return ErrClosed.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
	metrics.BusSubscribers.Set(0)
}

// offer runs under the bus lock; the lock serializes all writers to
// sub.ch, so the evict-then-send below cannot race another publisher.
func (s *Subscription) offer(event domain.OutgoingEvent) {
	select {
	case s.ch <- event:
		return
	default:
	}

	// Queue full: evict the oldest event, flag the subscriber.
	select {
	case <-s.ch:
	default:
	}
	s.lagged.Store(true)
	metrics.BusLaggedTotal.Inc()

	select {
	case s.ch <- event:
	default:
	}
}

// Recv yields the next event in publish order. It returns ErrLagged
// once after an overflow, ErrClosed after Shutdown or Close, and the
// context error if ctx ends first.
func (s *Subscription) Recv(ctx context.Context) (domain.OutgoingEvent, error) {
	if s.lagged.Swap(false) {
		return nil, ErrLagged
	}

	select {
	case event, ok := <-s.ch:
		if !ok {
			return nil, ErrClosed
		}
		if s.lagged.Swap(false) {
			return nil, ErrLagged
		}
		return event, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close drops the subscription; the bus stops delivering to it.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if _, ok := s.bus.subs[s]; !ok {
		return
	}
	delete(s.bus.subs, s)
	close(s.ch)
	metrics.BusSubscribers.Set(float64(len(s.bus.subs)))
}

func eventType(event domain.OutgoingEvent) string {
	switch event.(type) {
	case domain.NewMessageEvent:
		return "new_message"
	case domain.DeleteEvent:
		return "delete"
	default:
		return "unknown"
	}
}
