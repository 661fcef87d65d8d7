// Package bus implements the per-event ticket lifecycle broadcast channel.
//
// One Bus belongs to one live event. Publish, Subscribe, and Unsubscribe on
// the same bus are serialized by a single mutex, so a subscriber added while
// a publish is in flight never sees that event and is never skipped for the
// next one. Delivery is at-most-once and unbuffered at the bus level: events
// published while nobody is subscribed are gone.
package bus

import (
	"sync"

	"github.com/fieldops/pitsignal/internal/services/support/domain"
	"github.com/rs/zerolog"
)

// DefaultBufferSize is the per-subscription channel capacity. A subscriber
// that falls this far behind starts losing events rather than stalling the
// publishing mutation.
const DefaultBufferSize = 32

// Predicate decides whether one lifecycle event reaches a subscription.
// Predicates must be pure functions of the event and their scope parameters.
type Predicate func(domain.TicketEvent) bool

// Subscription is the handle returned by Subscribe. It is removable only by
// identity: passing the same handle back to Unsubscribe, never a re-derived
// predicate.
type Subscription struct {
	events chan domain.TicketEvent
	pred   Predicate
}

// Events is the subscriber's receive channel. It is closed when the
// subscription is removed from the bus.
func (s *Subscription) Events() <-chan domain.TicketEvent {
	return s.events
}

// Bus fans lifecycle events out to scoped subscriptions.
type Bus struct {
	log    zerolog.Logger
	buffer int

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// New creates an empty bus with the default per-subscription buffer.
func New(log zerolog.Logger) *Bus {
	return NewWithBuffer(log, DefaultBufferSize)
}

// NewWithBuffer creates an empty bus with an explicit per-subscription buffer.
func NewWithBuffer(log zerolog.Logger, buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Bus{
		log:    log,
		buffer: buffer,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscription filtered by pred. A nil predicate
// admits every event.
func (b *Bus) Subscribe(pred Predicate) *Subscription {
	sub := &Subscription{
		events: make(chan domain.TicketEvent, b.buffer),
		pred:   pred,
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription and closes its channel. Removing a
// handle that was never registered, or was already removed, is a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.events)
}

// Publish fans one event out to every registered subscription whose
// predicate admits it. Each subscription receives events in publish order;
// a full subscriber buffer drops the event for that subscriber only.
func (b *Bus) Publish(ev domain.TicketEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if sub.pred != nil && !sub.pred(ev) {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			b.log.Warn().
				Str("kind", string(ev.Kind)).
				Str("ticket_id", ev.Ticket.ID).
				Msg("subscriber buffer full, dropping lifecycle event")
		}
	}
}

// SubscriberCount reports the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
