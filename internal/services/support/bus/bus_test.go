package bus

import (
	"fmt"
	"sync"
	"testing"

	"github.com/fieldops/pitsignal/internal/services/support/domain"
	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func createEvent(ticketID string, team int) domain.TicketEvent {
	return domain.TicketEvent{
		Kind: domain.KindCreate,
		Ticket: domain.Ticket{
			ID:   ticketID,
			Team: team,
		},
	}
}

func drain(sub *Subscription) []domain.TicketEvent {
	var events []domain.TicketEvent
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestPublishDeliversInOrder(t *testing.T) {
	t.Parallel()

	b := New(testLogger())
	sub := b.Subscribe(nil)

	for i := range 5 {
		b.Publish(createEvent(fmt.Sprintf("tkt-%d", i), 7))
	}

	events := drain(sub)
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	for i, ev := range events {
		want := fmt.Sprintf("tkt-%d", i)
		if ev.Ticket.ID != want {
			t.Fatalf("event %d: ticket id = %q, want %q", i, ev.Ticket.ID, want)
		}
	}
}

func TestSubscriberMissesEventsPublishedBeforeSubscribe(t *testing.T) {
	t.Parallel()

	b := New(testLogger())
	b.Publish(createEvent("tkt-early", 7))

	sub := b.Subscribe(nil)
	b.Publish(createEvent("tkt-late", 7))

	events := drain(sub)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Ticket.ID != "tkt-late" {
		t.Fatalf("expected only the post-subscribe event, got %q", events[0].Ticket.ID)
	}
}

func TestUnsubscribeStopsDeliveryAndClosesChannel(t *testing.T) {
	t.Parallel()

	b := New(testLogger())
	sub := b.Subscribe(nil)

	b.Publish(createEvent("tkt-1", 7))
	b.Unsubscribe(sub)
	b.Publish(createEvent("tkt-2", 7))

	var got []domain.TicketEvent
	for ev := range sub.Events() {
		got = append(got, ev)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event before unsubscribe, got %d", len(got))
	}
	if got[0].Ticket.ID != "tkt-1" {
		t.Fatalf("unexpected event %q", got[0].Ticket.ID)
	}
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.SubscriberCount())
	}
}

func TestUnsubscribeUnknownHandleIsNoOp(t *testing.T) {
	t.Parallel()

	b := New(testLogger())
	sub := b.Subscribe(nil)

	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	b.Unsubscribe(nil)

	other := &Subscription{events: make(chan domain.TicketEvent, 1)}
	b.Unsubscribe(other)
}

func TestUnsubscribeOneHandleKeepsOthersWithSamePredicate(t *testing.T) {
	t.Parallel()

	b := New(testLogger())
	pred := TeamScoped(7)
	first := b.Subscribe(pred)
	second := b.Subscribe(pred)

	b.Unsubscribe(first)
	b.Publish(createEvent("tkt-1", 7))

	if got := drain(second); len(got) != 1 {
		t.Fatalf("expected surviving subscription to receive 1 event, got %d", len(got))
	}
	if b.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.SubscriberCount())
	}
}

func TestPublishDropsWhenSubscriberBufferFull(t *testing.T) {
	t.Parallel()

	b := NewWithBuffer(testLogger(), 2)
	sub := b.Subscribe(nil)

	for i := range 5 {
		b.Publish(createEvent(fmt.Sprintf("tkt-%d", i), 7))
	}

	events := drain(sub)
	if len(events) != 2 {
		t.Fatalf("expected buffer-capped 2 events, got %d", len(events))
	}
	if events[0].Ticket.ID != "tkt-0" || events[1].Ticket.ID != "tkt-1" {
		t.Fatalf("expected oldest events retained, got %q %q", events[0].Ticket.ID, events[1].Ticket.ID)
	}
}

func TestPredicateFiltersDelivery(t *testing.T) {
	t.Parallel()

	b := New(testLogger())
	sub := b.Subscribe(TeamScoped(7))

	b.Publish(createEvent("tkt-7", 7))
	b.Publish(createEvent("tkt-9", 9))

	events := drain(sub)
	if len(events) != 1 {
		t.Fatalf("expected 1 admitted event, got %d", len(events))
	}
	if events[0].Ticket.ID != "tkt-7" {
		t.Fatalf("expected team 7 event, got %q", events[0].Ticket.ID)
	}
}

func TestConcurrentPublishSubscribeUnsubscribe(t *testing.T) {
	t.Parallel()

	b := New(testLogger())
	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				b.Publish(createEvent(fmt.Sprintf("tkt-%d", i), 7))
			}
		}()
	}
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				sub := b.Subscribe(Foreground())
				drain(sub)
				b.Unsubscribe(sub)
			}
		}()
	}
	wg.Wait()

	if b.SubscriberCount() != 0 {
		t.Fatalf("expected no subscribers after teardown, got %d", b.SubscriberCount())
	}
}
