package registry

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/fieldops/pitsignal/internal/platform/errors"
	"github.com/fieldops/pitsignal/internal/services/support/domain"
	"github.com/rs/zerolog"
)

type fakeEventSource struct {
	events map[string]domain.Event
}

func newFakeEventSource(events ...domain.Event) *fakeEventSource {
	source := &fakeEventSource{events: make(map[string]domain.Event)}
	for _, event := range events {
		source.events[event.Code] = event
	}
	return source
}

func (s *fakeEventSource) GetEventByCode(_ context.Context, code string) (domain.Event, error) {
	event, ok := s.events[code]
	if !ok {
		return domain.Event{}, apperrors.New(apperrors.CodeEventNotFound, "event not found")
	}
	return event, nil
}

func (s *fakeEventSource) GetEventByToken(_ context.Context, token string) (domain.Event, error) {
	for _, event := range s.events {
		if event.Token == token {
			return event, nil
		}
	}
	return domain.Event{}, apperrors.New(apperrors.CodeEventNotFound, "event not found")
}

func TestResolveTokenReturnsSameInstance(t *testing.T) {
	t.Parallel()

	source := newFakeEventSource(domain.Event{Code: "2026onsea", Token: "tok-1", Pin: "1234"})
	r := New(source, zerolog.Nop())

	first, err := r.ResolveToken(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	second, err := r.ResolveToken(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("resolve token again: %v", err)
	}
	if first != second {
		t.Fatal("expected repeated token resolution to return the same context instance")
	}
	if first.Bus == nil {
		t.Fatal("expected context to own a bus")
	}
}

func TestResolveCodeSharesContextWithTokenPath(t *testing.T) {
	t.Parallel()

	source := newFakeEventSource(domain.Event{Code: "2026onsea", Token: "tok-1"})
	r := New(source, zerolog.Nop())

	byToken, err := r.ResolveToken(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	byCode, err := r.ResolveCode(context.Background(), "2026onsea")
	if err != nil {
		t.Fatalf("resolve code: %v", err)
	}
	if byToken != byCode {
		t.Fatal("expected token and code resolution to share one context")
	}
}

func TestResolveUnknownFailsNotFound(t *testing.T) {
	t.Parallel()

	r := New(newFakeEventSource(), zerolog.Nop())

	_, err := r.ResolveToken(context.Background(), "missing")
	if !apperrors.IsCode(err, apperrors.CodeEventNotFound) {
		t.Fatalf("expected event not found, got %v", err)
	}
	_, err = r.ResolveCode(context.Background(), "missing")
	if !apperrors.IsCode(err, apperrors.CodeEventNotFound) {
		t.Fatalf("expected event not found, got %v", err)
	}
	_, err = r.ResolveToken(context.Background(), "  ")
	if !apperrors.IsCode(err, apperrors.CodeEventNotFound) {
		t.Fatalf("expected event not found for blank token, got %v", err)
	}
}

func TestDistinctEventsGetDistinctBuses(t *testing.T) {
	t.Parallel()

	source := newFakeEventSource(
		domain.Event{Code: "2026onsea", Token: "tok-1"},
		domain.Event{Code: "2026onbar", Token: "tok-2"},
	)
	r := New(source, zerolog.Nop())

	first, err := r.ResolveCode(context.Background(), "2026onsea")
	if err != nil {
		t.Fatalf("resolve first: %v", err)
	}
	second, err := r.ResolveCode(context.Background(), "2026onbar")
	if err != nil {
		t.Fatalf("resolve second: %v", err)
	}
	if first == second || first.Bus == second.Bus {
		t.Fatal("expected independent contexts per event")
	}
}

func TestPublishTicketEventReachesSubscribers(t *testing.T) {
	t.Parallel()

	source := newFakeEventSource(domain.Event{Code: "2026onsea", Token: "tok-1"})
	r := New(source, zerolog.Nop())

	eventCtx, err := r.ResolveCode(context.Background(), "2026onsea")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	sub := eventCtx.Bus.Subscribe(nil)

	r.PublishTicketEvent(context.Background(), "2026onsea", domain.TicketEvent{
		Kind:   domain.KindCreate,
		Ticket: domain.Ticket{ID: "tkt-1", Team: 7},
	})

	select {
	case ev := <-sub.Events():
		if ev.Ticket.ID != "tkt-1" {
			t.Fatalf("unexpected ticket id %q", ev.Ticket.ID)
		}
	default:
		t.Fatal("expected published event to reach subscriber")
	}
}

func TestPublishTicketEventUnknownEventIsDropped(t *testing.T) {
	t.Parallel()

	r := New(newFakeEventSource(), zerolog.Nop())

	// Must not panic or error; publication is best-effort.
	r.PublishTicketEvent(context.Background(), "missing", domain.TicketEvent{Kind: domain.KindCreate})
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("db down")
	r := New(failingEventSource{err: wantErr}, zerolog.Nop())

	_, err := r.ResolveCode(context.Background(), "2026onsea")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

type failingEventSource struct {
	err error
}

func (s failingEventSource) GetEventByCode(context.Context, string) (domain.Event, error) {
	return domain.Event{}, s.err
}

func (s failingEventSource) GetEventByToken(context.Context, string) (domain.Event, error) {
	return domain.Event{}, s.err
}
