// Package registry resolves access tokens and event codes to live, in-memory
// event contexts.
//
// Each live event gets exactly one EventContext for the life of the process,
// so every subscriber and publisher shares the same bus. Contexts are never
// evicted: events are short-lived competitions, the per-context footprint is
// one bus and a small struct, and the process restarts between events. This
// is a deliberate policy, not an accident.
package registry

import (
	"context"
	"strings"
	"sync"

	apperrors "github.com/fieldops/pitsignal/internal/platform/errors"
	"github.com/fieldops/pitsignal/internal/services/support/bus"
	"github.com/fieldops/pitsignal/internal/services/support/domain"
	"github.com/rs/zerolog"
)

// EventSource looks up event records for resolution.
type EventSource interface {
	GetEventByCode(ctx context.Context, code string) (domain.Event, error)
	GetEventByToken(ctx context.Context, token string) (domain.Event, error)
}

// EventContext is one live event plus its lifecycle bus.
type EventContext struct {
	Event domain.Event
	Bus   *bus.Bus
}

// Registry caches one EventContext per live event.
type Registry struct {
	store EventSource
	log   zerolog.Logger

	mu     sync.Mutex
	byCode map[string]*EventContext
}

// New creates an empty registry backed by the given event source.
func New(store EventSource, log zerolog.Logger) *Registry {
	return &Registry{
		store:  store,
		log:    log,
		byCode: make(map[string]*EventContext),
	}
}

// ResolveToken resolves an opaque access token to the event's live context.
func (r *Registry) ResolveToken(ctx context.Context, token string) (*EventContext, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.New(apperrors.CodeEventNotFound, "event token is required")
	}
	event, err := r.store.GetEventByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return r.contextFor(event), nil
}

// ResolveCode resolves an event code directly, for callers that already trust
// the code (for example a mutation crossing from one event into another).
func (r *Registry) ResolveCode(ctx context.Context, code string) (*EventContext, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.New(apperrors.CodeEventNotFound, "event code is required")
	}
	event, err := r.store.GetEventByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return r.contextFor(event), nil
}

// contextFor returns the cached context for an event, creating it on first
// resolution. Repeated resolution returns the same instance.
func (r *Registry) contextFor(event domain.Event) *EventContext {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byCode[event.Code]; ok {
		return existing
	}
	created := &EventContext{
		Event: event,
		Bus:   bus.New(r.log.With().Str("event_code", event.Code).Logger()),
	}
	r.byCode[event.Code] = created
	r.log.Info().Str("event_code", event.Code).Msg("event context created")
	return created
}

// PublishTicketEvent broadcasts one lifecycle transition on the named event's
// bus. Unresolvable events are logged and dropped: publication never fails
// the mutation that triggered it.
func (r *Registry) PublishTicketEvent(ctx context.Context, eventCode string, ev domain.TicketEvent) {
	eventCtx, err := r.ResolveCode(ctx, eventCode)
	if err != nil {
		r.log.Warn().
			Err(err).
			Str("event_code", eventCode).
			Str("kind", string(ev.Kind)).
			Msg("dropping lifecycle event for unresolvable event")
		return
	}
	eventCtx.Bus.Publish(ev)
}
