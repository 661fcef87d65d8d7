package domain

import "context"

// Kind tags one ticket lifecycle transition.
type Kind string

const (
	// KindCreate is broadcast when a ticket is first raised.
	KindCreate Kind = "create"
	// KindAssign is broadcast when a ticket gains an assignee.
	KindAssign Kind = "assign"
	// KindUnassign is broadcast when a ticket returns to the unassigned state.
	KindUnassign Kind = "un-assign"
	// KindStatus is broadcast when a ticket is closed or reopened.
	KindStatus Kind = "status"
)

// TicketEvent is one lifecycle transition published on an event's bus. The
// embedded ticket is a fully-populated snapshot so subscribers and notifiers
// never need a second lookup. TicketEvents are ephemeral: they exist only on
// the bus and are never persisted.
type TicketEvent struct {
	Kind   Kind   `json:"type"`
	Ticket Ticket `json:"data"`
}

// Publisher broadcasts lifecycle transitions onto a live event's bus.
// Implementations must not fail the originating mutation.
type Publisher interface {
	PublishTicketEvent(ctx context.Context, eventCode string, ev TicketEvent)
}

// Notifier computes outbound push recipients for one lifecycle transition and
// hands them to the notification transport. Strictly best-effort: it runs
// after the mutation has committed and never surfaces errors to the caller.
type Notifier interface {
	NotifyTicketEvent(ctx context.Context, ev TicketEvent, actor Profile)
}
