// Package audit provides structured audit logging for business events.
package audit

import (
	"github.com/rs/zerolog"
)

// Logger records ticket lifecycle actions in a queryable form.
type Logger struct {
	log zerolog.Logger
}

// New creates a new audit logger on top of a configured zerolog logger.
func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// TicketCreated logs a new ticket raised against a team.
func (l *Logger) TicketCreated(eventCode string, ticketID string, team int, authorID int64) {
	if l == nil {
		return
	}
	l.log.Info().
		Str("action", "ticket_created").
		Str("event_code", eventCode).
		Str("ticket_id", ticketID).
		Int("team", team).
		Int64("author_id", authorID).
		Msg("Ticket created")
}

// TicketAssigned logs an assignment change, including un-assignment.
func (l *Logger) TicketAssigned(eventCode string, ticketID string, assigneeID int64, actorID int64) {
	if l == nil {
		return
	}
	l.log.Info().
		Str("action", "ticket_assigned").
		Str("event_code", eventCode).
		Str("ticket_id", ticketID).
		Int64("assignee_id", assigneeID).
		Int64("actor_id", actorID).
		Msg("Ticket assignment changed")
}

// TicketStatusChanged logs a ticket being closed or reopened.
func (l *Logger) TicketStatusChanged(eventCode string, ticketID string, open bool, actorID int64) {
	if l == nil {
		return
	}
	l.log.Info().
		Str("action", "ticket_status_changed").
		Str("event_code", eventCode).
		Str("ticket_id", ticketID).
		Bool("open", open).
		Int64("actor_id", actorID).
		Msg("Ticket status changed")
}

// TicketDeleted logs a ticket removal.
func (l *Logger) TicketDeleted(ticketID string, actorID int64) {
	if l == nil {
		return
	}
	l.log.Warn().
		Str("action", "ticket_deleted").
		Str("ticket_id", ticketID).
		Int64("actor_id", actorID).
		Msg("Ticket deleted")
}

// NotificationDispatched logs one outbound push batch.
func (l *Logger) NotificationDispatched(title string, recipients int) {
	if l == nil {
		return
	}
	l.log.Debug().
		Str("action", "notification_dispatched").
		Str("title", title).
		Int("recipients", recipients).
		Msg("Notification dispatched")
}

// NotificationDropped logs a push batch discarded by the dispatcher.
func (l *Logger) NotificationDropped(title string, reason string) {
	if l == nil {
		return
	}
	l.log.Warn().
		Str("action", "notification_dropped").
		Str("title", title).
		Str("reason", reason).
		Msg("Notification dropped")
}
