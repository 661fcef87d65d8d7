// Package notify computes follower notification recipients for ticket
// lifecycle transitions and delivers push batches through a pluggable
// gateway. Delivery is fire-and-forget: a failed or dropped batch never
// affects the mutation that triggered it.
package notify

import (
	"context"
	"fmt"

	"github.com/fieldops/pitsignal/internal/services/support/domain"
	"github.com/rs/zerolog"
)

// UserSource lists the user population of an event.
type UserSource interface {
	ListEventUserIDs(ctx context.Context, code string) ([]int64, error)
}

// Sink accepts computed notification batches. *Dispatcher satisfies it.
type Sink interface {
	Enqueue(notification Notification) bool
}

// FollowerNotifier maps each ticket lifecycle transition to its recipient
// set: creation fans out to every event user except the author, status
// changes go to the ticket's followers, assignment goes to the new assignee
// unless they assigned themselves, and un-assignment notifies nobody.
type FollowerNotifier struct {
	users UserSource
	sink  Sink
	log   zerolog.Logger
}

// NewFollowerNotifier builds a notifier feeding batches into the sink.
func NewFollowerNotifier(users UserSource, sink Sink, log zerolog.Logger) *FollowerNotifier {
	return &FollowerNotifier{
		users: users,
		sink:  sink,
		log:   log,
	}
}

// NotifyTicketEvent implements domain.Notifier.
func (n *FollowerNotifier) NotifyTicketEvent(ctx context.Context, ev domain.TicketEvent, actor domain.Profile) {
	notification, err := n.build(ctx, ev, actor)
	if err != nil {
		n.log.Warn().
			Err(err).
			Str("kind", string(ev.Kind)).
			Str("ticket_id", ev.Ticket.ID).
			Msg("unable to compute notification recipients")
		return
	}
	if len(notification.Recipients) == 0 {
		return
	}
	n.sink.Enqueue(notification)
}

func (n *FollowerNotifier) build(ctx context.Context, ev domain.TicketEvent, actor domain.Profile) (Notification, error) {
	ticket := ev.Ticket
	page := "ticket/" + ticket.ID

	switch ev.Kind {
	case domain.KindCreate:
		userIDs, err := n.users.ListEventUserIDs(ctx, ticket.EventCode)
		if err != nil {
			return Notification{}, fmt.Errorf("list event users: %w", err)
		}
		recipients := make([]int64, 0, len(userIDs))
		for _, userID := range userIDs {
			if userID == actor.ID {
				continue
			}
			recipients = append(recipients, userID)
		}
		return Notification{
			Recipients: recipients,
			Payload: Payload{
				Title: fmt.Sprintf("New Ticket: Team %d", ticket.Team),
				Body:  ticket.Subject,
				Tag:   "Ticket Created",
				Page:  page,
			},
		}, nil

	case domain.KindStatus:
		status := "Closed"
		if ticket.Open {
			status = "Reopened"
		}
		return Notification{
			Recipients: append([]int64{}, ticket.Followers...),
			Payload: Payload{
				Title: fmt.Sprintf("Ticket #%s %s", ticket.ID, status),
				Body:  fmt.Sprintf("Team %d", ticket.Team),
				Tag:   "Ticket Update",
				Page:  page,
			},
		}, nil

	case domain.KindAssign:
		if ticket.AssignedToID == actor.ID {
			return Notification{}, nil
		}
		return Notification{
			Recipients: []int64{ticket.AssignedToID},
			Payload: Payload{
				Title: fmt.Sprintf("Ticket #%s Assigned to you", ticket.ID),
				Body:  fmt.Sprintf("You have been assigned to ticket #%s for team %d", ticket.ID, ticket.Team),
				Tag:   "Ticket Update",
				Page:  page,
			},
		}, nil

	case domain.KindUnassign:
		// Releasing a ticket notifies nobody.
		return Notification{}, nil
	}
	return Notification{}, nil
}
