package bus

import "github.com/fieldops/pitsignal/internal/services/support/domain"

// Background admits only ticket creation. It backs the always-on monitor
// surface that alerts staff to new work regardless of what they are viewing.
func Background() Predicate {
	return func(ev domain.TicketEvent) bool {
		return ev.Kind == domain.KindCreate
	}
}

// Foreground admits every lifecycle kind. It backs the main ticket list view.
func Foreground() Predicate {
	return func(ev domain.TicketEvent) bool {
		return true
	}
}

// TicketScoped admits assignment and status transitions for one ticket.
// Creation is excluded: a viewer can only scope to a ticket that exists.
func TicketScoped(ticketID string) Predicate {
	return func(ev domain.TicketEvent) bool {
		if ev.Kind != domain.KindAssign && ev.Kind != domain.KindStatus {
			return false
		}
		return ev.Ticket.ID == ticketID
	}
}

// TeamScoped admits creation, assignment, and status transitions for one
// team's tickets.
func TeamScoped(team int) Predicate {
	return func(ev domain.TicketEvent) bool {
		switch ev.Kind {
		case domain.KindCreate, domain.KindAssign, domain.KindStatus:
			return ev.Ticket.Team == team
		default:
			return false
		}
	}
}
