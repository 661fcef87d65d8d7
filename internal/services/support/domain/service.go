package domain

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/fieldops/pitsignal/internal/platform/errors"
	"github.com/fieldops/pitsignal/internal/platform/id"
)

// Store is the persistence boundary for ticket lifecycle behavior.
type Store interface {
	GetEventByCode(ctx context.Context, code string) (Event, error)
	GetUserProfile(ctx context.Context, userID int64) (Profile, error)
	ListEventUserIDs(ctx context.Context, code string) ([]int64, error)

	InsertTicket(ctx context.Context, ticket Ticket) (Ticket, error)
	GetTicket(ctx context.Context, ticketID string) (Ticket, error)
	ListTickets(ctx context.Context, code string) ([]Ticket, error)
	ListTicketsByAuthor(ctx context.Context, code string, authorID int64) ([]Ticket, error)
	ListTicketsByTeam(ctx context.Context, code string, team int) ([]Ticket, error)
	ListTicketsByAssignee(ctx context.Context, code string, assigneeID int64) ([]Ticket, error)
	ListTicketsByStatus(ctx context.Context, code string, open bool) ([]Ticket, error)
	UpdateTicketStatus(ctx context.Context, ticketID string, open bool, closedAt *time.Time) (Ticket, error)
	UpdateTicketAssignment(ctx context.Context, ticketID string, assigneeID int64) (Ticket, error)
	UpdateTicketFollowers(ctx context.Context, ticketID string, followers []int64) (Ticket, error)
	UpdateTicketSubject(ctx context.Context, ticketID string, subject string) (Ticket, error)
	UpdateTicketBody(ctx context.Context, ticketID string, body string) (Ticket, error)
	DeleteTicket(ctx context.Context, ticketID string) error
}

// Service orchestrates ticket lifecycle behavior: CRUD against the store,
// lifecycle publication on the owning event's bus, and follower notification.
type Service struct {
	store     Store
	publisher Publisher
	notifier  Notifier
	clock     func() time.Time
	newID     func() (string, error)
}

// NewService constructs ticket domain use-cases. The publisher and notifier
// may be nil, in which case mutations persist without broadcasting.
func NewService(store Store, publisher Publisher, notifier Notifier, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store:     store,
		publisher: publisher,
		notifier:  notifier,
		clock:     clock,
		newID:     newID,
	}
}

// CreateTicketInput describes one new ticket request.
type CreateTicketInput struct {
	EventCode string
	Team      int
	Subject   string
	Body      string
	AuthorID  int64
}

// CreateTicket persists a new open, unassigned ticket and broadcasts its
// creation to the event's subscribers and users.
func (s *Service) CreateTicket(ctx context.Context, input CreateTicketInput) (Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return Ticket{}, apperrors.New(apperrors.CodeInvalidArgument, "ticket subject is required")
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return Ticket{}, apperrors.New(apperrors.CodeInvalidArgument, "ticket body is required")
	}
	if input.Team <= 0 {
		return Ticket{}, apperrors.New(apperrors.CodeInvalidArgument, "team number must be positive")
	}

	event, err := s.store.GetEventByCode(ctx, input.EventCode)
	if err != nil {
		return Ticket{}, err
	}
	author, err := s.store.GetUserProfile(ctx, input.AuthorID)
	if err != nil {
		return Ticket{}, err
	}

	ticketID, err := s.newID()
	if err != nil {
		return Ticket{}, apperrors.Wrap(apperrors.CodeStorageWrite, "generate ticket id", err)
	}
	now := s.nowUTC()
	ticket := Ticket{
		ID:           ticketID,
		EventCode:    event.Code,
		Team:         input.Team,
		Subject:      subject,
		Body:         body,
		AuthorID:     author.ID,
		Author:       author,
		AssignedToID: Unassigned,
		Open:         true,
		Followers:    []int64{},
		Messages:     []Message{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	inserted, err := s.store.InsertTicket(ctx, ticket)
	if err != nil {
		return Ticket{}, err
	}

	s.broadcast(ctx, TicketEvent{Kind: KindCreate, Ticket: inserted}, author)
	return inserted, nil
}

// GetTicket loads one ticket scoped to an event code.
func (s *Service) GetTicket(ctx context.Context, ticketID string, eventCode string) (Ticket, error) {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return Ticket{}, err
	}
	if ticket.EventCode != eventCode {
		return Ticket{}, apperrors.New(apperrors.CodeTicketNotFound, "ticket not found in event")
	}
	return ticket, nil
}

// ListTickets returns every ticket for an event, oldest first.
func (s *Service) ListTickets(ctx context.Context, eventCode string) ([]Ticket, error) {
	return s.store.ListTickets(ctx, eventCode)
}

// ListTicketsByAuthor returns an author's tickets for an event, oldest first.
func (s *Service) ListTicketsByAuthor(ctx context.Context, eventCode string, authorID int64) ([]Ticket, error) {
	return s.store.ListTicketsByAuthor(ctx, eventCode, authorID)
}

// ListTicketsByTeam returns a team's tickets for an event, oldest first.
func (s *Service) ListTicketsByTeam(ctx context.Context, eventCode string, team int) ([]Ticket, error) {
	return s.store.ListTicketsByTeam(ctx, eventCode, team)
}

// ListTicketsByAssignee returns tickets assigned to one user, oldest first.
func (s *Service) ListTicketsByAssignee(ctx context.Context, eventCode string, assigneeID int64) ([]Ticket, error) {
	return s.store.ListTicketsByAssignee(ctx, eventCode, assigneeID)
}

// ListUnassignedTickets returns tickets nobody owns, oldest first.
func (s *Service) ListUnassignedTickets(ctx context.Context, eventCode string) ([]Ticket, error) {
	return s.store.ListTicketsByAssignee(ctx, eventCode, Unassigned)
}

// ListOpenTickets returns open tickets for an event, oldest first.
func (s *Service) ListOpenTickets(ctx context.Context, eventCode string) ([]Ticket, error) {
	return s.store.ListTicketsByStatus(ctx, eventCode, true)
}

// ListClosedTickets returns closed tickets for an event, oldest first.
func (s *Service) ListClosedTickets(ctx context.Context, eventCode string) ([]Ticket, error) {
	return s.store.ListTicketsByStatus(ctx, eventCode, false)
}

// AuthorProfile resolves the author snapshot stored on one ticket.
func (s *Service) AuthorProfile(ctx context.Context, ticketID string, eventCode string) (Profile, error) {
	ticket, err := s.GetTicket(ctx, ticketID, eventCode)
	if err != nil {
		return Profile{}, err
	}
	return ticket.Author, nil
}

// AssigneeProfile resolves the current assignee of one ticket. Returns
// UserNotFound while the ticket is unassigned.
func (s *Service) AssigneeProfile(ctx context.Context, ticketID string, eventCode string) (Profile, error) {
	ticket, err := s.GetTicket(ctx, ticketID, eventCode)
	if err != nil {
		return Profile{}, err
	}
	if ticket.AssignedToID == Unassigned {
		return Profile{}, apperrors.New(apperrors.CodeUserNotFound, "ticket has no assignee")
	}
	return s.store.GetUserProfile(ctx, ticket.AssignedToID)
}

// UpdateStatusInput identifies one open/closed transition.
type UpdateStatusInput struct {
	TicketID  string
	EventCode string
	Open      bool
	ActorID   int64
}

// UpdateStatus closes or reopens a ticket and broadcasts the transition to
// subscribers and the ticket's followers.
func (s *Service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (Ticket, error) {
	ticket, err := s.GetTicket(ctx, input.TicketID, input.EventCode)
	if err != nil {
		return Ticket{}, err
	}

	var closedAt *time.Time
	if !input.Open {
		now := s.nowUTC()
		closedAt = &now
	}
	updated, err := s.store.UpdateTicketStatus(ctx, ticket.ID, input.Open, closedAt)
	if err != nil {
		return Ticket{}, err
	}

	actor := s.actorProfile(ctx, input.ActorID)
	s.broadcast(ctx, TicketEvent{Kind: KindStatus, Ticket: updated}, actor)
	return updated, nil
}

// AssignInput identifies one assignment transition. Assign false releases the
// ticket back to the unassigned sentinel.
type AssignInput struct {
	TicketID  string
	EventCode string
	UserID    int64
	Assign    bool
	ActorID   int64
}

// Assign sets or clears a ticket's assignee. Assigning a ticket already held
// by the same user, or releasing an unassigned ticket, fails without mutation.
func (s *Service) Assign(ctx context.Context, input AssignInput) (Ticket, error) {
	ticket, err := s.GetTicket(ctx, input.TicketID, input.EventCode)
	if err != nil {
		return Ticket{}, err
	}

	if input.Assign {
		if ticket.AssignedToID == input.UserID {
			return Ticket{}, apperrors.New(apperrors.CodeTicketAlreadyAssigned, "user is already assigned to this ticket")
		}
		if _, err := s.store.GetUserProfile(ctx, input.UserID); err != nil {
			return Ticket{}, err
		}
	} else if ticket.AssignedToID == Unassigned {
		return Ticket{}, apperrors.New(apperrors.CodeTicketNotAssigned, "no user currently assigned to this ticket")
	}

	assigneeID := Unassigned
	kind := KindUnassign
	if input.Assign {
		assigneeID = input.UserID
		kind = KindAssign
	}
	updated, err := s.store.UpdateTicketAssignment(ctx, ticket.ID, assigneeID)
	if err != nil {
		return Ticket{}, err
	}

	actor := s.actorProfile(ctx, input.ActorID)
	s.broadcast(ctx, TicketEvent{Kind: kind, Ticket: updated}, actor)
	return updated, nil
}

// EditSubject replaces a ticket's subject line.
func (s *Service) EditSubject(ctx context.Context, ticketID string, eventCode string, subject string) (Ticket, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return Ticket{}, apperrors.New(apperrors.CodeInvalidArgument, "ticket subject is required")
	}
	ticket, err := s.GetTicket(ctx, ticketID, eventCode)
	if err != nil {
		return Ticket{}, err
	}
	return s.store.UpdateTicketSubject(ctx, ticket.ID, subject)
}

// EditBody replaces a ticket's free-text body.
func (s *Service) EditBody(ctx context.Context, ticketID string, eventCode string, body string) (Ticket, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Ticket{}, apperrors.New(apperrors.CodeInvalidArgument, "ticket body is required")
	}
	ticket, err := s.GetTicket(ctx, ticketID, eventCode)
	if err != nil {
		return Ticket{}, err
	}
	return s.store.UpdateTicketBody(ctx, ticket.ID, body)
}

// Follow adds a user to a ticket's follower set. Following a ticket the user
// already follows fails and performs no mutation.
func (s *Service) Follow(ctx context.Context, ticketID string, userID int64) (Ticket, error) {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return Ticket{}, err
	}
	if ticket.IsFollower(userID) {
		return Ticket{}, apperrors.New(apperrors.CodeTicketAlreadyFollowed, "user is already following this ticket")
	}
	followers := append(append([]int64{}, ticket.Followers...), userID)
	return s.store.UpdateTicketFollowers(ctx, ticket.ID, followers)
}

// Unfollow removes a user from a ticket's follower set. Unfollowing a ticket
// the user does not follow fails and performs no mutation.
func (s *Service) Unfollow(ctx context.Context, ticketID string, userID int64) (Ticket, error) {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return Ticket{}, err
	}
	if !ticket.IsFollower(userID) {
		return Ticket{}, apperrors.New(apperrors.CodeTicketNotFollowed, "user is not following this ticket")
	}
	return s.store.UpdateTicketFollowers(ctx, ticket.ID, withoutFollower(ticket.Followers, userID))
}

// DeleteTicket removes a ticket. Open tickets with recorded messages are kept.
func (s *Service) DeleteTicket(ctx context.Context, ticketID string) error {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.Open && len(ticket.Messages) > 0 {
		return apperrors.New(apperrors.CodeTicketHasMessages, "unable to delete open ticket with linked messages")
	}
	return s.store.DeleteTicket(ctx, ticket.ID)
}

// broadcast publishes one lifecycle transition and triggers follower
// notification. Both paths are fire-and-forget relative to the mutation.
func (s *Service) broadcast(ctx context.Context, ev TicketEvent, actor Profile) {
	if s.publisher != nil {
		s.publisher.PublishTicketEvent(ctx, ev.Ticket.EventCode, ev)
	}
	if s.notifier != nil {
		s.notifier.NotifyTicketEvent(ctx, ev, actor)
	}
}

// actorProfile resolves the acting user's profile for notification decisions.
// A missing actor degrades to an empty profile rather than failing the
// mutation; the notifier treats id 0 as "no actor".
func (s *Service) actorProfile(ctx context.Context, actorID int64) Profile {
	profile, err := s.store.GetUserProfile(ctx, actorID)
	if err != nil {
		return Profile{ID: actorID}
	}
	return profile
}

func (s *Service) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
