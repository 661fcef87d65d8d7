package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/fieldops/pitsignal/internal/platform/errors"
	"github.com/fieldops/pitsignal/internal/services/support/domain"
	"github.com/fieldops/pitsignal/internal/services/support/storage"
)

// domainStoreAdapter maps between domain types and storage records, and
// translates storage sentinels into coded domain errors. It backs the ticket
// service, the note service, the event registry, and the notifier.
type domainStoreAdapter struct {
	events  storage.EventStore
	users   storage.UserStore
	tickets storage.TicketStore
	notes   storage.NoteStore
	push    storage.PushSubscriptionStore
	clock   func() time.Time
}

func newDomainStoreAdapter(events storage.EventStore, users storage.UserStore, tickets storage.TicketStore, notes storage.NoteStore, push storage.PushSubscriptionStore, clock func() time.Time) *domainStoreAdapter {
	if clock == nil {
		clock = time.Now
	}
	return &domainStoreAdapter{
		events:  events,
		users:   users,
		tickets: tickets,
		notes:   notes,
		push:    push,
		clock:   clock,
	}
}

func (a *domainStoreAdapter) GetEventByCode(ctx context.Context, code string) (domain.Event, error) {
	record, err := a.events.GetEventByCode(ctx, code)
	if err != nil {
		return domain.Event{}, mapEventError(err)
	}
	return toDomainEvent(record), nil
}

func (a *domainStoreAdapter) GetEventByToken(ctx context.Context, token string) (domain.Event, error) {
	record, err := a.events.GetEventByToken(ctx, token)
	if err != nil {
		return domain.Event{}, mapEventError(err)
	}
	return toDomainEvent(record), nil
}

func (a *domainStoreAdapter) PutEvent(ctx context.Context, event domain.Event) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = a.clock().UTC()
	}
	return a.events.PutEvent(ctx, storage.EventRecord{
		Code:      event.Code,
		Token:     event.Token,
		Pin:       event.Pin,
		CreatedAt: createdAt,
	})
}

func (a *domainStoreAdapter) GetUserProfile(ctx context.Context, userID int64) (domain.Profile, error) {
	record, err := a.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Profile{}, apperrors.New(apperrors.CodeUserNotFound, "user not found")
		}
		return domain.Profile{}, err
	}
	return domain.Profile{ID: record.ID, Username: record.Username, Role: record.Role}, nil
}

func (a *domainStoreAdapter) PutUser(ctx context.Context, eventCode string, profile domain.Profile) error {
	return a.users.PutUser(ctx, storage.UserRecord{
		ID:        profile.ID,
		EventCode: eventCode,
		Username:  profile.Username,
		Role:      profile.Role,
		CreatedAt: a.clock().UTC(),
	})
}

func (a *domainStoreAdapter) ListEventUserIDs(ctx context.Context, code string) ([]int64, error) {
	return a.users.ListUserIDsByEvent(ctx, code)
}

func (a *domainStoreAdapter) InsertTicket(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error) {
	record, err := toStorageTicket(ticket)
	if err != nil {
		return domain.Ticket{}, err
	}
	if err := a.tickets.InsertTicket(ctx, record); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return domain.Ticket{}, apperrors.Wrap(apperrors.CodeStorageWrite, "ticket already exists", err)
		}
		return domain.Ticket{}, apperrors.Wrap(apperrors.CodeStorageWrite, "insert ticket", err)
	}
	return ticket, nil
}

func (a *domainStoreAdapter) GetTicket(ctx context.Context, ticketID string) (domain.Ticket, error) {
	record, err := a.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return domain.Ticket{}, mapTicketError(err)
	}
	return toDomainTicket(record)
}

func (a *domainStoreAdapter) ListTickets(ctx context.Context, code string) ([]domain.Ticket, error) {
	return a.mapTicketList(a.tickets.ListTickets(ctx, code))
}

func (a *domainStoreAdapter) ListTicketsByAuthor(ctx context.Context, code string, authorID int64) ([]domain.Ticket, error) {
	return a.mapTicketList(a.tickets.ListTicketsByAuthor(ctx, code, authorID))
}

func (a *domainStoreAdapter) ListTicketsByTeam(ctx context.Context, code string, team int) ([]domain.Ticket, error) {
	return a.mapTicketList(a.tickets.ListTicketsByTeam(ctx, code, team))
}

func (a *domainStoreAdapter) ListTicketsByAssignee(ctx context.Context, code string, assigneeID int64) ([]domain.Ticket, error) {
	return a.mapTicketList(a.tickets.ListTicketsByAssignee(ctx, code, assigneeID))
}

func (a *domainStoreAdapter) ListTicketsByStatus(ctx context.Context, code string, open bool) ([]domain.Ticket, error) {
	return a.mapTicketList(a.tickets.ListTicketsByStatus(ctx, code, open))
}

func (a *domainStoreAdapter) UpdateTicketStatus(ctx context.Context, ticketID string, open bool, closedAt *time.Time) (domain.Ticket, error) {
	record, err := a.tickets.UpdateTicketStatus(ctx, ticketID, open, closedAt, a.clock().UTC())
	if err != nil {
		return domain.Ticket{}, mapTicketError(err)
	}
	return toDomainTicket(record)
}

func (a *domainStoreAdapter) UpdateTicketAssignment(ctx context.Context, ticketID string, assigneeID int64) (domain.Ticket, error) {
	record, err := a.tickets.UpdateTicketAssignment(ctx, ticketID, assigneeID, a.clock().UTC())
	if err != nil {
		return domain.Ticket{}, mapTicketError(err)
	}
	return toDomainTicket(record)
}

func (a *domainStoreAdapter) UpdateTicketFollowers(ctx context.Context, ticketID string, followers []int64) (domain.Ticket, error) {
	if followers == nil {
		followers = []int64{}
	}
	followersJSON, err := json.Marshal(followers)
	if err != nil {
		return domain.Ticket{}, apperrors.Wrap(apperrors.CodeStorageWrite, "encode followers", err)
	}
	record, err := a.tickets.UpdateTicketFollowers(ctx, ticketID, string(followersJSON), a.clock().UTC())
	if err != nil {
		return domain.Ticket{}, mapTicketError(err)
	}
	return toDomainTicket(record)
}

func (a *domainStoreAdapter) UpdateTicketSubject(ctx context.Context, ticketID string, subject string) (domain.Ticket, error) {
	record, err := a.tickets.UpdateTicketSubject(ctx, ticketID, subject, a.clock().UTC())
	if err != nil {
		return domain.Ticket{}, mapTicketError(err)
	}
	return toDomainTicket(record)
}

func (a *domainStoreAdapter) UpdateTicketBody(ctx context.Context, ticketID string, body string) (domain.Ticket, error) {
	record, err := a.tickets.UpdateTicketBody(ctx, ticketID, body, a.clock().UTC())
	if err != nil {
		return domain.Ticket{}, mapTicketError(err)
	}
	return toDomainTicket(record)
}

func (a *domainStoreAdapter) DeleteTicket(ctx context.Context, ticketID string) error {
	if err := a.tickets.DeleteTicket(ctx, ticketID); err != nil {
		return mapTicketError(err)
	}
	return nil
}

func (a *domainStoreAdapter) InsertNote(ctx context.Context, note domain.Note) (domain.Note, error) {
	record, err := toStorageNote(note)
	if err != nil {
		return domain.Note{}, err
	}
	if err := a.notes.InsertNote(ctx, record); err != nil {
		return domain.Note{}, apperrors.Wrap(apperrors.CodeStorageWrite, "insert note", err)
	}
	return note, nil
}

func (a *domainStoreAdapter) GetNote(ctx context.Context, noteID string) (domain.Note, error) {
	record, err := a.notes.GetNote(ctx, noteID)
	if err != nil {
		return domain.Note{}, mapNoteError(err)
	}
	return toDomainNote(record)
}

func (a *domainStoreAdapter) ListNotes(ctx context.Context, code string) ([]domain.Note, error) {
	return a.mapNoteList(a.notes.ListNotes(ctx, code))
}

func (a *domainStoreAdapter) ListNotesByAuthor(ctx context.Context, code string, authorID int64) ([]domain.Note, error) {
	return a.mapNoteList(a.notes.ListNotesByAuthor(ctx, code, authorID))
}

func (a *domainStoreAdapter) ListNotesByTeam(ctx context.Context, code string, team int) ([]domain.Note, error) {
	return a.mapNoteList(a.notes.ListNotesByTeam(ctx, code, team))
}

func (a *domainStoreAdapter) UpdateNoteBody(ctx context.Context, noteID string, body string) (domain.Note, error) {
	record, err := a.notes.UpdateNoteBody(ctx, noteID, body, a.clock().UTC())
	if err != nil {
		return domain.Note{}, mapNoteError(err)
	}
	return toDomainNote(record)
}

func (a *domainStoreAdapter) DeleteNote(ctx context.Context, noteID string) error {
	if err := a.notes.DeleteNote(ctx, noteID); err != nil {
		return mapNoteError(err)
	}
	return nil
}

func (a *domainStoreAdapter) PutPushSubscription(ctx context.Context, subscription domain.PushSubscription) error {
	return a.push.PutPushSubscription(ctx, storage.PushSubscriptionRecord{
		UserID:         subscription.UserID,
		Endpoint:       subscription.Endpoint,
		KeyP256DH:      subscription.KeyP256DH,
		KeyAuth:        subscription.KeyAuth,
		ExpirationTime: subscription.ExpirationTime,
		CreatedAt:      a.clock().UTC(),
	})
}

func (a *domainStoreAdapter) ListPushSubscriptions(ctx context.Context, userIDs []int64) ([]domain.PushSubscription, error) {
	records, err := a.push.ListPushSubscriptionsByUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	subscriptions := make([]domain.PushSubscription, 0, len(records))
	for _, record := range records {
		subscriptions = append(subscriptions, domain.PushSubscription{
			UserID:         record.UserID,
			Endpoint:       record.Endpoint,
			KeyP256DH:      record.KeyP256DH,
			KeyAuth:        record.KeyAuth,
			ExpirationTime: record.ExpirationTime,
		})
	}
	return subscriptions, nil
}

func (a *domainStoreAdapter) DeletePushSubscription(ctx context.Context, userID int64, endpoint string) error {
	if err := a.push.DeletePushSubscription(ctx, userID, endpoint); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.Wrap(apperrors.CodeSubscriptionNotFound, "push subscription not found", err)
		}
		return err
	}
	return nil
}

func (a *domainStoreAdapter) mapTicketList(records []storage.TicketRecord, err error) ([]domain.Ticket, error) {
	if err != nil {
		return nil, err
	}
	tickets := make([]domain.Ticket, 0, len(records))
	for _, record := range records {
		ticket, mapErr := toDomainTicket(record)
		if mapErr != nil {
			return nil, mapErr
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func (a *domainStoreAdapter) mapNoteList(records []storage.NoteRecord, err error) ([]domain.Note, error) {
	if err != nil {
		return nil, err
	}
	notes := make([]domain.Note, 0, len(records))
	for _, record := range records {
		note, mapErr := toDomainNote(record)
		if mapErr != nil {
			return nil, mapErr
		}
		notes = append(notes, note)
	}
	return notes, nil
}

func toDomainEvent(record storage.EventRecord) domain.Event {
	return domain.Event{
		Code:      record.Code,
		Token:     record.Token,
		Pin:       record.Pin,
		CreatedAt: record.CreatedAt,
	}
}

func toStorageTicket(ticket domain.Ticket) (storage.TicketRecord, error) {
	authorJSON, err := json.Marshal(ticket.Author)
	if err != nil {
		return storage.TicketRecord{}, apperrors.Wrap(apperrors.CodeStorageWrite, "encode ticket author", err)
	}
	followers := ticket.Followers
	if followers == nil {
		followers = []int64{}
	}
	followersJSON, err := json.Marshal(followers)
	if err != nil {
		return storage.TicketRecord{}, apperrors.Wrap(apperrors.CodeStorageWrite, "encode ticket followers", err)
	}
	messages := ticket.Messages
	if messages == nil {
		messages = []domain.Message{}
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return storage.TicketRecord{}, apperrors.Wrap(apperrors.CodeStorageWrite, "encode ticket messages", err)
	}
	return storage.TicketRecord{
		ID:            ticket.ID,
		EventCode:     ticket.EventCode,
		Team:          ticket.Team,
		Subject:       ticket.Subject,
		Body:          ticket.Body,
		AuthorID:      ticket.AuthorID,
		AuthorJSON:    string(authorJSON),
		AssignedToID:  ticket.AssignedToID,
		Open:          ticket.Open,
		ClosedAt:      ticket.ClosedAt,
		FollowersJSON: string(followersJSON),
		MessagesJSON:  string(messagesJSON),
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
	}, nil
}

func toDomainTicket(record storage.TicketRecord) (domain.Ticket, error) {
	var author domain.Profile
	if record.AuthorJSON != "" {
		if err := json.Unmarshal([]byte(record.AuthorJSON), &author); err != nil {
			return domain.Ticket{}, fmt.Errorf("decode ticket author: %w", err)
		}
	}
	followers := []int64{}
	if record.FollowersJSON != "" {
		if err := json.Unmarshal([]byte(record.FollowersJSON), &followers); err != nil {
			return domain.Ticket{}, fmt.Errorf("decode ticket followers: %w", err)
		}
	}
	messages := []domain.Message{}
	if record.MessagesJSON != "" {
		if err := json.Unmarshal([]byte(record.MessagesJSON), &messages); err != nil {
			return domain.Ticket{}, fmt.Errorf("decode ticket messages: %w", err)
		}
	}
	return domain.Ticket{
		ID:           record.ID,
		EventCode:    record.EventCode,
		Team:         record.Team,
		Subject:      record.Subject,
		Body:         record.Body,
		AuthorID:     record.AuthorID,
		Author:       author,
		AssignedToID: record.AssignedToID,
		Open:         record.Open,
		ClosedAt:     record.ClosedAt,
		Followers:    followers,
		Messages:     messages,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}, nil
}

func toStorageNote(note domain.Note) (storage.NoteRecord, error) {
	authorJSON, err := json.Marshal(note.Author)
	if err != nil {
		return storage.NoteRecord{}, apperrors.Wrap(apperrors.CodeStorageWrite, "encode note author", err)
	}
	return storage.NoteRecord{
		ID:         note.ID,
		EventCode:  note.EventCode,
		Team:       note.Team,
		AuthorID:   note.AuthorID,
		AuthorJSON: string(authorJSON),
		Body:       note.Body,
		CreatedAt:  note.CreatedAt,
		UpdatedAt:  note.UpdatedAt,
	}, nil
}

func toDomainNote(record storage.NoteRecord) (domain.Note, error) {
	var author domain.Profile
	if record.AuthorJSON != "" {
		if err := json.Unmarshal([]byte(record.AuthorJSON), &author); err != nil {
			return domain.Note{}, fmt.Errorf("decode note author: %w", err)
		}
	}
	return domain.Note{
		ID:        record.ID,
		EventCode: record.EventCode,
		Team:      record.Team,
		AuthorID:  record.AuthorID,
		Author:    author,
		Body:      record.Body,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

func mapEventError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.New(apperrors.CodeEventNotFound, "event not found")
	}
	return err
}

func mapTicketError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.New(apperrors.CodeTicketNotFound, "ticket not found")
	}
	return err
}

func mapNoteError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.New(apperrors.CodeNoteNotFound, "note not found")
	}
	return err
}
