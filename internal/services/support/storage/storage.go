package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a requested write conflicts with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
)

// EventRecord stores one live event and its access credentials.
type EventRecord struct {
	Code      string
	Token     string
	Pin       string
	CreatedAt time.Time
}

// UserRecord stores one registered user scoped to an event.
type UserRecord struct {
	ID        int64
	EventCode string
	Username  string
	Role      string
	CreatedAt time.Time
}

// TicketRecord stores one support ticket row. Author, followers, and inline
// messages are persisted as JSON columns, matching how the service reads the
// whole ticket back in one row.
type TicketRecord struct {
	ID            string
	EventCode     string
	Team          int
	Subject       string
	Body          string
	AuthorID      int64
	AuthorJSON    string
	AssignedToID  int64
	Open          bool
	ClosedAt      *time.Time
	FollowersJSON string
	MessagesJSON  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NoteRecord stores one team note row.
type NoteRecord struct {
	ID         string
	EventCode  string
	Team       int
	AuthorID   int64
	AuthorJSON string
	Body       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PushSubscriptionRecord stores one registered browser push endpoint.
type PushSubscriptionRecord struct {
	UserID         int64
	Endpoint       string
	KeyP256DH      string
	KeyAuth        string
	ExpirationTime *time.Time
	CreatedAt      time.Time
}

// EventStore persists events and resolves access credentials.
type EventStore interface {
	PutEvent(ctx context.Context, record EventRecord) error
	GetEventByCode(ctx context.Context, code string) (EventRecord, error)
	GetEventByToken(ctx context.Context, token string) (EventRecord, error)
}

// UserStore persists event-scoped user profiles.
type UserStore interface {
	PutUser(ctx context.Context, record UserRecord) error
	GetUser(ctx context.Context, userID int64) (UserRecord, error)
	ListUserIDsByEvent(ctx context.Context, code string) ([]int64, error)
}

// TicketStore persists ticket rows and their filtered listings.
type TicketStore interface {
	InsertTicket(ctx context.Context, record TicketRecord) error
	GetTicket(ctx context.Context, ticketID string) (TicketRecord, error)
	ListTickets(ctx context.Context, code string) ([]TicketRecord, error)
	ListTicketsByAuthor(ctx context.Context, code string, authorID int64) ([]TicketRecord, error)
	ListTicketsByTeam(ctx context.Context, code string, team int) ([]TicketRecord, error)
	ListTicketsByAssignee(ctx context.Context, code string, assigneeID int64) ([]TicketRecord, error)
	ListTicketsByStatus(ctx context.Context, code string, open bool) ([]TicketRecord, error)
	UpdateTicketStatus(ctx context.Context, ticketID string, open bool, closedAt *time.Time, updatedAt time.Time) (TicketRecord, error)
	UpdateTicketAssignment(ctx context.Context, ticketID string, assigneeID int64, updatedAt time.Time) (TicketRecord, error)
	UpdateTicketFollowers(ctx context.Context, ticketID string, followersJSON string, updatedAt time.Time) (TicketRecord, error)
	UpdateTicketSubject(ctx context.Context, ticketID string, subject string, updatedAt time.Time) (TicketRecord, error)
	UpdateTicketBody(ctx context.Context, ticketID string, body string, updatedAt time.Time) (TicketRecord, error)
	DeleteTicket(ctx context.Context, ticketID string) error
}

// NoteStore persists team note rows.
type NoteStore interface {
	InsertNote(ctx context.Context, record NoteRecord) error
	GetNote(ctx context.Context, noteID string) (NoteRecord, error)
	ListNotes(ctx context.Context, code string) ([]NoteRecord, error)
	ListNotesByAuthor(ctx context.Context, code string, authorID int64) ([]NoteRecord, error)
	ListNotesByTeam(ctx context.Context, code string, team int) ([]NoteRecord, error)
	UpdateNoteBody(ctx context.Context, noteID string, body string, updatedAt time.Time) (NoteRecord, error)
	DeleteNote(ctx context.Context, noteID string) error
}

// PushSubscriptionStore persists browser push endpoints.
type PushSubscriptionStore interface {
	PutPushSubscription(ctx context.Context, record PushSubscriptionRecord) error
	ListPushSubscriptionsByUsers(ctx context.Context, userIDs []int64) ([]PushSubscriptionRecord, error)
	DeletePushSubscription(ctx context.Context, userID int64, endpoint string) error
}
