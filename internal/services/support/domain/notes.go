package domain

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/fieldops/pitsignal/internal/platform/errors"
	"github.com/fieldops/pitsignal/internal/platform/id"
)

// NoteStore is the persistence boundary for team notes.
type NoteStore interface {
	GetEventByCode(ctx context.Context, code string) (Event, error)
	GetUserProfile(ctx context.Context, userID int64) (Profile, error)

	InsertNote(ctx context.Context, note Note) (Note, error)
	GetNote(ctx context.Context, noteID string) (Note, error)
	ListNotes(ctx context.Context, code string) ([]Note, error)
	ListNotesByAuthor(ctx context.Context, code string, authorID int64) ([]Note, error)
	ListNotesByTeam(ctx context.Context, code string, team int) ([]Note, error)
	UpdateNoteBody(ctx context.Context, noteID string, body string) (Note, error)
	DeleteNote(ctx context.Context, noteID string) error
}

// NoteService provides team note CRUD for one event.
type NoteService struct {
	store NoteStore
	clock func() time.Time
	newID func() (string, error)
}

// NewNoteService constructs note use-cases.
func NewNoteService(store NoteStore, clock func() time.Time, newID func() (string, error)) *NoteService {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &NoteService{
		store: store,
		clock: clock,
		newID: newID,
	}
}

// CreateNoteInput describes one new note request.
type CreateNoteInput struct {
	EventCode string
	Team      int
	Body      string
	AuthorID  int64
}

// CreateNote persists a new team note.
func (s *NoteService) CreateNote(ctx context.Context, input CreateNoteInput) (Note, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return Note{}, apperrors.New(apperrors.CodeInvalidArgument, "note body is required")
	}
	if input.Team <= 0 {
		return Note{}, apperrors.New(apperrors.CodeInvalidArgument, "team number must be positive")
	}

	event, err := s.store.GetEventByCode(ctx, input.EventCode)
	if err != nil {
		return Note{}, err
	}
	author, err := s.store.GetUserProfile(ctx, input.AuthorID)
	if err != nil {
		return Note{}, err
	}

	noteID, err := s.newID()
	if err != nil {
		return Note{}, apperrors.Wrap(apperrors.CodeStorageWrite, "generate note id", err)
	}
	now := s.clock().UTC()
	note := Note{
		ID:        noteID,
		EventCode: event.Code,
		Team:      input.Team,
		AuthorID:  author.ID,
		Author:    author,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.store.InsertNote(ctx, note)
}

// GetNote loads one note scoped to an event code.
func (s *NoteService) GetNote(ctx context.Context, noteID string, eventCode string) (Note, error) {
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return Note{}, err
	}
	if note.EventCode != eventCode {
		return Note{}, apperrors.New(apperrors.CodeNoteNotFound, "note not found in event")
	}
	return note, nil
}

// ListNotes returns every note for an event, oldest first.
func (s *NoteService) ListNotes(ctx context.Context, eventCode string) ([]Note, error) {
	return s.store.ListNotes(ctx, eventCode)
}

// ListNotesByAuthor returns an author's notes for an event, oldest first.
func (s *NoteService) ListNotesByAuthor(ctx context.Context, eventCode string, authorID int64) ([]Note, error) {
	return s.store.ListNotesByAuthor(ctx, eventCode, authorID)
}

// ListNotesByTeam returns a team's notes for an event, oldest first.
func (s *NoteService) ListNotesByTeam(ctx context.Context, eventCode string, team int) ([]Note, error) {
	return s.store.ListNotesByTeam(ctx, eventCode, team)
}

// EditBody replaces a note's text.
func (s *NoteService) EditBody(ctx context.Context, noteID string, eventCode string, body string) (Note, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Note{}, apperrors.New(apperrors.CodeInvalidArgument, "note body is required")
	}
	note, err := s.GetNote(ctx, noteID, eventCode)
	if err != nil {
		return Note{}, err
	}
	return s.store.UpdateNoteBody(ctx, note.ID, body)
}

// DeleteNote removes a note.
func (s *NoteService) DeleteNote(ctx context.Context, noteID string) error {
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return err
	}
	return s.store.DeleteNote(ctx, note.ID)
}
