package domain

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/fieldops/pitsignal/internal/platform/errors"
)

type fakeNoteStore struct {
	*fakeStore
	notes   map[string]Note
	order   []string
	deleted []string
}

func newFakeNoteStore() *fakeNoteStore {
	return &fakeNoteStore{
		fakeStore: newFakeStore(),
		notes:     make(map[string]Note),
	}
}

func (f *fakeNoteStore) InsertNote(_ context.Context, note Note) (Note, error) {
	f.notes[note.ID] = note
	f.order = append(f.order, note.ID)
	return note, nil
}

func (f *fakeNoteStore) GetNote(_ context.Context, noteID string) (Note, error) {
	note, ok := f.notes[noteID]
	if !ok {
		return Note{}, apperrors.New(apperrors.CodeNoteNotFound, "note not found")
	}
	return note, nil
}

func (f *fakeNoteStore) ListNotes(_ context.Context, code string) ([]Note, error) {
	var notes []Note
	for _, id := range f.order {
		note, ok := f.notes[id]
		if ok && note.EventCode == code {
			notes = append(notes, note)
		}
	}
	return notes, nil
}

func (f *fakeNoteStore) ListNotesByAuthor(ctx context.Context, code string, authorID int64) ([]Note, error) {
	notes, err := f.ListNotes(ctx, code)
	if err != nil {
		return nil, err
	}
	var filtered []Note
	for _, note := range notes {
		if note.AuthorID == authorID {
			filtered = append(filtered, note)
		}
	}
	return filtered, nil
}

func (f *fakeNoteStore) ListNotesByTeam(ctx context.Context, code string, team int) ([]Note, error) {
	notes, err := f.ListNotes(ctx, code)
	if err != nil {
		return nil, err
	}
	var filtered []Note
	for _, note := range notes {
		if note.Team == team {
			filtered = append(filtered, note)
		}
	}
	return filtered, nil
}

func (f *fakeNoteStore) UpdateNoteBody(ctx context.Context, noteID string, body string) (Note, error) {
	note, err := f.GetNote(ctx, noteID)
	if err != nil {
		return Note{}, err
	}
	note.Body = body
	f.notes[noteID] = note
	return note, nil
}

func (f *fakeNoteStore) DeleteNote(ctx context.Context, noteID string) error {
	if _, err := f.GetNote(ctx, noteID); err != nil {
		return err
	}
	delete(f.notes, noteID)
	f.deleted = append(f.deleted, noteID)
	return nil
}

func TestCreateNoteDefaults(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeNoteStore()
	seedStore(store.fakeStore)
	svc := NewNoteService(store, fixedClock(now), sequentialIDGenerator("note-1"))

	note, err := svc.CreateNote(context.Background(), CreateNoteInput{
		EventCode: "2026mock",
		Team:      12,
		Body:      "Pneumatics leak in the pit.",
		AuthorID:  2,
	})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if note.ID != "note-1" {
		t.Fatalf("unexpected note id %q", note.ID)
	}
	if note.Author.Username != "bob" {
		t.Fatalf("expected embedded author snapshot, got %+v", note.Author)
	}
	if !note.CreatedAt.Equal(now) || !note.UpdatedAt.Equal(now) {
		t.Fatalf("expected timestamps %v, got %v / %v", now, note.CreatedAt, note.UpdatedAt)
	}
}

func TestCreateNoteValidation(t *testing.T) {
	t.Parallel()

	store := newFakeNoteStore()
	seedStore(store.fakeStore)
	svc := NewNoteService(store, fixedClock(time.Now()), sequentialIDGenerator("note-1"))

	cases := []struct {
		name  string
		input CreateNoteInput
		code  apperrors.Code
	}{
		{"blank body", CreateNoteInput{EventCode: "2026mock", Team: 1, Body: " ", AuthorID: 1}, apperrors.CodeInvalidArgument},
		{"zero team", CreateNoteInput{EventCode: "2026mock", Team: 0, Body: "b", AuthorID: 1}, apperrors.CodeInvalidArgument},
		{"unknown event", CreateNoteInput{EventCode: "nope", Team: 1, Body: "b", AuthorID: 1}, apperrors.CodeEventNotFound},
		{"unknown author", CreateNoteInput{EventCode: "2026mock", Team: 1, Body: "b", AuthorID: 99}, apperrors.CodeUserNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateNote(context.Background(), tc.input)
			if !apperrors.IsCode(err, tc.code) {
				t.Fatalf("expected code %s, got %v", tc.code, err)
			}
		})
	}
}

func TestNoteListingAndScoping(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeNoteStore()
	seedStore(store.fakeStore)
	store.addEvent("2026other")
	svc := NewNoteService(store, fixedClock(now), sequentialIDGenerator("note-1", "note-2", "note-3"))

	for _, input := range []CreateNoteInput{
		{EventCode: "2026mock", Team: 12, Body: "first", AuthorID: 1},
		{EventCode: "2026mock", Team: 34, Body: "second", AuthorID: 2},
		{EventCode: "2026mock", Team: 12, Body: "third", AuthorID: 1},
	} {
		if _, err := svc.CreateNote(context.Background(), input); err != nil {
			t.Fatalf("create note: %v", err)
		}
	}

	all, err := svc.ListNotes(context.Background(), "2026mock")
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	if len(all) != 3 || all[0].Body != "first" || all[2].Body != "third" {
		t.Fatalf("expected insertion order, got %+v", all)
	}

	byTeam, err := svc.ListNotesByTeam(context.Background(), "2026mock", 12)
	if err != nil {
		t.Fatalf("list by team: %v", err)
	}
	if len(byTeam) != 2 {
		t.Fatalf("expected 2 notes for team 12, got %d", len(byTeam))
	}

	byAuthor, err := svc.ListNotesByAuthor(context.Background(), "2026mock", 2)
	if err != nil {
		t.Fatalf("list by author: %v", err)
	}
	if len(byAuthor) != 1 || byAuthor[0].Body != "second" {
		t.Fatalf("expected bob's note, got %+v", byAuthor)
	}

	if _, err := svc.GetNote(context.Background(), "note-1", "2026other"); !apperrors.IsCode(err, apperrors.CodeNoteNotFound) {
		t.Fatalf("expected NoteNotFound across events, got %v", err)
	}
}

func TestNoteEditAndDelete(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeNoteStore()
	seedStore(store.fakeStore)
	svc := NewNoteService(store, fixedClock(now), sequentialIDGenerator("note-1"))

	created, err := svc.CreateNote(context.Background(), CreateNoteInput{
		EventCode: "2026mock", Team: 12, Body: "draft", AuthorID: 1,
	})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}

	if _, err := svc.EditBody(context.Background(), created.ID, "2026mock", "  "); !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("expected InvalidArgument for blank body, got %v", err)
	}

	edited, err := svc.EditBody(context.Background(), created.ID, "2026mock", "final")
	if err != nil {
		t.Fatalf("edit body: %v", err)
	}
	if edited.Body != "final" {
		t.Fatalf("expected edited body, got %q", edited.Body)
	}

	if err := svc.DeleteNote(context.Background(), created.ID); err != nil {
		t.Fatalf("delete note: %v", err)
	}
	if err := svc.DeleteNote(context.Background(), created.ID); !apperrors.IsCode(err, apperrors.CodeNoteNotFound) {
		t.Fatalf("expected NoteNotFound on second delete, got %v", err)
	}
}
