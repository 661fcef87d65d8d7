// Package sqlite provides SQLite-backed persistence for support state.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/fieldops/pitsignal/internal/platform/storage/sqlitemigrate"
	"github.com/fieldops/pitsignal/internal/services/support/storage"
	"github.com/fieldops/pitsignal/internal/services/support/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for events, users, tickets,
// notes, and push subscriptions.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a support SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) runMigrations() error {
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS, "")
}

func (s *Store) ready() error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// PutEvent upserts one event row.
func (s *Store) PutEvent(ctx context.Context, record storage.EventRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	record.Code = strings.TrimSpace(record.Code)
	record.Token = strings.TrimSpace(record.Token)
	if record.Code == "" {
		return fmt.Errorf("event code is required")
	}
	if record.Token == "" {
		return fmt.Errorf("event token is required")
	}
	if record.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO events (code, token, pin, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(code) DO UPDATE SET
	token = excluded.token,
	pin = excluded.pin
`, record.Code, record.Token, record.Pin, toMillis(record.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put event: %w", err)
	}
	return nil
}

// GetEventByCode loads one event by its public code.
func (s *Store) GetEventByCode(ctx context.Context, code string) (storage.EventRecord, error) {
	return s.getEvent(ctx, "code", strings.TrimSpace(code))
}

// GetEventByToken loads one event by its opaque access token.
func (s *Store) GetEventByToken(ctx context.Context, token string) (storage.EventRecord, error) {
	return s.getEvent(ctx, "token", strings.TrimSpace(token))
}

func (s *Store) getEvent(ctx context.Context, column string, value string) (storage.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.EventRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.EventRecord{}, err
	}
	if value == "" {
		return storage.EventRecord{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, fmt.Sprintf(`
SELECT code, token, pin, created_at
FROM events
WHERE %s = ?
`, column), value)

	var record storage.EventRecord
	var createdAt int64
	if err := row.Scan(&record.Code, &record.Token, &record.Pin, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.EventRecord{}, storage.ErrNotFound
		}
		return storage.EventRecord{}, fmt.Errorf("get event: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

// PutUser upserts one user row.
func (s *Store) PutUser(ctx context.Context, record storage.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	record.EventCode = strings.TrimSpace(record.EventCode)
	record.Username = strings.TrimSpace(record.Username)
	if record.ID <= 0 {
		return fmt.Errorf("user id must be positive")
	}
	if record.EventCode == "" {
		return fmt.Errorf("event code is required")
	}
	if record.Username == "" {
		return fmt.Errorf("username is required")
	}
	if record.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (id, event_code, username, role, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	event_code = excluded.event_code,
	username = excluded.username,
	role = excluded.role
`, record.ID, record.EventCode, record.Username, record.Role, toMillis(record.CreatedAt))
	if err != nil {
		if isForeignKeyConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser loads one user row by id.
func (s *Store) GetUser(ctx context.Context, userID int64) (storage.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.UserRecord{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, event_code, username, role, created_at
FROM users
WHERE id = ?
`, userID)

	var record storage.UserRecord
	var createdAt int64
	if err := row.Scan(&record.ID, &record.EventCode, &record.Username, &record.Role, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.UserRecord{}, storage.ErrNotFound
		}
		return storage.UserRecord{}, fmt.Errorf("get user: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

// ListUserIDsByEvent lists every user id registered for an event.
func (s *Store) ListUserIDsByEvent(ctx context.Context, code string) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("event code is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id
FROM users
WHERE event_code = ?
ORDER BY id ASC
`, code)
	if err != nil {
		return nil, fmt.Errorf("list event users: %w", err)
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan user id row: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user id rows: %w", err)
	}
	return userIDs, nil
}

const ticketColumns = `id, event_code, team, subject, body, author_id, author_json, assigned_to_id, is_open, closed_at, followers_json, messages_json, created_at, updated_at`

// InsertTicket persists one new ticket row.
func (s *Store) InsertTicket(ctx context.Context, record storage.TicketRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	normalized, err := normalizeTicketRecord(record)
	if err != nil {
		return err
	}

	var closedAt sql.NullInt64
	if normalized.ClosedAt != nil {
		closedAt = sql.NullInt64{Int64: toMillis(*normalized.ClosedAt), Valid: true}
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO tickets (`+ticketColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		normalized.ID,
		normalized.EventCode,
		normalized.Team,
		normalized.Subject,
		normalized.Body,
		normalized.AuthorID,
		normalized.AuthorJSON,
		normalized.AssignedToID,
		boolToInt(normalized.Open),
		closedAt,
		normalized.FollowersJSON,
		normalized.MessagesJSON,
		toMillis(normalized.CreatedAt),
		toMillis(normalized.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) || isForeignKeyConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

// GetTicket loads one ticket row by id.
func (s *Store) GetTicket(ctx context.Context, ticketID string) (storage.TicketRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.TicketRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.TicketRecord{}, err
	}
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return storage.TicketRecord{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+ticketColumns+`
FROM tickets
WHERE id = ?
`, ticketID)
	record, err := scanTicket(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.TicketRecord{}, storage.ErrNotFound
		}
		return storage.TicketRecord{}, fmt.Errorf("get ticket: %w", err)
	}
	return record, nil
}

// ListTickets lists every ticket for an event, oldest first.
func (s *Store) ListTickets(ctx context.Context, code string) ([]storage.TicketRecord, error) {
	return s.listTickets(ctx, `
SELECT `+ticketColumns+`
FROM tickets
WHERE event_code = ?
ORDER BY created_at ASC, id ASC
`, strings.TrimSpace(code))
}

// ListTicketsByAuthor lists an author's tickets for an event, oldest first.
func (s *Store) ListTicketsByAuthor(ctx context.Context, code string, authorID int64) ([]storage.TicketRecord, error) {
	return s.listTickets(ctx, `
SELECT `+ticketColumns+`
FROM tickets
WHERE event_code = ? AND author_id = ?
ORDER BY created_at ASC, id ASC
`, strings.TrimSpace(code), authorID)
}

// ListTicketsByTeam lists a team's tickets for an event, oldest first.
func (s *Store) ListTicketsByTeam(ctx context.Context, code string, team int) ([]storage.TicketRecord, error) {
	return s.listTickets(ctx, `
SELECT `+ticketColumns+`
FROM tickets
WHERE event_code = ? AND team = ?
ORDER BY created_at ASC, id ASC
`, strings.TrimSpace(code), team)
}

// ListTicketsByAssignee lists tickets held by one assignee, oldest first.
func (s *Store) ListTicketsByAssignee(ctx context.Context, code string, assigneeID int64) ([]storage.TicketRecord, error) {
	return s.listTickets(ctx, `
SELECT `+ticketColumns+`
FROM tickets
WHERE event_code = ? AND assigned_to_id = ?
ORDER BY created_at ASC, id ASC
`, strings.TrimSpace(code), assigneeID)
}

// ListTicketsByStatus lists open or closed tickets for an event, oldest first.
func (s *Store) ListTicketsByStatus(ctx context.Context, code string, open bool) ([]storage.TicketRecord, error) {
	return s.listTickets(ctx, `
SELECT `+ticketColumns+`
FROM tickets
WHERE event_code = ? AND is_open = ?
ORDER BY created_at ASC, id ASC
`, strings.TrimSpace(code), boolToInt(open))
}

func (s *Store) listTickets(ctx context.Context, query string, args ...any) ([]storage.TicketRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var records []storage.TicketRecord
	for rows.Next() {
		record, scanErr := scanTicket(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan ticket row: %w", scanErr)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticket rows: %w", err)
	}
	return records, nil
}

// UpdateTicketStatus sets a ticket's open state and closed timestamp.
func (s *Store) UpdateTicketStatus(ctx context.Context, ticketID string, open bool, closedAt *time.Time, updatedAt time.Time) (storage.TicketRecord, error) {
	var closed sql.NullInt64
	if closedAt != nil {
		closed = sql.NullInt64{Int64: toMillis(*closedAt), Valid: true}
	}
	return s.updateTicket(ctx, ticketID, `
UPDATE tickets
SET is_open = ?, closed_at = ?, updated_at = ?
WHERE id = ?
`, boolToInt(open), closed, toMillis(updatedAt), ticketID)
}

// UpdateTicketAssignment sets a ticket's assignee.
func (s *Store) UpdateTicketAssignment(ctx context.Context, ticketID string, assigneeID int64, updatedAt time.Time) (storage.TicketRecord, error) {
	return s.updateTicket(ctx, ticketID, `
UPDATE tickets
SET assigned_to_id = ?, updated_at = ?
WHERE id = ?
`, assigneeID, toMillis(updatedAt), ticketID)
}

// UpdateTicketFollowers replaces a ticket's follower set.
func (s *Store) UpdateTicketFollowers(ctx context.Context, ticketID string, followersJSON string, updatedAt time.Time) (storage.TicketRecord, error) {
	followersJSON = strings.TrimSpace(followersJSON)
	if followersJSON == "" {
		followersJSON = "[]"
	}
	return s.updateTicket(ctx, ticketID, `
UPDATE tickets
SET followers_json = ?, updated_at = ?
WHERE id = ?
`, followersJSON, toMillis(updatedAt), ticketID)
}

// UpdateTicketSubject replaces a ticket's subject line.
func (s *Store) UpdateTicketSubject(ctx context.Context, ticketID string, subject string, updatedAt time.Time) (storage.TicketRecord, error) {
	return s.updateTicket(ctx, ticketID, `
UPDATE tickets
SET subject = ?, updated_at = ?
WHERE id = ?
`, subject, toMillis(updatedAt), ticketID)
}

// UpdateTicketBody replaces a ticket's free-text body.
func (s *Store) UpdateTicketBody(ctx context.Context, ticketID string, body string, updatedAt time.Time) (storage.TicketRecord, error) {
	return s.updateTicket(ctx, ticketID, `
UPDATE tickets
SET body = ?, updated_at = ?
WHERE id = ?
`, body, toMillis(updatedAt), ticketID)
}

func (s *Store) updateTicket(ctx context.Context, ticketID string, query string, args ...any) (storage.TicketRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.TicketRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.TicketRecord{}, err
	}
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return storage.TicketRecord{}, storage.ErrNotFound
	}

	result, err := s.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return storage.TicketRecord{}, fmt.Errorf("update ticket: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.TicketRecord{}, fmt.Errorf("update ticket rows affected: %w", err)
	}
	if affected == 0 {
		return storage.TicketRecord{}, storage.ErrNotFound
	}
	return s.GetTicket(ctx, ticketID)
}

// DeleteTicket removes one ticket row.
func (s *Store) DeleteTicket(ctx context.Context, ticketID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return storage.ErrNotFound
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, ticketID)
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete ticket rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const noteColumns = `id, event_code, team, author_id, author_json, body, created_at, updated_at`

// InsertNote persists one new note row.
func (s *Store) InsertNote(ctx context.Context, record storage.NoteRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	record.ID = strings.TrimSpace(record.ID)
	record.EventCode = strings.TrimSpace(record.EventCode)
	if record.ID == "" {
		return fmt.Errorf("note id is required")
	}
	if record.EventCode == "" {
		return fmt.Errorf("event code is required")
	}
	if record.AuthorJSON == "" {
		record.AuthorJSON = "{}"
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		return fmt.Errorf("created_at and updated_at are required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO notes (`+noteColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.EventCode,
		record.Team,
		record.AuthorID,
		record.AuthorJSON,
		record.Body,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) || isForeignKeyConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

// GetNote loads one note row by id.
func (s *Store) GetNote(ctx context.Context, noteID string) (storage.NoteRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.NoteRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.NoteRecord{}, err
	}
	noteID = strings.TrimSpace(noteID)
	if noteID == "" {
		return storage.NoteRecord{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+noteColumns+`
FROM notes
WHERE id = ?
`, noteID)
	record, err := scanNote(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NoteRecord{}, storage.ErrNotFound
		}
		return storage.NoteRecord{}, fmt.Errorf("get note: %w", err)
	}
	return record, nil
}

// ListNotes lists every note for an event, oldest first.
func (s *Store) ListNotes(ctx context.Context, code string) ([]storage.NoteRecord, error) {
	return s.listNotes(ctx, `
SELECT `+noteColumns+`
FROM notes
WHERE event_code = ?
ORDER BY created_at ASC, id ASC
`, strings.TrimSpace(code))
}

// ListNotesByAuthor lists an author's notes for an event, oldest first.
func (s *Store) ListNotesByAuthor(ctx context.Context, code string, authorID int64) ([]storage.NoteRecord, error) {
	return s.listNotes(ctx, `
SELECT `+noteColumns+`
FROM notes
WHERE event_code = ? AND author_id = ?
ORDER BY created_at ASC, id ASC
`, strings.TrimSpace(code), authorID)
}

// ListNotesByTeam lists a team's notes for an event, oldest first.
func (s *Store) ListNotesByTeam(ctx context.Context, code string, team int) ([]storage.NoteRecord, error) {
	return s.listNotes(ctx, `
SELECT `+noteColumns+`
FROM notes
WHERE event_code = ? AND team = ?
ORDER BY created_at ASC, id ASC
`, strings.TrimSpace(code), team)
}

func (s *Store) listNotes(ctx context.Context, query string, args ...any) ([]storage.NoteRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var records []storage.NoteRecord
	for rows.Next() {
		record, scanErr := scanNote(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan note row: %w", scanErr)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate note rows: %w", err)
	}
	return records, nil
}

// UpdateNoteBody replaces a note's text.
func (s *Store) UpdateNoteBody(ctx context.Context, noteID string, body string, updatedAt time.Time) (storage.NoteRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.NoteRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.NoteRecord{}, err
	}
	noteID = strings.TrimSpace(noteID)
	if noteID == "" {
		return storage.NoteRecord{}, storage.ErrNotFound
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE notes
SET body = ?, updated_at = ?
WHERE id = ?
`, body, toMillis(updatedAt), noteID)
	if err != nil {
		return storage.NoteRecord{}, fmt.Errorf("update note body: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.NoteRecord{}, fmt.Errorf("update note rows affected: %w", err)
	}
	if affected == 0 {
		return storage.NoteRecord{}, storage.ErrNotFound
	}
	return s.GetNote(ctx, noteID)
}

// DeleteNote removes one note row.
func (s *Store) DeleteNote(ctx context.Context, noteID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	noteID = strings.TrimSpace(noteID)
	if noteID == "" {
		return storage.ErrNotFound
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, noteID)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PutPushSubscription upserts one push endpoint row.
func (s *Store) PutPushSubscription(ctx context.Context, record storage.PushSubscriptionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	record.Endpoint = strings.TrimSpace(record.Endpoint)
	if record.UserID <= 0 {
		return fmt.Errorf("user id must be positive")
	}
	if record.Endpoint == "" {
		return fmt.Errorf("push endpoint is required")
	}
	if record.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}

	var expiration sql.NullInt64
	if record.ExpirationTime != nil {
		expiration = sql.NullInt64{Int64: toMillis(*record.ExpirationTime), Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, expiration_time, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id, endpoint) DO UPDATE SET
	p256dh = excluded.p256dh,
	auth = excluded.auth,
	expiration_time = excluded.expiration_time
`, record.UserID, record.Endpoint, record.KeyP256DH, record.KeyAuth, expiration, toMillis(record.CreatedAt))
	if err != nil {
		return fmt.Errorf("put push subscription: %w", err)
	}
	return nil
}

// ListPushSubscriptionsByUsers lists every push endpoint registered by the
// given users. An empty user set returns no rows.
func (s *Store) ListPushSubscriptionsByUsers(ctx context.Context, userIDs []int64) ([]storage.PushSubscriptionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(userIDs)), ",")
	args := make([]any, 0, len(userIDs))
	for _, userID := range userIDs {
		args = append(args, userID)
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT user_id, endpoint, p256dh, auth, expiration_time, created_at
FROM push_subscriptions
WHERE user_id IN (`+placeholders+`)
ORDER BY user_id ASC, endpoint ASC
`, args...)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var records []storage.PushSubscriptionRecord
	for rows.Next() {
		var record storage.PushSubscriptionRecord
		var expiration sql.NullInt64
		var createdAt int64
		if err := rows.Scan(&record.UserID, &record.Endpoint, &record.KeyP256DH, &record.KeyAuth, &expiration, &createdAt); err != nil {
			return nil, fmt.Errorf("scan push subscription row: %w", err)
		}
		if expiration.Valid {
			value := fromMillis(expiration.Int64)
			record.ExpirationTime = &value
		}
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate push subscription rows: %w", err)
	}
	return records, nil
}

// DeletePushSubscription removes one push endpoint row.
func (s *Store) DeletePushSubscription(ctx context.Context, userID int64, endpoint string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return storage.ErrNotFound
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM push_subscriptions
WHERE user_id = ? AND endpoint = ?
`, userID, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete push subscription rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type scanner func(dest ...any) error

func normalizeTicketRecord(record storage.TicketRecord) (storage.TicketRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.EventCode = strings.TrimSpace(record.EventCode)
	if record.ID == "" {
		return storage.TicketRecord{}, fmt.Errorf("ticket id is required")
	}
	if record.EventCode == "" {
		return storage.TicketRecord{}, fmt.Errorf("event code is required")
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		return storage.TicketRecord{}, fmt.Errorf("created_at and updated_at are required")
	}
	if record.AuthorJSON == "" {
		record.AuthorJSON = "{}"
	}
	if record.FollowersJSON == "" {
		record.FollowersJSON = "[]"
	}
	if record.MessagesJSON == "" {
		record.MessagesJSON = "[]"
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	if record.ClosedAt != nil {
		closedAt := record.ClosedAt.UTC()
		record.ClosedAt = &closedAt
	}
	return record, nil
}

func scanTicket(scan scanner) (storage.TicketRecord, error) {
	var record storage.TicketRecord
	var open int
	var closedAt sql.NullInt64
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&record.ID,
		&record.EventCode,
		&record.Team,
		&record.Subject,
		&record.Body,
		&record.AuthorID,
		&record.AuthorJSON,
		&record.AssignedToID,
		&open,
		&closedAt,
		&record.FollowersJSON,
		&record.MessagesJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.TicketRecord{}, err
	}
	record.Open = open != 0
	if closedAt.Valid {
		value := fromMillis(closedAt.Int64)
		record.ClosedAt = &value
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func scanNote(scan scanner) (storage.NoteRecord, error) {
	var record storage.NoteRecord
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&record.ID,
		&record.EventCode,
		&record.Team,
		&record.AuthorID,
		&record.AuthorJSON,
		&record.Body,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.NoteRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}

func isForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "foreign key constraint failed")
}
