package domain

import "time"

// Note is a free-form observation about a team at an event. Notes are plain
// records: they never publish lifecycle events or trigger notifications.
type Note struct {
	ID        string    `json:"id"`
	EventCode string    `json:"event_code"`
	Team      int       `json:"team"`
	AuthorID  int64     `json:"author_id"`
	Author    Profile   `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
