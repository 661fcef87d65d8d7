package domain

import "time"

// Unassigned is the sentinel assignee id for tickets nobody owns. Assignment
// transitions always pass through this value, never a null state.
const Unassigned int64 = -1

// Profile is the public identity snapshot embedded in tickets and notes.
type Profile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Message is one threaded reply stored on a ticket.
type Message struct {
	ID       string    `json:"id"`
	AuthorID int64     `json:"author_id"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// Ticket is one unit of support work raised against a team at a live event.
type Ticket struct {
	ID           string     `json:"id"`
	EventCode    string     `json:"event_code"`
	Team         int        `json:"team"`
	Subject      string     `json:"subject"`
	Body         string     `json:"body"`
	AuthorID     int64      `json:"author_id"`
	Author       Profile    `json:"author"`
	AssignedToID int64      `json:"assigned_to_id"`
	Open         bool       `json:"is_open"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	Followers    []int64    `json:"followers"`
	Messages     []Message  `json:"messages"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsFollower reports whether the user has opted into updates for this ticket.
func (t Ticket) IsFollower(userID int64) bool {
	for _, follower := range t.Followers {
		if follower == userID {
			return true
		}
	}
	return false
}

// withoutFollower returns the follower set minus one user, preserving order.
func withoutFollower(followers []int64, userID int64) []int64 {
	result := make([]int64, 0, len(followers))
	for _, follower := range followers {
		if follower != userID {
			result = append(result, follower)
		}
	}
	return result
}
