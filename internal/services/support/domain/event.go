package domain

import "time"

// Event is one live competition identified by a short code. Clients hold an
// opaque access token; the pin gates on-site sign-in. Not to be confused with
// TicketEvent, which is a single lifecycle broadcast on the event's bus.
type Event struct {
	Code      string    `json:"code"`
	Token     string    `json:"token"`
	Pin       string    `json:"pin"`
	CreatedAt time.Time `json:"created_at"`
}

// PushSubscription is one registered browser push endpoint for a user.
type PushSubscription struct {
	UserID         int64      `json:"user_id"`
	Endpoint       string     `json:"endpoint"`
	KeyP256DH      string     `json:"p256dh"`
	KeyAuth        string     `json:"auth"`
	ExpirationTime *time.Time `json:"expiration_time,omitempty"`
}
