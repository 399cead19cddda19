// Package queue carries auth events to RabbitMQ and turns them into an
// append-only audit log on the consuming side.
package queue

import "time"

// Event types published by the auth flows.
const (
	EventRegistered  = "user.registered"
	EventLoggedIn    = "user.logged_in"
	EventLoggedOut   = "user.logged_out"
	EventLoginFailed = "user.login_failed"
)

// AuthEvent is published after an auth flow completes.  It never carries
// passwords, hashes or tokens.
type AuthEvent struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id,omitempty"`
	Email      string `json:"email,omitempty"`
	IP         string `json:"ip,omitempty"`
	Reason     string `json:"reason,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// NewAuthEvent stamps an event with the current UTC time.
func NewAuthEvent(typ, userID, email, ip string) AuthEvent {
	return AuthEvent{
		Type:       typ,
		UserID:     userID,
		Email:      email,
		IP:         ip,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
}
