package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserSignedUp    EventType = "user_signed_up"
	EventUserLoggedIn    EventType = "user_logged_in"
	EventUserLoggedOut   EventType = "user_logged_out"
	EventPresenceExpired EventType = "presence_expired"
)

// Event represents an account activity event.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Username  string      `json:"username"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh id.
func NewEvent(eventType EventType, userID, username string, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Username:  username,
		Timestamp: at,
		Payload:   payload,
	}
}

// LoginPayload accompanies EventUserLoggedIn.
type LoginPayload struct {
	OnlineCount int `json:"online_count"`
}

// PresenceExpiredPayload accompanies EventPresenceExpired.
type PresenceExpiredPayload struct {
	LastActiveAt time.Time     `json:"last_active_at"`
	IdleFor      time.Duration `json:"idle_for"`
}
