package models

import "time"

// Notification types emitted by the server.
const (
	NotifDeltaDetected = "delta_detected"
	NotifUserConfirmed = "user_confirmed"
	NotifUserReversed  = "user_reversed"
	NotifReminder      = "reminder"
)

type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	EventID   string    `json:"eventId,omitempty"`
	Read      bool      `json:"read"`
	Timestamp time.Time `json:"timestamp"`
}
