package models

import (
	"strings"
	"time"
)

// Reversal-history actions.
const (
	ActionConfirmed = "confirmed"
	ActionReversed  = "reversed"
)

// EggEvent is one detected count change on a box. Server-assigned id;
// immutable once detected except for the verification fields and the
// reversal history, which only grows.
type EggEvent struct {
	ID               string          `json:"id"`
	BoxID            string          `json:"boxId"`
	BeforeCount      int             `json:"beforeCount"`
	AfterCount       int             `json:"afterCount"`
	Delta            int             `json:"delta"`
	BeforeImageURL   string          `json:"beforeImageUrl"`
	AfterImageURL    string          `json:"afterImageUrl"`
	Timestamp        time.Time       `json:"timestamp"`
	ConfirmedBy      string          `json:"confirmedBy,omitempty"`
	EggTakerVerified bool            `json:"eggTakerVerified"`
	ReversalHistory  []ReversalEntry `json:"reversalHistory"`
}

// ReversalEntry records one confirm/reverse action in an event's history.
type ReversalEntry struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Clone returns a deep copy, so optimistic mutations never alias the
// snapshot they may have to roll back to.
func (e *EggEvent) Clone() *EggEvent {
	if e == nil {
		return nil
	}
	c := *e
	c.ReversalHistory = make([]ReversalEntry, len(e.ReversalHistory))
	copy(c.ReversalHistory, e.ReversalHistory)
	return &c
}

// ConfirmedByUser reports whether user (by username, case-insensitive, or by
// id) is the recorded confirmer of the event.
func (e *EggEvent) ConfirmedByUser(u *User) bool {
	if e.ConfirmedBy == "" || u == nil {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(e.ConfirmedBy), strings.TrimSpace(u.Username)) {
		return true
	}
	return e.ConfirmedBy == u.ID
}

// TakerAction is one row of the server-side audit trail for confirm/mistake
// actions. Read-only on the client.
type TakerAction struct {
	EventID   string    `json:"event_id"`
	Action    string    `json:"action"`
	By        string    `json:"by"`
	Timestamp time.Time `json:"timestamp"`
	BoxID     string    `json:"box_id,omitempty"`
	Delta     int       `json:"delta,omitempty"`
}
