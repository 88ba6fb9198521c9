package models

import "time"

// InviteLink is a registration invite. The backend keys invites by token,
// so the token doubles as the id.
type InviteLink struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	MaxUses   int       `json:"maxUses"`
	Uses      int       `json:"uses"`
	Used      bool      `json:"used"`
}
