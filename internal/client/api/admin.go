package api

import (
	"context"
	"fmt"
	"time"

	"github.com/eggsregaco/regaco/internal/client/models"
)

// inviteDTO is the backend's wire shape; invites are keyed by token.
type inviteDTO struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	MaxUses   int       `json:"max_uses"`
	Uses      int       `json:"uses"`
}

func (d inviteDTO) normalize() models.InviteLink {
	return models.InviteLink{
		ID:        d.Token,
		Token:     d.Token,
		ExpiresAt: d.ExpiresAt,
		MaxUses:   d.MaxUses,
		Uses:      d.Uses,
		Used:      d.Used,
	}
}

// CreateInvite generates a new invite link (admin only).
func (c *Client) CreateInvite(ctx context.Context, maxUses, expiresHours int) (*models.InviteLink, error) {
	var dto inviteDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]int{"max_uses": maxUses, "expires_hours": expiresHours}).
		SetResult(&dto).
		Post("/admin/invite/create")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("create invite: %w", err)
	}
	inv := dto.normalize()
	return &inv, nil
}

// Invites lists outstanding invites (admin only).
func (c *Client) Invites(ctx context.Context) ([]models.InviteLink, error) {
	var dtos []inviteDTO
	resp, err := c.http.R().SetContext(ctx).SetResult(&dtos).Get("/admin/invites")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	invites := make([]models.InviteLink, 0, len(dtos))
	for _, d := range dtos {
		invites = append(invites, d.normalize())
	}
	return invites, nil
}

// RevokeInvite deletes an invite (admin only).
func (c *Client) RevokeInvite(ctx context.Context, id string) error {
	resp, err := c.http.R().SetContext(ctx).Delete("/admin/invites/" + id)
	if err := c.check(resp, err); err != nil {
		return fmt.Errorf("revoke invite: %w", err)
	}
	return nil
}

// Users lists household members (admin only).
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	resp, err := c.http.R().SetContext(ctx).SetResult(&users).Get("/admin/users")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// DeleteUser removes a household member (admin only).
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	resp, err := c.http.R().SetContext(ctx).Delete("/admin/users/" + id)
	if err := c.check(resp, err); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// ResetBox starts a fresh box (admin only).
func (c *Client) ResetBox(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Post("/admin/reset-box")
	if err := c.check(resp, err); err != nil {
		return fmt.Errorf("reset box: %w", err)
	}
	return nil
}
