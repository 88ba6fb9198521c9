package api

import (
	"context"
	"fmt"
	"time"

	"github.com/eggsregaco/regaco/internal/client/models"
	"github.com/eggsregaco/regaco/internal/client/session"
)

type loginResponse struct {
	AccessToken string `json:"access_token"`
	Err         string `json:"error"`
}

// Login authenticates, then resolves the user via /auth/me and persists the
// session.
func (c *Client) Login(ctx context.Context, username, password string) (*models.User, error) {
	var out loginResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"username": username, "password": password}).
		SetResult(&out).
		Post("/auth/login")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if out.AccessToken == "" {
		code := out.Err
		if code == "" {
			code = "login_failed"
		}
		return nil, &Error{Status: resp.StatusCode(), Code: code}
	}

	// Store the token first so /auth/me is authenticated.
	if err := c.session.Save(ctx, &session.Session{Token: out.AccessToken}); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	user, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.session.Save(ctx, &session.Session{Token: out.AccessToken, User: user}); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return user, nil
}

// Register creates an account from an invite token and logs in.
func (c *Client) Register(ctx context.Context, inviteToken, username, name, phone, password string) (*models.User, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"invite_token": inviteToken,
			"username":     username,
			"name":         name,
			"phone":        phone,
			"password":     password,
		}).
		Post("/auth/register")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return c.Login(ctx, username, password)
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	resp, err := c.http.R().SetContext(ctx).SetResult(&user).Get("/auth/me")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	return &user, nil
}

type inviteValidation struct {
	Valid     bool      `json:"valid"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ValidateInvite checks an invite token before registration.
func (c *Client) ValidateInvite(ctx context.Context, token string) (bool, time.Time, error) {
	var out inviteValidation
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/auth/validate-invite/" + token)
	if err := c.check(resp, err); err != nil {
		return false, time.Time{}, fmt.Errorf("validate invite: %w", err)
	}
	return out.Valid, out.ExpiresAt, nil
}

// UpdateUsername renames the authenticated user and refreshes the session.
func (c *Client) UpdateUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"username": username}).
		SetResult(&user).
		Patch("/users/me")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("update username: %w", err)
	}

	if cur := c.session.Current(ctx); cur != nil {
		_ = c.session.Save(ctx, &session.Session{Token: cur.Token, User: &user})
	}
	return &user, nil
}
