package api

import (
	"context"
	"fmt"

	"github.com/eggsregaco/regaco/internal/client/models"
)

// Notifications lists the user's notifications, newest first.
func (c *Client) Notifications(ctx context.Context) ([]models.Notification, error) {
	var out []models.Notification
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/notifications")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("fetch notifications: %w", err)
	}
	return out, nil
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	resp, err := c.http.R().SetContext(ctx).Patch("/notifications/" + id + "/read")
	if err := c.check(resp, err); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Patch("/notifications/read-all")
	if err := c.check(resp, err); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// RegisterPushSubscription mirrors a device push subscription to the server.
func (c *Client) RegisterPushSubscription(ctx context.Context, sub models.PushSubscriptionData) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sub).
		Post("/notifications/register-push-subscription")
	if err := c.check(resp, err); err != nil {
		return fmt.Errorf("register push subscription: %w", err)
	}
	return nil
}

// UnregisterPushSubscription removes a subscription by endpoint.
func (c *Client) UnregisterPushSubscription(ctx context.Context, endpoint string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"endpoint": endpoint}).
		Delete("/notifications/unregister-push-subscription")
	if err := c.check(resp, err); err != nil {
		return fmt.Errorf("unregister push subscription: %w", err)
	}
	return nil
}
