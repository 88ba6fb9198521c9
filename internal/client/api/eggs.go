package api

import (
	"context"
	"fmt"
	"time"

	"github.com/eggsregaco/regaco/internal/client/models"
)

// HistoryFilter narrows a history query. Zero values mean "no filter".
type HistoryFilter struct {
	DateFrom time.Time
	DateTo   time.Time
	BoxID    string
}

// CurrentState fetches the latest box snapshot.
func (c *Client) CurrentState(ctx context.Context) (*models.EggState, error) {
	var state models.EggState
	resp, err := c.http.R().SetContext(ctx).SetResult(&state).Get("/eggs/current")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("fetch current state: %w", err)
	}
	c.rewriteState(&state)
	return &state, nil
}

// History fetches detected events, newest first.
func (c *Client) History(ctx context.Context, filter HistoryFilter) ([]models.EggEvent, error) {
	req := c.http.R().SetContext(ctx)
	if !filter.DateFrom.IsZero() {
		req.SetQueryParam("date_from", filter.DateFrom.Format(time.RFC3339))
	}
	if !filter.DateTo.IsZero() {
		req.SetQueryParam("date_to", filter.DateTo.Format(time.RFC3339))
	}
	if filter.BoxID != "" {
		req.SetQueryParam("box_id", filter.BoxID)
	}

	var events []models.EggEvent
	resp, err := req.SetResult(&events).Get("/eggs/history")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	for i := range events {
		c.rewriteEvent(&events[i])
	}
	return events, nil
}

// EventDetails fetches one event.
func (c *Client) EventDetails(ctx context.Context, eventID string) (*models.EggEvent, error) {
	var event models.EggEvent
	resp, err := c.http.R().SetContext(ctx).SetResult(&event).Get("/eggs/events/" + eventID)
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("fetch event %s: %w", eventID, err)
	}
	c.rewriteEvent(&event)
	return &event, nil
}

// ConfirmTaker claims responsibility for an event. The response is the
// server's authoritative event representation.
func (c *Client) ConfirmTaker(ctx context.Context, eventID string) (*models.EggEvent, error) {
	return c.postMutation(ctx, "/eggs/confirm-taker", eventID)
}

// MarkMistake flags the caller's own prior confirmation as erroneous.
func (c *Client) MarkMistake(ctx context.Context, eventID string) (*models.EggEvent, error) {
	return c.postMutation(ctx, "/eggs/mistake", eventID)
}

func (c *Client) postMutation(ctx context.Context, path, eventID string) (*models.EggEvent, error) {
	var event models.EggEvent
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"event_id": eventID}).
		SetResult(&event).
		Post(path)
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("mutate event %s: %w", eventID, err)
	}
	c.rewriteEvent(&event)
	return &event, nil
}

// UndoConfirmation reverses the caller's own confirmation.
func (c *Client) UndoConfirmation(ctx context.Context, eventID string) (*models.EggEvent, error) {
	var event models.EggEvent
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&event).
		Post("/eggs/events/" + eventID + "/undo")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("undo event %s: %w", eventID, err)
	}
	c.rewriteEvent(&event)
	return &event, nil
}

// DenyTaking signals "not me" without verifying anyone.
func (c *Client) DenyTaking(ctx context.Context, eventID string) error {
	resp, err := c.http.R().SetContext(ctx).Post("/eggs/events/" + eventID + "/deny")
	if err := c.check(resp, err); err != nil {
		return fmt.Errorf("deny event %s: %w", eventID, err)
	}
	return nil
}

// TakersHistory returns the audit trail of confirm/mistake actions for one
// event, oldest first.
func (c *Client) TakersHistory(ctx context.Context, eventID string) ([]models.TakerAction, error) {
	var actions []models.TakerAction
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("event_id", eventID).
		SetResult(&actions).
		Get("/eggs/takers-history")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("fetch takers history: %w", err)
	}
	return actions, nil
}

// Stats fetches the aggregate consumption figures.
func (c *Client) Stats(ctx context.Context) (*models.EggStats, error) {
	var stats models.EggStats
	resp, err := c.http.R().SetContext(ctx).SetResult(&stats).Get("/stats")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("fetch stats: %w", err)
	}
	return &stats, nil
}
