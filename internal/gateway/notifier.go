package gateway

import (
	"context"
	"os/exec"

	"github.com/eggsregaco/regaco/internal/logging"
)

// LogNotifier renders notifications into the gateway log. It is the default
// for headless runs; a desktop embedding replaces it with a real displayer.
type LogNotifier struct {
	Log logging.Logger
}

func (n LogNotifier) Show(ctx context.Context, notification Notification) error {
	n.Log.Info(ctx, "notification",
		"id", notification.ID,
		"title", notification.Title,
		"body", notification.Body,
		"tag", notification.Tag,
		"event_id", notification.EventID,
	)
	return nil
}

func (n LogNotifier) Close(ctx context.Context, id string) error {
	n.Log.Debug(ctx, "notification closed", "id", id)
	return nil
}

// BrowserWindows opens click targets in the system browser. It cannot
// enumerate or focus existing windows, so every click opens a fresh one.
type BrowserWindows struct {
	BaseURL string
	Log     logging.Logger
}

func (b BrowserWindows) Windows(context.Context) []WindowClient { return nil }

func (b BrowserWindows) Open(ctx context.Context, target string) error {
	url := b.BaseURL + target
	cmd := exec.CommandContext(ctx, "xdg-open", url)
	if err := cmd.Start(); err != nil {
		b.Log.Warn(ctx, "opening browser", "error", err, "url", url)
		return err
	}
	return nil
}
