package cli

import (
	"context"
	"fmt"
	"time"
)

// Notifications lists server notifications. Subcommands: "read <id>" marks
// one as read, "read-all" marks everything.
func (a *App) Notifications(ctx context.Context, args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "read":
			if len(args) < 2 {
				printlnFn("Usage: notifications read <id>")
				return nil
			}
			return a.api.MarkNotificationRead(ctx, args[1])
		case "read-all":
			return a.api.MarkAllNotificationsRead(ctx)
		}
	}

	notifications, err := a.api.Notifications(ctx)
	if err != nil {
		return err
	}
	if len(notifications) == 0 {
		printlnFn("No notifications")
		return nil
	}
	for _, n := range notifications {
		marker := "*"
		if n.Read {
			marker = " "
		}
		printlnFn(fmt.Sprintf("%s %s  %s  %s: %s", marker, n.ID, n.Timestamp.Local().Format(time.RFC822), n.Title, n.Message))
	}
	return nil
}

// PushCmd manages the device push subscription. Subcommands: on, off,
// status (default).
func (a *App) PushCmd(ctx context.Context, args []string) error {
	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "on":
		created, err := a.push.Subscribe(ctx)
		if err != nil {
			return err
		}
		if created == nil {
			printlnFn("Push notifications are not available on this device")
			return nil
		}
		printlnFn("Push notifications enabled")
		return nil

	case "off":
		if err := a.push.Unsubscribe(ctx); err != nil {
			return err
		}
		printlnFn("Push notifications disabled")
		return nil

	default:
		current, err := a.push.Current(ctx)
		if err != nil {
			return err
		}
		if current == nil {
			printlnFn("Push: off (permission:", string(a.push.PermissionState(ctx))+")")
		} else {
			printlnFn("Push: on,", current.Endpoint)
		}
		return nil
	}
}
