package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/eggsregaco/regaco/internal/client/api"
	"github.com/eggsregaco/regaco/internal/client/models"
	"github.com/eggsregaco/regaco/internal/client/workflow"
)

// State prints the current egg count, marking a cached (possibly stale)
// answer.
func (a *App) State(ctx context.Context) error {
	state, fromCache, err := a.workflow.CurrentState(ctx)
	if err != nil {
		return err
	}
	suffix := ""
	if fromCache {
		suffix = " (cached)"
	}
	printlnFn(fmt.Sprintf("Box %s: %d eggs (was %d)%s", state.BoxID, state.CurrentCount, state.PreviousCount, suffix))
	if !state.LastUpdated.IsZero() {
		printlnFn("Last updated:", state.LastUpdated.Local().Format(time.RFC822))
	}
	return nil
}

// History lists recent egg events. Optional args: a box id, and/or a day
// count like "7d" to bound the range.
func (a *App) History(ctx context.Context, args []string) error {
	filter := api.HistoryFilter{}
	for _, arg := range args {
		if strings.HasSuffix(arg, "d") {
			var days int
			if _, err := fmt.Sscanf(arg, "%dd", &days); err == nil {
				filter.DateFrom = time.Now().AddDate(0, 0, -days)
				continue
			}
		}
		filter.BoxID = arg
	}

	events, fromCache, err := a.workflow.History(ctx, filter)
	if err != nil {
		return err
	}
	if fromCache {
		printlnFn("(offline, showing cached history)")
	}
	if len(events) == 0 {
		printlnFn("No events")
		return nil
	}
	for _, e := range events {
		printlnFn(formatEvent(&e))
	}
	return nil
}

// Show prints the full detail of one event, including its reversal history.
func (a *App) Show(ctx context.Context, args []string) error {
	id, err := a.eventID(args)
	if err != nil {
		return err
	}
	event, fromCache, err := a.workflow.EventDetail(ctx, id)
	if err != nil {
		return err
	}
	if fromCache {
		printlnFn("(offline, showing cached event)")
	}
	printlnFn(formatEvent(event))
	for _, r := range event.ReversalHistory {
		printlnFn(fmt.Sprintf("  %s %s by %s", r.Timestamp.Local().Format(time.RFC822), r.Action, r.Username))
	}
	return nil
}

// Confirm claims an event for the logged-in user.
func (a *App) Confirm(ctx context.Context, args []string) error {
	id, err := a.eventID(args)
	if err != nil {
		return err
	}
	event, err := a.workflow.Confirm(ctx, id)
	if err != nil {
		return err
	}
	printlnFn("Confirmed:", formatEvent(event))
	return nil
}

// Undo releases the logged-in user's claim on an event.
func (a *App) Undo(ctx context.Context, args []string) error {
	id, err := a.eventID(args)
	if err != nil {
		return err
	}
	event, err := a.workflow.Undo(ctx, id)
	if err != nil {
		return err
	}
	printlnFn("Confirmation removed:", formatEvent(event))
	return nil
}

// Mistake flags a confirmed event as taken by mistake.
func (a *App) Mistake(ctx context.Context, args []string) error {
	id, err := a.eventID(args)
	if err != nil {
		return err
	}
	event, err := a.workflow.MarkMistake(ctx, id)
	if err != nil {
		return err
	}
	printlnFn("Marked as mistake:", formatEvent(event))
	return nil
}

// Deny records that the logged-in user declines an event.
func (a *App) Deny(ctx context.Context, args []string) error {
	id, err := a.eventID(args)
	if err != nil {
		return err
	}
	if err := a.workflow.Deny(ctx, id); err != nil {
		return err
	}
	printlnFn("Denied")
	return nil
}

// Stats prints the consumption aggregates.
func (a *App) Stats(ctx context.Context) error {
	stats, err := a.api.Stats(ctx)
	if err != nil {
		return err
	}
	printlnFn("Total consumed:", stats.TotalConsumed)
	for _, uc := range stats.EggsPerUser {
		printlnFn(fmt.Sprintf("  %-16s %d", uc.Username, uc.Count))
	}
	if stats.Prediction != nil {
		printlnFn("Predicted next week:", stats.Prediction.NextWeek)
	}
	return nil
}

func (a *App) eventID(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return getSimpleText(a.reader, "Enter event id", os.Stdout)
}

func formatEvent(e *models.EggEvent) string {
	state := "unconfirmed"
	if workflow.StateOf(e) == workflow.StateConfirmed {
		state = "confirmed by " + e.ConfirmedBy
	}
	return fmt.Sprintf("%s  %s  box %s  %+d eggs (%d -> %d)  [%s]",
		e.ID, e.Timestamp.Local().Format("2006-01-02 15:04"), e.BoxID, e.Delta, e.BeforeCount, e.AfterCount, state)
}
