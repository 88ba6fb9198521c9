package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/eggsregaco/regaco/internal/client/api"
	"github.com/eggsregaco/regaco/internal/client/cache"
	"github.com/eggsregaco/regaco/internal/client/models"
	"github.com/eggsregaco/regaco/internal/client/session"
	"github.com/eggsregaco/regaco/internal/common"
	"github.com/eggsregaco/regaco/internal/logging"
)

// State is the confirmation state of an egg event.
type State string

const (
	// StateUnverified covers fresh and mistake-flagged events. Both are
	// actionable by any taker.
	StateUnverified State = "unverified"
	// StateConfirmed means a taker has claimed the event and the claim
	// stands.
	StateConfirmed State = "confirmed"
)

// StateOf derives the confirmation state from the event fields.
func StateOf(e *models.EggEvent) State {
	if e != nil && e.EggTakerVerified && e.ConfirmedBy != "" {
		return StateConfirmed
	}
	return StateUnverified
}

// API is the remote surface the workflow drives. *api.Client satisfies it.
type API interface {
	EventDetails(ctx context.Context, eventID string) (*models.EggEvent, error)
	ConfirmTaker(ctx context.Context, eventID string) (*models.EggEvent, error)
	UndoConfirmation(ctx context.Context, eventID string) (*models.EggEvent, error)
	MarkMistake(ctx context.Context, eventID string) (*models.EggEvent, error)
	DenyTaking(ctx context.Context, eventID string) error
	CurrentState(ctx context.Context) (*models.EggState, error)
	History(ctx context.Context, filter api.HistoryFilter) ([]models.EggEvent, error)
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithTerminalDeny makes a denied event permanently unconfirmable on this
// device. By default a deny only dismisses the prompt and the event stays
// actionable.
func WithTerminalDeny() Option {
	return func(w *Workflow) { w.denyTerminal = true }
}

// Workflow coordinates confirmation actions on egg events. All writes go
// through optimistic mutations against the local cache, then resolve against
// the server. Operations on the same event are serialized so two concurrent
// actions cannot interleave their apply and rollback phases.
type Workflow struct {
	api          API
	cache        *cache.Store
	session      *session.Store
	log          logging.Logger
	denyTerminal bool

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(remote API, store *cache.Store, sess *session.Store, log logging.Logger, opts ...Option) *Workflow {
	w := &Workflow{
		api:     remote,
		cache:   store,
		session: sess,
		log:     log,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// lockEvent acquires the per-event mutex and returns its release func.
func (w *Workflow) lockEvent(eventID string) func() {
	w.mu.Lock()
	l, ok := w.locks[eventID]
	if !ok {
		l = &sync.Mutex{}
		w.locks[eventID] = l
	}
	w.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Confirm claims the event for the current user. The claim is applied
// optimistically and rolled back if the server rejects it.
func (w *Workflow) Confirm(ctx context.Context, eventID string) (*models.EggEvent, error) {
	unlock := w.lockEvent(eventID)
	defer unlock()

	user := w.session.User(ctx)
	if user == nil {
		return nil, common.ErrUnauthorized
	}

	event, cached, err := w.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if StateOf(event) == StateConfirmed {
		return nil, fmt.Errorf("%w: event %s is already confirmed by %s", common.ErrAlreadyVerified, eventID, event.ConfirmedBy)
	}
	if w.denyTerminal {
		denied, err := w.isDenied(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if denied {
			return nil, fmt.Errorf("%w: event %s", common.ErrEventDenied, eventID)
		}
	}

	optimistic := event.Clone()
	optimistic.ConfirmedBy = user.Username
	optimistic.EggTakerVerified = true
	optimistic.ReversalHistory = append(optimistic.ReversalHistory, models.ReversalEntry{
		UserID:    user.ID,
		Username:  user.Username,
		Action:    models.ActionConfirmed,
		Timestamp: time.Now().UTC(),
	})

	m := NewMutation(w.cache.Events, eventID, snapshotOf(event, cached))
	if err := m.Apply(ctx, optimistic); err != nil {
		return nil, err
	}

	server, err := w.api.ConfirmTaker(ctx, eventID)
	if err != nil {
		w.rollback(ctx, m, eventID)
		return nil, w.translate("confirm", err)
	}
	if err := m.Commit(ctx, server); err != nil {
		w.log.Error(ctx, "committing confirmed event", "error", err, "event_id", eventID)
	}
	w.refreshAggregates(ctx)
	return server, nil
}

// Undo releases the current user's claim on the event. Only the user who
// confirmed the event may undo it.
func (w *Workflow) Undo(ctx context.Context, eventID string) (*models.EggEvent, error) {
	return w.release(ctx, eventID, "undo", w.api.UndoConfirmation)
}

// MarkMistake flags a confirmed event as taken by mistake, clearing the
// claim so the event becomes actionable again. Only the confirming user may
// flag it.
func (w *Workflow) MarkMistake(ctx context.Context, eventID string) (*models.EggEvent, error) {
	return w.release(ctx, eventID, "mark as mistake", w.api.MarkMistake)
}

func (w *Workflow) release(ctx context.Context, eventID, op string, call func(context.Context, string) (*models.EggEvent, error)) (*models.EggEvent, error) {
	unlock := w.lockEvent(eventID)
	defer unlock()

	user := w.session.User(ctx)
	if user == nil {
		return nil, common.ErrUnauthorized
	}

	event, cached, err := w.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if StateOf(event) != StateConfirmed {
		return nil, fmt.Errorf("%w: event %s has no confirmation to %s", common.ErrNotVerified, eventID, op)
	}
	if !event.ConfirmedByUser(user) {
		return nil, fmt.Errorf("%w: event %s was confirmed by %s", common.ErrPermissionDenied, eventID, event.ConfirmedBy)
	}

	optimistic := event.Clone()
	optimistic.ConfirmedBy = ""
	optimistic.EggTakerVerified = false
	optimistic.ReversalHistory = append(optimistic.ReversalHistory, models.ReversalEntry{
		UserID:    user.ID,
		Username:  user.Username,
		Action:    models.ActionReversed,
		Timestamp: time.Now().UTC(),
	})

	m := NewMutation(w.cache.Events, eventID, snapshotOf(event, cached))
	if err := m.Apply(ctx, optimistic); err != nil {
		return nil, err
	}

	server, err := call(ctx, eventID)
	if err != nil {
		w.rollback(ctx, m, eventID)
		return nil, w.translate(op, err)
	}
	if err := m.Commit(ctx, server); err != nil {
		w.log.Error(ctx, "committing released event", "error", err, "event_id", eventID)
	}
	w.refreshAggregates(ctx)
	return server, nil
}

// Deny records that the current user declines the event. The event itself is
// not modified; with terminal deny enabled a local marker blocks later
// confirmation attempts from this device.
func (w *Workflow) Deny(ctx context.Context, eventID string) error {
	unlock := w.lockEvent(eventID)
	defer unlock()

	user := w.session.User(ctx)
	if user == nil {
		return common.ErrUnauthorized
	}

	event, _, err := w.loadEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if StateOf(event) == StateConfirmed {
		return fmt.Errorf("%w: event %s is already confirmed", common.ErrAlreadyVerified, eventID)
	}

	if err := w.api.DenyTaking(ctx, eventID); err != nil {
		return w.translate("deny", err)
	}
	if w.denyTerminal {
		if err := w.cache.KV.Set(ctx, deniedKey(eventID), []byte("1")); err != nil {
			w.log.Error(ctx, "recording deny marker", "error", err, "event_id", eventID)
		}
	}
	return nil
}

// CurrentState returns the latest egg state, falling back to the cached copy
// when the server is unreachable. The second return value reports whether the
// result came from the cache.
func (w *Workflow) CurrentState(ctx context.Context) (*models.EggState, bool, error) {
	state, err := w.api.CurrentState(ctx)
	if err != nil {
		if errors.Is(err, common.ErrUnavailable) {
			cached, cerr := w.cache.EggState.Get(ctx)
			if cerr == nil && cached != nil {
				return cached, true, nil
			}
		}
		return nil, false, err
	}
	if err := w.cache.EggState.Save(ctx, state); err != nil {
		w.log.Error(ctx, "caching egg state", "error", err)
	}
	return state, false, nil
}

// History returns egg events matching the filter, newest first, falling back
// to cached events when the server is unreachable.
func (w *Workflow) History(ctx context.Context, filter api.HistoryFilter) ([]models.EggEvent, bool, error) {
	events, err := w.api.History(ctx, filter)
	if err != nil {
		if errors.Is(err, common.ErrUnavailable) {
			cached, cerr := w.cachedHistory(ctx, filter)
			if cerr == nil {
				return cached, true, nil
			}
		}
		return nil, false, err
	}
	if err := w.cache.Events.PutAll(ctx, events); err != nil {
		w.log.Error(ctx, "caching event history", "error", err)
	}
	return events, false, nil
}

// EventDetail returns a single event, preferring the server and falling back
// to the cache when offline.
func (w *Workflow) EventDetail(ctx context.Context, eventID string) (*models.EggEvent, bool, error) {
	event, err := w.api.EventDetails(ctx, eventID)
	if err != nil {
		if errors.Is(err, common.ErrUnavailable) {
			cached, cerr := w.cache.Events.Get(ctx, eventID)
			if cerr == nil && cached != nil {
				return cached, true, nil
			}
		}
		return nil, false, w.translate("load", err)
	}
	if err := w.cache.Events.Put(ctx, event); err != nil {
		w.log.Error(ctx, "caching event", "error", err, "event_id", eventID)
	}
	w.cacheEventImages(ctx, event)
	return event, false, nil
}

func (w *Workflow) cachedHistory(ctx context.Context, filter api.HistoryFilter) ([]models.EggEvent, error) {
	var events []models.EggEvent
	var err error
	if filter.BoxID != "" {
		events, err = w.cache.Events.ListByBox(ctx, filter.BoxID)
	} else {
		events, err = w.cache.Events.ListByTimestamp(ctx)
	}
	if err != nil {
		return nil, err
	}
	if filter.DateFrom.IsZero() && filter.DateTo.IsZero() {
		return events, nil
	}
	filtered := events[:0]
	for _, e := range events {
		if !filter.DateFrom.IsZero() && e.Timestamp.Before(filter.DateFrom) {
			continue
		}
		if !filter.DateTo.IsZero() && e.Timestamp.After(filter.DateTo) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered, nil
}

// loadEvent prefers the cached copy and reaches for the server only when the
// event is unknown locally. The bool reports whether the event was cached.
func (w *Workflow) loadEvent(ctx context.Context, eventID string) (*models.EggEvent, bool, error) {
	cached, err := w.cache.Events.Get(ctx, eventID)
	if err != nil {
		return nil, false, err
	}
	if cached != nil {
		return cached, true, nil
	}
	event, err := w.api.EventDetails(ctx, eventID)
	if err != nil {
		return nil, false, w.translate("load", err)
	}
	return event, false, nil
}

func (w *Workflow) cacheEventImages(ctx context.Context, e *models.EggEvent) {
	for suffix, url := range map[string]string{"before": e.BeforeImageURL, "after": e.AfterImageURL} {
		if url == "" {
			continue
		}
		img := cache.ProcessedImage{
			ID:        e.ID + "-" + suffix,
			URL:       url,
			EventID:   e.ID,
			Timestamp: e.Timestamp,
		}
		if err := w.cache.Images.Put(ctx, img); err != nil {
			w.log.Error(ctx, "caching event image", "error", err, "event_id", e.ID)
		}
	}
}

// refreshAggregates re-fetches the derived views an action invalidates.
// Failures here never surface to the caller, the next read will catch up.
func (w *Workflow) refreshAggregates(ctx context.Context) {
	if state, err := w.api.CurrentState(ctx); err == nil {
		if err := w.cache.EggState.Save(ctx, state); err != nil {
			w.log.Error(ctx, "refreshing cached egg state", "error", err)
		}
	}
	if events, err := w.api.History(ctx, api.HistoryFilter{}); err == nil {
		if err := w.cache.Events.PutAll(ctx, events); err != nil {
			w.log.Error(ctx, "refreshing cached history", "error", err)
		}
	}
}

func (w *Workflow) rollback(ctx context.Context, m *Mutation, eventID string) {
	if err := m.Rollback(ctx); err != nil {
		w.log.Error(ctx, "rolling back optimistic update", "error", err, "event_id", eventID)
	}
}

func (w *Workflow) isDenied(ctx context.Context, eventID string) (bool, error) {
	v, err := w.cache.KV.Get(ctx, deniedKey(eventID))
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

func deniedKey(eventID string) string { return "denied:" + eventID }

// snapshotOf returns the pre-mutation snapshot for a Mutation: the event
// itself when it was cached, nil otherwise so a rollback removes the record.
func snapshotOf(e *models.EggEvent, cached bool) *models.EggEvent {
	if !cached {
		return nil
	}
	return e
}

// translate maps server error codes to the sentinel errors callers branch
// on. Session invalidation and transport failures pass through untouched.
func (w *Workflow) translate(op string, err error) error {
	if errors.Is(err, session.ErrInvalidated) || errors.Is(err, common.ErrUnavailable) {
		return err
	}
	switch api.ErrorCode(err) {
	case api.CodeEventNotFound:
		return fmt.Errorf("%w: %v", common.ErrNotFound, err)
	case api.CodeAlreadyVerified:
		return fmt.Errorf("%w: %v", common.ErrAlreadyVerified, err)
	case api.CodeNotVerified:
		return fmt.Errorf("%w: %v", common.ErrNotVerified, err)
	case api.CodeNotEventTaker:
		return fmt.Errorf("%w: %v", common.ErrPermissionDenied, err)
	}
	switch api.ErrorStatus(err) {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", common.ErrNotFound, err)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %v", common.ErrPermissionDenied, err)
	}
	return fmt.Errorf("could not %s the event, please try again: %w", op, err)
}
