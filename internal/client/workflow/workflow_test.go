package workflow

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eggsregaco/regaco/internal/client/api"
	"github.com/eggsregaco/regaco/internal/client/cache"
	"github.com/eggsregaco/regaco/internal/client/models"
	"github.com/eggsregaco/regaco/internal/client/session"
	"github.com/eggsregaco/regaco/internal/common"
	"github.com/eggsregaco/regaco/internal/logging"
)

// fakeAPI is an in-memory backend. The confirm/undo rules mirror the real
// server: confirm requires an unclaimed event, undo and mistake require the
// caller to hold the claim.
type fakeAPI struct {
	mu     sync.Mutex
	user   models.User
	events map[string]*models.EggEvent
	state  *models.EggState

	confirmCalls int
	denyCalls    int
	failWith     error
	offline      bool

	// onConfirm runs inside ConfirmTaker while the workflow waits on the
	// server, letting tests observe the optimistic window.
	onConfirm func()
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		user:   models.User{ID: "u1", Username: "alice"},
		events: make(map[string]*models.EggEvent),
		state:  &models.EggState{BoxID: "box-1", CurrentCount: 5},
	}
}

func (f *fakeAPI) unavailable() error {
	return fmt.Errorf("%w: connection refused", common.ErrUnavailable)
}

func (f *fakeAPI) EventDetails(_ context.Context, eventID string) (*models.EggEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, f.unavailable()
	}
	e, ok := f.events[eventID]
	if !ok {
		return nil, &api.Error{Status: http.StatusNotFound, Code: api.CodeEventNotFound}
	}
	return e.Clone(), nil
}

func (f *fakeAPI) ConfirmTaker(_ context.Context, eventID string) (*models.EggEvent, error) {
	f.mu.Lock()
	hook := f.onConfirm
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmCalls++
	if f.offline {
		return nil, f.unavailable()
	}
	if f.failWith != nil {
		return nil, f.failWith
	}
	e, ok := f.events[eventID]
	if !ok {
		return nil, &api.Error{Status: http.StatusNotFound, Code: api.CodeEventNotFound}
	}
	if e.EggTakerVerified {
		return nil, &api.Error{Status: http.StatusConflict, Code: api.CodeAlreadyVerified}
	}
	e.EggTakerVerified = true
	e.ConfirmedBy = f.user.Username
	e.ReversalHistory = append(e.ReversalHistory, models.ReversalEntry{
		UserID: f.user.ID, Username: f.user.Username,
		Action: models.ActionConfirmed, Timestamp: time.Now().UTC(),
	})
	return e.Clone(), nil
}

func (f *fakeAPI) release(eventID string) (*models.EggEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, f.unavailable()
	}
	if f.failWith != nil {
		return nil, f.failWith
	}
	e, ok := f.events[eventID]
	if !ok {
		return nil, &api.Error{Status: http.StatusNotFound, Code: api.CodeEventNotFound}
	}
	if !e.EggTakerVerified {
		return nil, &api.Error{Status: http.StatusConflict, Code: api.CodeNotVerified}
	}
	if e.ConfirmedBy != f.user.Username {
		return nil, &api.Error{Status: http.StatusForbidden, Code: api.CodeNotEventTaker}
	}
	e.EggTakerVerified = false
	e.ConfirmedBy = ""
	e.ReversalHistory = append(e.ReversalHistory, models.ReversalEntry{
		UserID: f.user.ID, Username: f.user.Username,
		Action: models.ActionReversed, Timestamp: time.Now().UTC(),
	})
	return e.Clone(), nil
}

func (f *fakeAPI) UndoConfirmation(_ context.Context, eventID string) (*models.EggEvent, error) {
	return f.release(eventID)
}

func (f *fakeAPI) MarkMistake(_ context.Context, eventID string) (*models.EggEvent, error) {
	return f.release(eventID)
}

func (f *fakeAPI) DenyTaking(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denyCalls++
	if f.offline {
		return f.unavailable()
	}
	if _, ok := f.events[eventID]; !ok {
		return &api.Error{Status: http.StatusNotFound, Code: api.CodeEventNotFound}
	}
	return nil
}

func (f *fakeAPI) CurrentState(context.Context) (*models.EggState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, f.unavailable()
	}
	s := *f.state
	return &s, nil
}

func (f *fakeAPI) History(context.Context, api.HistoryFilter) ([]models.EggEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, f.unavailable()
	}
	var out []models.EggEvent
	for _, e := range f.events {
		out = append(out, *e.Clone())
	}
	return out, nil
}

func testEvent(id string) *models.EggEvent {
	return &models.EggEvent{
		ID:          id,
		BoxID:       "box-1",
		BeforeCount: 6,
		AfterCount:  5,
		Delta:       -1,
		Timestamp:   time.Now().UTC().Truncate(time.Millisecond),
	}
}

func newTestWorkflow(t *testing.T, opts ...Option) (*Workflow, *fakeAPI, *cache.Store) {
	t.Helper()
	ctx := context.Background()

	store, err := cache.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sess := session.NewStore(store.KV)
	require.NoError(t, sess.Save(ctx, &session.Session{
		Token: "opaque-token",
		User:  &models.User{ID: "u1", Username: "alice"},
	}))

	remote := newFakeAPI()
	w := New(remote, store, sess, logging.NewDefault(), opts...)
	return w, remote, store
}

func TestConfirm_CommitsServerValue(t *testing.T) {
	ctx := context.Background()
	w, remote, store := newTestWorkflow(t)
	remote.events["e1"] = testEvent("e1")

	got, err := w.Confirm(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, got.EggTakerVerified)
	assert.Equal(t, "alice", got.ConfirmedBy)
	require.Len(t, got.ReversalHistory, 1)
	assert.Equal(t, models.ActionConfirmed, got.ReversalHistory[0].Action)

	cached, err := store.Events.Get(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "alice", cached.ConfirmedBy)
}

func TestConfirm_OptimisticValueVisibleDuringCall(t *testing.T) {
	ctx := context.Background()
	w, remote, store := newTestWorkflow(t)
	remote.events["e1"] = testEvent("e1")
	require.NoError(t, store.Events.Put(ctx, testEvent("e1")))

	var midFlight *models.EggEvent
	remote.onConfirm = func() {
		midFlight, _ = store.Events.Get(ctx, "e1")
	}

	_, err := w.Confirm(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, midFlight)
	assert.True(t, midFlight.EggTakerVerified, "optimistic claim must be visible before the server answers")
	assert.Equal(t, "alice", midFlight.ConfirmedBy)
}

func TestConfirm_RollsBackToSnapshotOnRejection(t *testing.T) {
	ctx := context.Background()
	w, remote, store := newTestWorkflow(t)
	orig := testEvent("e1")
	remote.events["e1"] = orig
	require.NoError(t, store.Events.Put(ctx, orig))

	remote.failWith = &api.Error{Status: http.StatusConflict, Code: api.CodeAlreadyVerified}

	_, err := w.Confirm(ctx, "e1")
	require.ErrorIs(t, err, common.ErrAlreadyVerified)

	cached, err := store.Events.Get(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.False(t, cached.EggTakerVerified, "rollback must restore the unclaimed snapshot")
	assert.Empty(t, cached.ConfirmedBy)
}

func TestConfirm_RollbackRemovesRecordWhenNotCached(t *testing.T) {
	ctx := context.Background()
	w, remote, store := newTestWorkflow(t)
	remote.events["e1"] = testEvent("e1")
	remote.failWith = &api.Error{Status: http.StatusInternalServerError}

	_, err := w.Confirm(ctx, "e1")
	require.Error(t, err)

	cached, err := store.Events.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, cached, "an event that was never cached must not survive a failed confirm")
}

func TestConfirm_GuardShortCircuitsWithoutServerCall(t *testing.T) {
	ctx := context.Background()
	w, remote, store := newTestWorkflow(t)
	e := testEvent("e1")
	e.EggTakerVerified = true
	e.ConfirmedBy = "bob"
	require.NoError(t, store.Events.Put(ctx, e))

	_, err := w.Confirm(ctx, "e1")
	require.ErrorIs(t, err, common.ErrAlreadyVerified)
	assert.Zero(t, remote.confirmCalls)
}

func TestConfirm_RequiresSession(t *testing.T) {
	ctx := context.Background()
	w, remote, _ := newTestWorkflow(t)
	remote.events["e1"] = testEvent("e1")
	require.NoError(t, w.session.Clear(ctx))

	_, err := w.Confirm(ctx, "e1")
	require.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestConfirm_SerializedPerEvent(t *testing.T) {
	ctx := context.Background()
	w, remote, store := newTestWorkflow(t)
	remote.events["e1"] = testEvent("e1")
	require.NoError(t, store.Events.Put(ctx, testEvent("e1")))

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = w.Confirm(ctx, "e1")
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, common.ErrAlreadyVerified)
			conflict++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflict)
	assert.Equal(t, 1, remote.confirmCalls, "losers must be stopped by the local guard, not the server")
}

func TestUndo_OnlyConfirmingUserMayRelease(t *testing.T) {
	ctx := context.Background()
	w, remote, store := newTestWorkflow(t)
	e := testEvent("e1")
	e.EggTakerVerified = true
	e.ConfirmedBy = "bob"
	remote.events["e1"] = e
	require.NoError(t, store.Events.Put(ctx, e))

	_, err := w.Undo(ctx, "e1")
	require.ErrorIs(t, err, common.ErrPermissionDenied)

	cached, err := store.Events.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "bob", cached.ConfirmedBy, "a foreign claim must be untouched")
}

func TestUndo_ClearsOwnClaim(t *testing.T) {
	ctx := context.Background()
	w, remote, store := newTestWorkflow(t)
	remote.events["e1"] = testEvent("e1")

	_, err := w.Confirm(ctx, "e1")
	require.NoError(t, err)

	got, err := w.Undo(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, got.EggTakerVerified)
	assert.Empty(t, got.ConfirmedBy)
	require.Len(t, got.ReversalHistory, 2)
	assert.Equal(t, models.ActionReversed, got.ReversalHistory[1].Action)

	cached, err := store.Events.Get(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, cached.EggTakerVerified)
}

func TestMarkMistake_RequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	w, remote, store := newTestWorkflow(t)
	remote.events["e1"] = testEvent("e1")
	require.NoError(t, store.Events.Put(ctx, testEvent("e1")))

	_, err := w.MarkMistake(ctx, "e1")
	require.ErrorIs(t, err, common.ErrNotVerified)
}

func TestMarkMistake_ReturnsEventToActionableState(t *testing.T) {
	ctx := context.Background()
	w, remote, _ := newTestWorkflow(t)
	remote.events["e1"] = testEvent("e1")

	_, err := w.Confirm(ctx, "e1")
	require.NoError(t, err)

	got, err := w.MarkMistake(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, StateUnverified, StateOf(got))

	// actionable again after the flag
	got, err = w.Confirm(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, StateOf(got))
}

func TestDeny_DefaultLeavesEventActionable(t *testing.T) {
	ctx := context.Background()
	w, remote, _ := newTestWorkflow(t)
	remote.events["e1"] = testEvent("e1")

	require.NoError(t, w.Deny(ctx, "e1"))
	assert.Equal(t, 1, remote.denyCalls)

	_, err := w.Confirm(ctx, "e1")
	require.NoError(t, err)
}

func TestDeny_TerminalBlocksLaterConfirm(t *testing.T) {
	ctx := context.Background()
	w, remote, _ := newTestWorkflow(t, WithTerminalDeny())
	remote.events["e1"] = testEvent("e1")

	require.NoError(t, w.Deny(ctx, "e1"))

	_, err := w.Confirm(ctx, "e1")
	require.ErrorIs(t, err, common.ErrEventDenied)
	assert.Zero(t, remote.confirmCalls)
}

func TestDeny_ConfirmedEventCannotBeDenied(t *testing.T) {
	ctx := context.Background()
	w, remote, _ := newTestWorkflow(t)
	remote.events["e1"] = testEvent("e1")

	_, err := w.Confirm(ctx, "e1")
	require.NoError(t, err)

	err = w.Deny(ctx, "e1")
	require.ErrorIs(t, err, common.ErrAlreadyVerified)
}

func TestCurrentState_FallsBackToCacheWhenOffline(t *testing.T) {
	ctx := context.Background()
	w, remote, _ := newTestWorkflow(t)

	state, fromCache, err := w.CurrentState(ctx)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 5, state.CurrentCount)

	remote.offline = true

	state, fromCache, err = w.CurrentState(ctx)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, 5, state.CurrentCount)
}

func TestCurrentState_OfflineWithoutCacheFails(t *testing.T) {
	ctx := context.Background()
	w, remote, _ := newTestWorkflow(t)
	remote.offline = true

	_, _, err := w.CurrentState(ctx)
	require.ErrorIs(t, err, common.ErrUnavailable)
}

func TestHistory_OfflineFallbackRespectsFilter(t *testing.T) {
	ctx := context.Background()
	w, remote, store := newTestWorkflow(t)

	a := testEvent("e1")
	b := testEvent("e2")
	b.BoxID = "box-2"
	require.NoError(t, store.Events.PutAll(ctx, []models.EggEvent{*a, *b}))
	remote.offline = true

	events, fromCache, err := w.History(ctx, api.HistoryFilter{BoxID: "box-2"})
	require.NoError(t, err)
	assert.True(t, fromCache)
	require.Len(t, events, 1)
	assert.Equal(t, "e2", events[0].ID)
}

func TestEventDetail_UnknownEventMapsToNotFound(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newTestWorkflow(t)

	_, _, err := w.EventDetail(ctx, "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}

// The full claim lifecycle: confirm, a failed foreign undo, a mistake flag,
// then a fresh confirm by the same device.
func TestWorkflow_ClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	w, remote, store := newTestWorkflow(t)
	remote.events["e1"] = testEvent("e1")

	got, err := w.Confirm(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, StateConfirmed, StateOf(got))

	// another device confirmed it in the meantime: simulate by switching
	// the server-side owner and syncing the detail
	remote.mu.Lock()
	remote.events["e1"].ConfirmedBy = "bob"
	remote.mu.Unlock()
	_, _, err = w.EventDetail(ctx, "e1")
	require.NoError(t, err)

	_, err = w.Undo(ctx, "e1")
	require.ErrorIs(t, err, common.ErrPermissionDenied)

	remote.mu.Lock()
	remote.events["e1"].ConfirmedBy = "alice"
	remote.mu.Unlock()
	_, _, err = w.EventDetail(ctx, "e1")
	require.NoError(t, err)

	got, err = w.MarkMistake(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, StateUnverified, StateOf(got))

	got, err = w.Confirm(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, StateOf(got))

	cached, err := store.Events.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, StateOf(cached))
}
