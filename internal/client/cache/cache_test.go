package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eggsregaco/regaco/internal/client/models"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEggState_SaveGetRoundtrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	got, err := s.EggState.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	state := &models.EggState{
		BoxID:         "3",
		CurrentCount:  7,
		PreviousCount: 10,
		LastUpdated:   time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		LastImageURL:  "https://backend/images/after.jpg",
	}
	require.NoError(t, s.EggState.Save(ctx, state))

	got, err = s.EggState.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, state.BoxID, got.BoxID)
	assert.Equal(t, 7, got.CurrentCount)
	assert.Equal(t, 10, got.PreviousCount)

	// overwritten wholesale
	state.CurrentCount = 6
	require.NoError(t, s.EggState.Save(ctx, state))
	got, err = s.EggState.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, got.CurrentCount)
}

func TestEggState_CorruptRecordTreatedAsAbsent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `INSERT INTO egg_state(key, data) VALUES ('current', '{not json')`)
	require.NoError(t, err)

	got, err := s.EggState.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClear_SingleStoreAndAll(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.EggState.Save(ctx, &models.EggState{BoxID: "1"}))
	require.NoError(t, s.KV.Set(ctx, "auth_token", []byte("tok")))

	require.NoError(t, s.Clear(ctx, KindEggState))
	state, err := s.EggState.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)

	val, err := s.KV.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.Equal(t, []byte("tok"), val)

	require.NoError(t, s.Clear(ctx, ""))
	val, err = s.KV.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestClear_UnknownStore(t *testing.T) {
	s := setupStore(t)
	assert.Error(t, s.Clear(context.Background(), "nosuch"))
}

func TestKV_SetGetDelete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	got, err := s.KV.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.KV.Set(ctx, "k", []byte("v1")))
	require.NoError(t, s.KV.Set(ctx, "k", []byte("v2")))

	got, err = s.KV.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, s.KV.Delete(ctx, "k"))
	got, err = s.KV.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}
