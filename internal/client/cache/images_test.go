package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImages_CapEvictsOldestByTimestamp(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < MaxImages; i++ {
		require.NoError(t, s.Images.Put(ctx, ProcessedImage{
			ID:        fmt.Sprintf("img-%02d", i),
			URL:       fmt.Sprintf("https://backend/images/%d.jpg", i),
			EventID:   "E1",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	list, err := s.Images.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, MaxImages)

	// the 21st insert evicts exactly the single oldest entry
	require.NoError(t, s.Images.Put(ctx, ProcessedImage{
		ID:        "img-new",
		URL:       "https://backend/images/new.jpg",
		EventID:   "E2",
		Timestamp: base.Add(time.Hour),
	}))

	list, err = s.Images.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, MaxImages)

	ids := make(map[string]bool, len(list))
	for _, img := range list {
		ids[img.ID] = true
	}
	assert.False(t, ids["img-00"], "oldest entry should have been evicted")
	assert.True(t, ids["img-01"])
	assert.True(t, ids["img-new"])
}

func TestImages_EvictionIsFIFONotLRU(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < MaxImages; i++ {
		require.NoError(t, s.Images.Put(ctx, ProcessedImage{
			ID:        fmt.Sprintf("img-%02d", i),
			URL:       "u",
			EventID:   "E1",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	// reading the oldest entry does not protect it
	_, err := s.Images.List(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Images.Put(ctx, ProcessedImage{
		ID: "img-late", URL: "u", EventID: "E2", Timestamp: base.Add(24 * time.Hour),
	}))

	list, err := s.Images.List(ctx)
	require.NoError(t, err)
	for _, img := range list {
		assert.NotEqual(t, "img-00", img.ID)
	}
}

func TestImages_ListMostRecentFirst(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Now()
	for _, d := range []time.Duration{2 * time.Minute, time.Minute, 3 * time.Minute} {
		require.NoError(t, s.Images.Put(ctx, ProcessedImage{
			ID: fmt.Sprintf("img-%s", d), URL: "u", EventID: "E", Timestamp: base.Add(d),
		}))
	}

	list, err := s.Images.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i := 0; i < len(list)-1; i++ {
		assert.False(t, list[i].Timestamp.Before(list[i+1].Timestamp))
	}
}
