package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/arbor/pkg/models"
)

type recordingCache struct {
	entries map[string]*models.Stats
	gets    int
	sets    int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[string]*models.Stats)}
}

func (c *recordingCache) Get(_ context.Context, source, entityID string) (*models.Stats, bool) {
	c.gets++
	stats, ok := c.entries[source+"|"+entityID]
	return stats, ok
}

func (c *recordingCache) Set(_ context.Context, source, entityID string, stats *models.Stats) {
	c.sets++
	c.entries[source+"|"+entityID] = stats
}

func TestService_Stats(t *testing.T) {
	ctx := context.Background()

	t.Run("MultiCodeCategory", func(t *testing.T) {
		// dns events credit both the dns and network codes, but each event
		// counts once in the total.
		store := &fakeStore{}
		store.events = append(store.events,
			relatedEvent("proc-1", models.CategoryDNS, "e1", time.Second),
			relatedEvent("proc-1", models.CategoryDNS, "e2", 2*time.Second),
			relatedEvent("proc-1", models.CategoryNetwork, "e3", 3*time.Second),
			relatedEvent("proc-1", models.CategoryFile, "e4", 4*time.Second),
		)
		svc := newTestService(store)

		stats, err := svc.Stats(ctx, "proc-1", "")
		require.NoError(t, err)
		assert.Equal(t, 4, stats.Total)
		assert.Equal(t, 2, stats.ByCategory[models.CategoryDNS])
		assert.Equal(t, 3, stats.ByCategory[models.CategoryNetwork]) // 2 dns + 1 network
		assert.Equal(t, 1, stats.ByCategory[models.CategoryFile])
	})

	t.Run("UnknownCategoryCountsAsItself", func(t *testing.T) {
		store := &fakeStore{}
		store.events = append(store.events, relatedEvent("proc-1", "telemetry", "e1", time.Second))
		svc := newTestService(store)

		stats, err := svc.Stats(ctx, "proc-1", "")
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Total)
		assert.Equal(t, 1, stats.ByCategory["telemetry"])
	})

	t.Run("NoRelatedEvents", func(t *testing.T) {
		store := &fakeStore{}
		store.events = append(store.events, startEvent("proc-1", "", 0))
		svc := newTestService(store)

		stats, err := svc.Stats(ctx, "proc-1", "")
		require.NoError(t, err)
		assert.Zero(t, stats.Total)
		assert.Empty(t, stats.ByCategory)
	})

	t.Run("ReadThroughCache", func(t *testing.T) {
		store := &fakeStore{}
		store.events = append(store.events, relatedEvent("proc-1", models.CategoryFile, "e1", time.Second))
		cache := newRecordingCache()
		svc := NewService(fixedSelector{store: store}, nil, cache, testLogger(), DefaultMaxPageSize)

		first, err := svc.Stats(ctx, "proc-1", "")
		require.NoError(t, err)
		assert.Equal(t, 1, cache.gets)
		assert.Equal(t, 1, cache.sets)

		// Second call is served from the cache, not the store.
		store.err = assert.AnError
		second, err := svc.Stats(ctx, "proc-1", "")
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, cache.sets)
	})

	t.Run("CacheKeyedBySchemaVariant", func(t *testing.T) {
		assert.Equal(t, "native", statsSource(""))
		assert.Equal(t, "legacy:ep-7", statsSource("ep-7"))
	})
}
