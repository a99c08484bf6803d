package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/arbor/pkg/cursor"
	"github.com/Ramsey-B/arbor/pkg/models"
)

func relatedStore(entityID string, count int) *fakeStore {
	store := &fakeStore{}
	store.events = append(store.events, startEvent(entityID, "", 0))
	for i := 0; i < count; i++ {
		id := string(rune('a'+i)) + "-event"
		store.events = append(store.events, relatedEvent(entityID, models.CategoryFile, id, time.Duration(i+1)*time.Second))
	}
	return store
}

func TestService_RelatedEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("AllInOnePage", func(t *testing.T) {
		svc := newTestService(relatedStore("proc-1", 4))

		resp, err := svc.RelatedEvents(ctx, "proc-1", 10, nil, "")
		require.NoError(t, err)
		assert.Equal(t, "proc-1", resp.EntityID)
		require.Len(t, resp.Events, 4)
		assert.Nil(t, resp.NextEvent)

		// Ascending (occurred_at, id) order.
		for i := 1; i < len(resp.Events); i++ {
			assert.True(t, resp.Events[i].OccurredAt.After(resp.Events[i-1].OccurredAt))
		}
	})

	t.Run("PaginationRoundTrip", func(t *testing.T) {
		svc := newTestService(relatedStore("proc-1", 7))

		var collected []string
		var after *cursor.Cursor
		pages := 0
		for {
			resp, err := svc.RelatedEvents(ctx, "proc-1", 3, after, "")
			require.NoError(t, err)
			for _, e := range resp.Events {
				collected = append(collected, e.ID)
			}
			pages++
			if resp.NextEvent == nil {
				break
			}
			after = cursor.Decode(*resp.NextEvent)
			require.NotNil(t, after)
		}

		assert.Equal(t, 3, pages)
		require.Len(t, collected, 7)
		// Concatenated pages cover every event exactly once.
		seen := map[string]bool{}
		for _, id := range collected {
			assert.False(t, seen[id], "event %s repeated across pages", id)
			seen[id] = true
		}
	})

	t.Run("ExactPageBoundary", func(t *testing.T) {
		// Page size equals the remaining events: the page is full but there
		// is nothing after it, so no cursor.
		svc := newTestService(relatedStore("proc-1", 3))

		resp, err := svc.RelatedEvents(ctx, "proc-1", 3, nil, "")
		require.NoError(t, err)
		require.Len(t, resp.Events, 3)
		assert.Nil(t, resp.NextEvent)
	})

	t.Run("InvalidCursorRestartsScan", func(t *testing.T) {
		// Malformed tokens decode to nil; a 4-event entity returns all 4.
		svc := newTestService(relatedStore("proc-1", 4))

		after := cursor.Decode("not!!a//valid token")
		require.Nil(t, after)

		resp, err := svc.RelatedEvents(ctx, "proc-1", 10, after, "")
		require.NoError(t, err)
		assert.Len(t, resp.Events, 4)
	})

	t.Run("ValidCursorPastEnd", func(t *testing.T) {
		// A structurally valid cursor beyond the data is an empty page, not
		// a restart; the asymmetry with the malformed case is deliberate.
		svc := newTestService(relatedStore("proc-1", 4))

		past := cursor.Decode(cursor.Encode(baseTime.Add(48*time.Hour), "zzz"))
		require.NotNil(t, past)

		resp, err := svc.RelatedEvents(ctx, "proc-1", 10, past, "")
		require.NoError(t, err)
		assert.Empty(t, resp.Events)
		assert.Nil(t, resp.NextEvent)
	})

	t.Run("UnknownEntity", func(t *testing.T) {
		svc := newTestService(relatedStore("proc-1", 2))

		resp, err := svc.RelatedEvents(ctx, "never-seen", 10, nil, "")
		require.NoError(t, err)
		assert.Equal(t, "never-seen", resp.EntityID)
		assert.Empty(t, resp.Events)
		assert.Nil(t, resp.NextEvent)
	})

	t.Run("LifecycleEventsExcluded", func(t *testing.T) {
		store := relatedStore("proc-1", 2)
		store.events = append(store.events, endEvent("proc-1", time.Hour))
		svc := newTestService(store)

		resp, err := svc.RelatedEvents(ctx, "proc-1", 10, nil, "")
		require.NoError(t, err)
		require.Len(t, resp.Events, 2)
		for _, e := range resp.Events {
			assert.Equal(t, models.KindRelated, e.Kind)
		}
	})
}
