package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/arbor/internal/repositories/events"
	"github.com/Ramsey-B/arbor/pkg/cursor"
	"github.com/Ramsey-B/arbor/pkg/middleware"
	"github.com/Ramsey-B/arbor/pkg/models"
	"github.com/Ramsey-B/arbor/pkg/resolver"
	"github.com/Ramsey-B/arbor/pkg/routes/health"
	resolverroutes "github.com/Ramsey-B/arbor/pkg/routes/resolver"
)

// memoryStore serves the resolver API from a slice of events, with the same
// ordering and cursor semantics as the SQL store.
type memoryStore struct {
	events []models.EndpointEvent
}

func (m *memoryStore) ForRequest(string) events.Store { return m }

func (m *memoryStore) matching(filter func(e models.EndpointEvent) bool) []models.EndpointEvent {
	var out []models.EndpointEvent
	for _, e := range m.events {
		if filter(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func applyCursor(rows []models.EndpointEvent, after *cursor.Cursor, limit int) []models.EndpointEvent {
	if after != nil {
		var kept []models.EndpointEvent
		for _, e := range rows {
			if e.OccurredAt.After(after.Timestamp) ||
				(e.OccurredAt.Equal(after.Timestamp) && e.ID > after.EventID) {
				kept = append(kept, e)
			}
		}
		rows = kept
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func (m *memoryStore) LifecycleEvents(_ context.Context, entityID string) ([]models.EndpointEvent, error) {
	return m.matching(func(e models.EndpointEvent) bool {
		return e.Kind == models.KindLifecycle && e.EntityID == entityID
	}), nil
}

func (m *memoryStore) LifecycleEventsForEntities(_ context.Context, entityIDs []string) ([]models.EndpointEvent, error) {
	wanted := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		wanted[id] = true
	}
	return m.matching(func(e models.EndpointEvent) bool {
		return e.Kind == models.KindLifecycle && wanted[e.EntityID]
	}), nil
}

func (m *memoryStore) RelatedEvents(_ context.Context, entityID string, limit int, after *cursor.Cursor) ([]models.EndpointEvent, error) {
	return applyCursor(m.matching(func(e models.EndpointEvent) bool {
		return e.Kind == models.KindRelated && e.EntityID == entityID
	}), after, limit), nil
}

func (m *memoryStore) Children(_ context.Context, parentID string, limit int, after *cursor.Cursor) ([]models.EndpointEvent, error) {
	return applyCursor(m.matching(func(e models.EndpointEvent) bool {
		return e.Kind == models.KindLifecycle && e.Action == models.ActionStart && e.ParentRef() == parentID
	}), after, limit), nil
}

func (m *memoryStore) CategoryCounts(_ context.Context, entityID string) (map[string]int, int, error) {
	counts := make(map[string]int)
	total := 0
	for _, e := range m.events {
		if e.Kind == models.KindRelated && e.EntityID == entityID {
			counts[e.Category]++
			total++
		}
	}
	return counts, total, nil
}

// TestAPIHelpers wires a full echo server over an in-memory store
type TestAPIHelpers struct {
	t *testing.T
	e *echo.Echo
}

func NewTestAPIHelpers(t *testing.T, store *memoryStore) *TestAPIHelpers {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	e := echo.New()
	e.Use(middleware.Context())
	e.HTTPErrorHandler = middleware.Error(logger)

	service := resolver.NewService(store, nil, nil, logger, resolver.DefaultMaxPageSize)
	handler := resolverroutes.NewHandler(service, resolverroutes.Defaults{
		Ancestors:   200,
		Children:    10,
		Generations: 3,
		Events:      100,
	}, logger)
	handler.Register(e.Group("/api/v1/resolver"))

	return &TestAPIHelpers{t: t, e: e}
}

func (h *TestAPIHelpers) Get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func (h *TestAPIHelpers) GetJSON(path string, out any) *httptest.ResponseRecorder {
	rec := h.Get(path)
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), out))
	return rec
}

var epoch = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func start(entityID, parentID string, offset time.Duration) models.EndpointEvent {
	e := models.EndpointEvent{
		ID:         "start-" + entityID,
		EntityID:   entityID,
		Kind:       models.KindLifecycle,
		Action:     models.ActionStart,
		OccurredAt: epoch.Add(offset),
	}
	if parentID != "" {
		e.ParentEntityID = &parentID
	}
	return e
}

func related(entityID, category, id string, offset time.Duration) models.EndpointEvent {
	return models.EndpointEvent{
		ID:         id,
		EntityID:   entityID,
		Kind:       models.KindRelated,
		Category:   category,
		OccurredAt: epoch.Add(offset),
	}
}

func seededStore() *memoryStore {
	store := &memoryStore{}
	store.events = append(store.events,
		start("root", "", 0),
		start("mid", "root", time.Minute),
		start("leaf", "mid", 2*time.Minute),
	)
	for i := 0; i < 4; i++ {
		store.events = append(store.events, related("leaf", models.CategoryFile, fmt.Sprintf("rel-%d", i), time.Duration(10+i)*time.Second))
	}
	return store
}

func TestResolverAPI_Ancestry(t *testing.T) {
	h := NewTestAPIHelpers(t, seededStore())

	t.Run("ReturnsChain", func(t *testing.T) {
		var resp models.AncestryResponse
		rec := h.GetJSON("/api/v1/resolver/leaf/ancestry", &resp)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, resp.Ancestors, 3)
		assert.Equal(t, "leaf", resp.Ancestors[0].EntityID)
		assert.Nil(t, resp.NextAncestor)
	})

	t.Run("ExplicitBudget", func(t *testing.T) {
		var resp models.AncestryResponse
		rec := h.GetJSON("/api/v1/resolver/leaf/ancestry?ancestors=1", &resp)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, resp.Ancestors, 2)
		require.NotNil(t, resp.NextAncestor)
		assert.Equal(t, "root", *resp.NextAncestor)
	})

	t.Run("OutOfBoundsRejected", func(t *testing.T) {
		rec := h.Get("/api/v1/resolver/leaf/ancestry?ancestors=0")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = h.Get("/api/v1/resolver/leaf/ancestry?ancestors=2001")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("NonNumericRejected", func(t *testing.T) {
		rec := h.Get("/api/v1/resolver/leaf/ancestry?ancestors=many")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnknownEntityIsEmptyOK", func(t *testing.T) {
		var resp models.AncestryResponse
		rec := h.GetJSON("/api/v1/resolver/never-seen/ancestry", &resp)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, resp.Ancestors)
	})
}

func TestResolverAPI_Children(t *testing.T) {
	h := NewTestAPIHelpers(t, seededStore())

	t.Run("ReturnsDescendants", func(t *testing.T) {
		var resp models.ChildrenResponse
		rec := h.GetJSON("/api/v1/resolver/root/children", &resp)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, resp.ChildNodes, 2) // mid and leaf, breadth-first
		assert.Equal(t, "mid", resp.ChildNodes[0].EntityID)
		assert.Equal(t, "leaf", resp.ChildNodes[1].EntityID)
	})

	t.Run("GenerationsBound", func(t *testing.T) {
		var resp models.ChildrenResponse
		rec := h.GetJSON("/api/v1/resolver/root/children?generations=1", &resp)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, resp.ChildNodes, 1)
		assert.Equal(t, "mid", resp.ChildNodes[0].EntityID)
	})

	t.Run("OutOfBoundsRejected", func(t *testing.T) {
		rec := h.Get("/api/v1/resolver/root/children?children=0")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = h.Get("/api/v1/resolver/root/children?generations=2001")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestResolverAPI_RelatedEvents(t *testing.T) {
	h := NewTestAPIHelpers(t, seededStore())

	t.Run("PaginatesWithCursor", func(t *testing.T) {
		var page1 models.EventsResponse
		rec := h.GetJSON("/api/v1/resolver/leaf/events?events=3", &page1)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, page1.Events, 3)
		require.NotNil(t, page1.NextEvent)

		var page2 models.EventsResponse
		rec = h.GetJSON("/api/v1/resolver/leaf/events?events=3&afterEvent="+*page1.NextEvent, &page2)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, page2.Events, 1)
		assert.Nil(t, page2.NextEvent)
		assert.NotEqual(t, page1.Events[2].ID, page2.Events[0].ID)
	})

	t.Run("InvalidCursorRestarts", func(t *testing.T) {
		// A garbage token is treated as absent: the 4-event entity returns
		// all 4 from the beginning, status 200.
		var resp models.EventsResponse
		rec := h.GetJSON("/api/v1/resolver/leaf/events?afterEvent=%21%21garbage", &resp)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, resp.Events, 4)
	})

	t.Run("ValidCursorPastEndIsEmpty", func(t *testing.T) {
		token := cursor.Encode(epoch.Add(24*time.Hour), "zzz")
		var resp models.EventsResponse
		rec := h.GetJSON("/api/v1/resolver/leaf/events?afterEvent="+token, &resp)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, resp.Events)
		assert.Nil(t, resp.NextEvent)
	})
}

func TestResolverAPI_Tree(t *testing.T) {
	h := NewTestAPIHelpers(t, seededStore())

	t.Run("ComposedShape", func(t *testing.T) {
		var tree models.ResolverTree
		rec := h.GetJSON("/api/v1/resolver/mid", &tree)
		assert.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, "mid", tree.EntityID)
		require.Len(t, tree.Lifecycle, 1)
		require.Len(t, tree.Ancestry.Ancestors, 2) // mid + root
		require.Len(t, tree.Children.ChildNodes, 1)
		assert.Equal(t, "leaf", tree.Children.ChildNodes[0].EntityID)
		require.NotNil(t, tree.Stats)
		assert.Zero(t, tree.Stats.Total)

		// The leaf child node carries its own stats.
		require.NotNil(t, tree.Children.ChildNodes[0].Stats)
		assert.Equal(t, 4, tree.Children.ChildNodes[0].Stats.Total)
	})

	t.Run("BranchParamsForwarded", func(t *testing.T) {
		var tree models.ResolverTree
		rec := h.GetJSON("/api/v1/resolver/leaf?ancestors=1&events=2", &tree)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, tree.Ancestry.Ancestors, 2)
		require.Len(t, tree.RelatedEvents.Events, 2)
		require.NotNil(t, tree.RelatedEvents.NextEvent)
	})

	t.Run("OutOfBoundsRejected", func(t *testing.T) {
		rec := h.Get("/api/v1/resolver/leaf?events=9999")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthAPI(t *testing.T) {
	e := echo.New()
	checker := health.NewChecker(nil, nil, nil, "test")
	checker.RegisterRoutes(e)

	t.Run("LiveAlwaysOK", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ReadyFollowsStartupState", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		checker.SetReady(true)
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
