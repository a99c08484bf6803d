package events

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/arbor/pkg/cursor"
	"github.com/Ramsey-B/arbor/pkg/database"
	"github.com/Ramsey-B/arbor/pkg/models"
	"github.com/Ramsey-B/arbor/pkg/tracing"
)

// LegacyRepository queries the legacy event schema: events keyed by
// (endpoint_id, unique_pid) with the parent link in unique_ppid. Entity IDs
// at this boundary are the decimal rendering of unique_pid; rows are
// normalized to entity_id/parent_entity_id before they leave the adapter so
// nothing above the store knows the schemas differ.
type LegacyRepository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewLegacyRepository creates a new legacy event store repository.
func NewLegacyRepository(db database.DB, logger ectologger.Logger) *LegacyRepository {
	return &LegacyRepository{
		db:     db,
		logger: logger,
	}
}

// ForEndpoint binds the repository to one legacy endpoint for the duration of
// a request.
func (r *LegacyRepository) ForEndpoint(endpointID string) Store {
	return &legacyStore{repo: r, endpointID: endpointID}
}

type legacyStore struct {
	repo       *LegacyRepository
	endpointID string
}

// parsePID parses a legacy entity ID. A non-numeric ID cannot match any
// legacy row, so callers treat a false return as "unknown entity".
func parsePID(entityID string) (int64, bool) {
	pid, err := strconv.ParseInt(entityID, 10, 64)
	if err != nil {
		return 0, false
	}
	return pid, true
}

// normalize maps legacy key columns onto the normalized entity fields.
func normalize(rows []models.EndpointEvent) []models.EndpointEvent {
	for i := range rows {
		if rows[i].UniquePID != nil {
			rows[i].EntityID = strconv.FormatInt(*rows[i].UniquePID, 10)
		}
		if rows[i].UniquePPID != nil {
			ppid := strconv.FormatInt(*rows[i].UniquePPID, 10)
			rows[i].ParentEntityID = &ppid
		} else {
			rows[i].ParentEntityID = nil
		}
	}
	return rows
}

func (s *legacyStore) selectEvents(ctx context.Context, spanName string, build func(sb *sqlbuilder.SelectBuilder)) ([]models.EndpointEvent, error) {
	ctx, span := tracing.StartSpan(ctx, spanName)
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(eventColumns...)
	sb.From(eventsTable)
	sb.Where(sb.Equal("endpoint_id", s.endpointID))
	build(sb)
	sb.OrderBy("occurred_at", "id").Asc()

	query, args := sb.Build()
	var rows []models.EndpointEvent
	if err := s.repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		s.repo.logger.WithContext(ctx).WithError(err).WithField("endpoint_id", s.endpointID).Error("Failed to query legacy events")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to query legacy events")
	}

	return normalize(rows), nil
}

func (s *legacyStore) LifecycleEvents(ctx context.Context, entityID string) ([]models.EndpointEvent, error) {
	pid, ok := parsePID(entityID)
	if !ok {
		return nil, nil
	}

	return s.selectEvents(ctx, "events.legacyStore.LifecycleEvents", func(sb *sqlbuilder.SelectBuilder) {
		sb.Where(
			sb.Equal("unique_pid", pid),
			sb.Equal("kind", models.KindLifecycle),
		)
	})
}

func (s *legacyStore) LifecycleEventsForEntities(ctx context.Context, entityIDs []string) ([]models.EndpointEvent, error) {
	pids := make([]any, 0, len(entityIDs))
	for _, id := range entityIDs {
		if pid, ok := parsePID(id); ok {
			pids = append(pids, pid)
		}
	}
	if len(pids) == 0 {
		return nil, nil
	}

	return s.selectEvents(ctx, "events.legacyStore.LifecycleEventsForEntities", func(sb *sqlbuilder.SelectBuilder) {
		sb.Where(
			sb.In("unique_pid", pids...),
			sb.Equal("kind", models.KindLifecycle),
		)
	})
}

func (s *legacyStore) RelatedEvents(ctx context.Context, entityID string, limit int, after *cursor.Cursor) ([]models.EndpointEvent, error) {
	pid, ok := parsePID(entityID)
	if !ok {
		return nil, nil
	}

	return s.selectEvents(ctx, "events.legacyStore.RelatedEvents", func(sb *sqlbuilder.SelectBuilder) {
		sb.Where(
			sb.Equal("unique_pid", pid),
			sb.Equal("kind", models.KindRelated),
		)
		applyCursor(sb, after)
		sb.Limit(limit)
	})
}

func (s *legacyStore) Children(ctx context.Context, parentID string, limit int, after *cursor.Cursor) ([]models.EndpointEvent, error) {
	ppid, ok := parsePID(parentID)
	if !ok {
		return nil, nil
	}

	return s.selectEvents(ctx, "events.legacyStore.Children", func(sb *sqlbuilder.SelectBuilder) {
		sb.Where(
			sb.Equal("unique_ppid", ppid),
			sb.Equal("kind", models.KindLifecycle),
			sb.Equal("action", models.ActionStart),
		)
		applyCursor(sb, after)
		sb.Limit(limit)
	})
}

func (s *legacyStore) CategoryCounts(ctx context.Context, entityID string) (map[string]int, int, error) {
	pid, ok := parsePID(entityID)
	if !ok {
		return map[string]int{}, 0, nil
	}

	ctx, span := tracing.StartSpan(ctx, "events.legacyStore.CategoryCounts")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("category", "COUNT(*) AS count")
	sb.From(eventsTable)
	sb.Where(
		sb.Equal("endpoint_id", s.endpointID),
		sb.Equal("unique_pid", pid),
		sb.Equal("kind", models.KindRelated),
	)
	sb.GroupBy("category")

	query, args := sb.Build()
	rows, err := s.repo.db.QueryxContext(ctx, query, args...)
	if err != nil {
		s.repo.logger.WithContext(ctx).WithError(err).Error("Failed to query legacy category counts")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to query legacy category counts")
	}
	defer rows.Close()

	counts := make(map[string]int)
	total := 0
	for rows.Next() {
		var row struct {
			Category string `db:"category"`
			Count    int    `db:"count"`
		}
		if err := rows.StructScan(&row); err != nil {
			s.repo.logger.WithContext(ctx).WithError(err).Error("Failed to scan legacy category count")
			return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to query legacy category counts")
		}
		counts[row.Category] = row.Count
		total += row.Count
	}
	if err := rows.Err(); err != nil {
		s.repo.logger.WithContext(ctx).WithError(err).Error("Failed to read legacy category counts")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to query legacy category counts")
	}

	return counts, total, nil
}
