package events

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/arbor/pkg/cursor"
	"github.com/Ramsey-B/arbor/pkg/database"
	"github.com/Ramsey-B/arbor/pkg/models"
	"github.com/Ramsey-B/arbor/pkg/tracing"
)

const eventsTable = "endpoint_events"

var eventColumns = []string{
	"id", "entity_id", "parent_entity_id", "endpoint_id", "unique_pid", "unique_ppid",
	"kind", "action", "category", "process_name", "occurred_at", "data", "created_at",
}

// Repository queries the native event schema: events keyed by entity_id with
// the parent link in parent_entity_id.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new native event store repository.
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// applyCursor narrows a scan to documents strictly after the cursor position
// in (occurred_at, id) order.
func applyCursor(sb *sqlbuilder.SelectBuilder, after *cursor.Cursor) {
	if after == nil {
		return
	}
	sb.Where(sb.Or(
		sb.GreaterThan("occurred_at", after.Timestamp),
		sb.And(
			sb.Equal("occurred_at", after.Timestamp),
			sb.GreaterThan("id", after.EventID),
		),
	))
}

// LifecycleEvents returns the start/end events for one entity, time ascending.
func (r *Repository) LifecycleEvents(ctx context.Context, entityID string) ([]models.EndpointEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "events.Repository.LifecycleEvents")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(eventColumns...)
	sb.From(eventsTable)
	sb.Where(
		sb.Equal("entity_id", entityID),
		sb.Equal("kind", models.KindLifecycle),
	)
	sb.OrderBy("occurred_at", "id").Asc()

	query, args := sb.Build()
	var rows []models.EndpointEvent
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to query lifecycle events")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to query lifecycle events")
	}

	return rows, nil
}

// LifecycleEventsForEntities returns the start/end events for a set of
// entities in one scan, time ascending.
func (r *Repository) LifecycleEventsForEntities(ctx context.Context, entityIDs []string) ([]models.EndpointEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "events.Repository.LifecycleEventsForEntities")
	defer span.End()

	if len(entityIDs) == 0 {
		return nil, nil
	}

	ids := make([]any, 0, len(entityIDs))
	for _, id := range entityIDs {
		ids = append(ids, id)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(eventColumns...)
	sb.From(eventsTable)
	sb.Where(
		sb.In("entity_id", ids...),
		sb.Equal("kind", models.KindLifecycle),
	)
	sb.OrderBy("occurred_at", "id").Asc()

	query, args := sb.Build()
	var rows []models.EndpointEvent
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to query lifecycle events")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to query lifecycle events")
	}

	return rows, nil
}

// RelatedEvents returns one page of non-lifecycle events for an entity.
func (r *Repository) RelatedEvents(ctx context.Context, entityID string, limit int, after *cursor.Cursor) ([]models.EndpointEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "events.Repository.RelatedEvents")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(eventColumns...)
	sb.From(eventsTable)
	sb.Where(
		sb.Equal("entity_id", entityID),
		sb.Equal("kind", models.KindRelated),
	)
	applyCursor(sb, after)
	sb.OrderBy("occurred_at", "id").Asc()
	sb.Limit(limit)

	query, args := sb.Build()
	var rows []models.EndpointEvent
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to query related events")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to query related events")
	}

	return rows, nil
}

// Children returns one page of start-lifecycle events of the direct children
// of parentID.
func (r *Repository) Children(ctx context.Context, parentID string, limit int, after *cursor.Cursor) ([]models.EndpointEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "events.Repository.Children")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(eventColumns...)
	sb.From(eventsTable)
	sb.Where(
		sb.Equal("parent_entity_id", parentID),
		sb.Equal("kind", models.KindLifecycle),
		sb.Equal("action", models.ActionStart),
	)
	applyCursor(sb, after)
	sb.OrderBy("occurred_at", "id").Asc()
	sb.Limit(limit)

	query, args := sb.Build()
	var rows []models.EndpointEvent
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to query children")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to query children")
	}

	return rows, nil
}

// CategoryCounts returns per-category related-event counts for one entity.
func (r *Repository) CategoryCounts(ctx context.Context, entityID string) (map[string]int, int, error) {
	ctx, span := tracing.StartSpan(ctx, "events.Repository.CategoryCounts")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("category", "COUNT(*) AS count")
	sb.From(eventsTable)
	sb.Where(
		sb.Equal("entity_id", entityID),
		sb.Equal("kind", models.KindRelated),
	)
	sb.GroupBy("category")

	query, args := sb.Build()
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to query category counts")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to query category counts")
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
			r.logger.WithContext(ctx).WithError(err).Error("Failed to scan category count")
			return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to query category counts")
		}
		counts[row.Category] = row.Count
		total += row.Count
	}
	if err := rows.Err(); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read category counts")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to query category counts")
	}

	return counts, total, nil
}

// Insert writes one event row. Used by the ingestion pipeline.
func (r *Repository) Insert(ctx context.Context, event *models.EndpointEvent) error {
	ctx, span := tracing.StartSpan(ctx, "events.Repository.Insert")
	defer span.End()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.CreatedAt = time.Now().UTC()

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(eventsTable)
	ib.Cols(eventColumns...)
	ib.Values(
		event.ID, event.EntityID, event.ParentEntityID, event.EndpointID, event.UniquePID, event.UniquePPID,
		event.Kind, event.Action, event.Category, event.ProcessName, event.OccurredAt, event.Data, event.CreatedAt,
	)
	// The store keeps at most one start and one end per entity.
	ib.SQL("ON CONFLICT (entity_id, action) WHERE kind = 'lifecycle' DO NOTHING")

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to insert endpoint event")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert endpoint event")
	}

	return nil
}
