package resolver

import (
	"context"
	"time"

	"github.com/Ramsey-B/arbor/pkg/cursor"
	"github.com/Ramsey-B/arbor/pkg/models"
	"github.com/Ramsey-B/arbor/pkg/tracing"
)

// RelatedEvents returns one page of an entity's non-lifecycle events, ordered
// by timestamp ascending with event ID as the tie-break. NextEvent is set
// exactly when the page was full and more events exist; the caller passes it
// back verbatim to resume. A cursor pointing past the data yields an empty
// page, while an invalid cursor will already have been decoded to nil by the
// route and restarts the scan from the beginning.
func (s *Service) RelatedEvents(ctx context.Context, entityID string, pageSize int, after *cursor.Cursor, legacyEndpointID string) (resp *models.EventsResponse, err error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.RelatedEvents")
	defer span.End()
	start := time.Now()
	defer func() { observe("events", start, err) }()

	if err := s.validateLimit("events", pageSize); err != nil {
		return nil, err
	}

	store := s.stores.ForRequest(legacyEndpointID)

	rows, err := store.RelatedEvents(ctx, entityID, pageSize+1, after)
	if err != nil {
		return nil, err
	}

	resp = &models.EventsResponse{
		EntityID: entityID,
		Events:   []models.EndpointEvent{},
	}

	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		token := cursor.Encode(last.OccurredAt, last.ID)
		resp.NextEvent = &token
	}
	if len(rows) > 0 {
		resp.Events = rows
	}

	return resp, nil
}
