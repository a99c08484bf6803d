// Package events is the event store adapter: time-ordered lookup of
// lifecycle and related endpoint events by entity and parent identifiers.
package events

import (
	"context"

	"github.com/Ramsey-B/arbor/pkg/cursor"
	"github.com/Ramsey-B/arbor/pkg/models"
)

// Store is the query surface the resolvers run against. Both schema variants
// (native and legacy) implement it; the variant is picked once at request
// entry based on the presence of a legacy endpoint ID.
//
// All scans are ordered by (occurred_at, id) ascending. A non-nil cursor
// resumes strictly after the referenced document; a cursor pointing past the
// data yields an empty page, not an error. Unknown entity IDs yield empty
// results.
type Store interface {
	// LifecycleEvents returns the start/end events for one entity.
	LifecycleEvents(ctx context.Context, entityID string) ([]models.EndpointEvent, error)

	// LifecycleEventsForEntities returns the start/end events for a set of
	// entities in one scan.
	LifecycleEventsForEntities(ctx context.Context, entityIDs []string) ([]models.EndpointEvent, error)

	// RelatedEvents returns one page of non-lifecycle events for an entity.
	RelatedEvents(ctx context.Context, entityID string, limit int, after *cursor.Cursor) ([]models.EndpointEvent, error)

	// Children returns one page of start-lifecycle events of the direct
	// children of parentID.
	Children(ctx context.Context, parentID string, limit int, after *cursor.Cursor) ([]models.EndpointEvent, error)

	// CategoryCounts returns per-category related-event counts and the total
	// related-event count for one entity.
	CategoryCounts(ctx context.Context, entityID string) (map[string]int, int, error)
}

// Selector resolves the schema variant for a request.
type Selector struct {
	native *Repository
	legacy *LegacyRepository
}

// NewSelector creates a selector over both schema variants.
func NewSelector(native *Repository, legacy *LegacyRepository) *Selector {
	return &Selector{
		native: native,
		legacy: legacy,
	}
}

// ForRequest returns the store for a request: the legacy variant bound to the
// given endpoint when legacyEndpointID is present, the native variant
// otherwise.
func (s *Selector) ForRequest(legacyEndpointID string) Store {
	if legacyEndpointID != "" {
		return s.legacy.ForEndpoint(legacyEndpointID)
	}
	return s.native
}
