// Package resolver answers process-genealogy queries (ancestry, children,
// related events, combined tree) over the endpoint event store.
package resolver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/arbor/internal/repositories/events"
	"github.com/Ramsey-B/arbor/pkg/graph"
	"github.com/Ramsey-B/arbor/pkg/metrics"
	"github.com/Ramsey-B/arbor/pkg/models"
)

// DefaultMaxPageSize bounds every pagination parameter (ancestors, children,
// generations, events).
const DefaultMaxPageSize = 2000

// StoreSelector resolves the schema variant for a request. Satisfied by
// events.Selector; tests substitute their own.
type StoreSelector interface {
	ForRequest(legacyEndpointID string) events.Store
}

// StatsCache is an optional read-through cache for per-entity stats.
type StatsCache interface {
	Get(ctx context.Context, source, entityID string) (*models.Stats, bool)
	Set(ctx context.Context, source, entityID string, stats *models.Stats)
}

// Service implements the resolver operations. All operations are stateless,
// idempotent reads; nothing here mutates shared state.
type Service struct {
	stores      StoreSelector
	lineage     *graph.LineageService // optional fast path, nil when disabled
	cache       StatsCache            // optional, nil when disabled
	logger      ectologger.Logger
	maxPageSize int
}

// NewService creates a resolver service. lineage and cache may be nil.
func NewService(stores StoreSelector, lineage *graph.LineageService, cache StatsCache, logger ectologger.Logger, maxPageSize int) *Service {
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	return &Service{
		stores:      stores,
		lineage:     lineage,
		cache:       cache,
		logger:      logger,
		maxPageSize: maxPageSize,
	}
}

// observe records a resolver operation's outcome and duration.
func observe(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.ResolverRequestsTotal.WithLabelValues(operation, outcome).Inc()
	metrics.ResolverRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// validateLimit rejects out-of-bounds pagination parameters before anything
// touches the store.
func (s *Service) validateLimit(name string, value int) error {
	if value < 1 || value > s.maxPageSize {
		return httperror.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("%s must be between 1 and %d, got %d", name, s.maxPageSize, value))
	}
	return nil
}

// lifecycleParent returns the parent entity ID recorded on an entity's
// lifecycle events, or "" when the entity is the root of its known ancestry.
func lifecycleParent(lifecycle []models.EndpointEvent) string {
	for i := range lifecycle {
		if ref := lifecycle[i].ParentRef(); ref != "" {
			return ref
		}
	}
	return ""
}

// groupLifecycle buckets lifecycle events by entity, preserving order.
func groupLifecycle(rows []models.EndpointEvent) map[string][]models.EndpointEvent {
	grouped := make(map[string][]models.EndpointEvent)
	for _, row := range rows {
		grouped[row.EntityID] = append(grouped[row.EntityID], row)
	}
	return grouped
}
