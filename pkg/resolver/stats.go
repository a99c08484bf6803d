package resolver

import (
	"context"

	"github.com/Ramsey-B/arbor/pkg/metrics"
	"github.com/Ramsey-B/arbor/pkg/models"
	"github.com/Ramsey-B/arbor/pkg/tracing"
)

// statsSource names the schema variant for cache keying.
func statsSource(legacyEndpointID string) string {
	if legacyEndpointID == "" {
		return "native"
	}
	return "legacy:" + legacyEndpointID
}

// Stats computes per-category related-event counts for one entity. A category
// mapping to several codes credits each code with the same count; Total
// counts every related event exactly once regardless of the breakdown.
func (s *Service) Stats(ctx context.Context, entityID string, legacyEndpointID string) (*models.Stats, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.Stats")
	defer span.End()

	source := statsSource(legacyEndpointID)
	if s.cache != nil {
		if stats, ok := s.cache.Get(ctx, source, entityID); ok {
			metrics.StatsCacheLookups.WithLabelValues("hit").Inc()
			return stats, nil
		}
		metrics.StatsCacheLookups.WithLabelValues("miss").Inc()
	}

	store := s.stores.ForRequest(legacyEndpointID)

	counts, total, err := store.CategoryCounts(ctx, entityID)
	if err != nil {
		return nil, err
	}

	stats := &models.Stats{
		ByCategory: make(map[string]int),
		Total:      total,
	}
	for category, count := range counts {
		codes, ok := models.CategoryCodes[category]
		if !ok {
			codes = []string{category}
		}
		for _, code := range codes {
			stats.ByCategory[code] += count
		}
	}

	if s.cache != nil {
		s.cache.Set(ctx, source, entityID, stats)
	}

	return stats, nil
}
