package resolver

import (
	"context"
	"time"

	"github.com/Ramsey-B/arbor/internal/repositories/events"
	"github.com/Ramsey-B/arbor/pkg/models"
	"github.com/Ramsey-B/arbor/pkg/tracing"
)

// Ancestry walks parent links upward from entityID. The response holds the
// origin's own lifecycle node first, then up to maxAncestors ancestors
// ordered origin-outward. NextAncestor is nil exactly when the walk reached a
// node with no parent link, regardless of whether the budget was exhausted;
// when the budget ran out with a further parent known, it names that parent
// so the caller can continue the walk.
func (s *Service) Ancestry(ctx context.Context, entityID string, maxAncestors int, legacyEndpointID string) (resp *models.AncestryResponse, err error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.Ancestry")
	defer span.End()
	start := time.Now()
	defer func() { observe("ancestry", start, err) }()

	if err := s.validateLimit("ancestors", maxAncestors); err != nil {
		return nil, err
	}

	store := s.stores.ForRequest(legacyEndpointID)

	originLifecycle, err := store.LifecycleEvents(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if len(originLifecycle) == 0 {
		// Unknown entity: nothing to show, not an error.
		return &models.AncestryResponse{Ancestors: []models.LifecycleNode{}}, nil
	}

	nodes := []models.LifecycleNode{{EntityID: entityID, Lifecycle: originLifecycle}}
	parent := lifecycleParent(originLifecycle)
	collected := 0

	// The graph projection can hand us the whole chain in one traversal;
	// the legacy schema has no projection. Any failure or gap falls back to
	// the hop-by-hop store walk below.
	if s.lineage != nil && legacyEndpointID == "" && parent != "" {
		chain, chainErr := s.lineage.AncestorChain(ctx, entityID, maxAncestors)
		if chainErr == nil && len(chain) > 0 {
			prefetched, n, p, err := s.ancestorsFromChain(ctx, store, chain, maxAncestors)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				nodes = append(nodes, prefetched...)
				collected = n
				parent = p
			}
		}
	}

	for parent != "" && collected < maxAncestors {
		lifecycle, err := store.LifecycleEvents(ctx, parent)
		if err != nil {
			return nil, err
		}
		if len(lifecycle) == 0 {
			// The parent link points at an entity the store has never seen;
			// the known chain ends here.
			parent = ""
			break
		}

		nodes = append(nodes, models.LifecycleNode{EntityID: parent, Lifecycle: lifecycle})
		collected++
		parent = lifecycleParent(lifecycle)
	}

	resp = &models.AncestryResponse{Ancestors: nodes}
	if parent != "" && collected == maxAncestors {
		resp.NextAncestor = &parent
	}
	return resp, nil
}

// ancestorsFromChain materializes lifecycle nodes for a projection-provided
// ancestor chain with a single batched store read. It returns the nodes, how
// many were materialized, and the parent link left after the last one. A gap
// (chain entry the store has no events for) truncates the result; the caller
// resumes the hop walk from the returned parent.
func (s *Service) ancestorsFromChain(ctx context.Context, store events.Store, chain []string, maxAncestors int) ([]models.LifecycleNode, int, string, error) {
	if len(chain) > maxAncestors {
		chain = chain[:maxAncestors]
	}

	rows, err := store.LifecycleEventsForEntities(ctx, chain)
	if err != nil {
		return nil, 0, "", err
	}
	grouped := groupLifecycle(rows)

	var nodes []models.LifecycleNode
	parent := ""
	for _, id := range chain {
		lifecycle, ok := grouped[id]
		if !ok {
			// Projection is ahead of the store; stop at the gap.
			return nodes, len(nodes), parent, nil
		}
		nodes = append(nodes, models.LifecycleNode{EntityID: id, Lifecycle: lifecycle})
		parent = lifecycleParent(lifecycle)
	}

	return nodes, len(nodes), parent, nil
}
