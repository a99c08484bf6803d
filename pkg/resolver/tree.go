package resolver

import (
	"context"
	"sync"

	"github.com/Ramsey-B/arbor/pkg/models"
	"github.com/Ramsey-B/arbor/pkg/tracing"
)

// TreeParams holds the per-branch limits for a combined tree request. The
// tree endpoint never accepts cursors; it always starts fresh.
type TreeParams struct {
	Ancestors   int
	Generations int
	Children    int
	Events      int
}

// Tree composes ancestry, children and related events for one entity into a
// single response. The three sub-resolvers are independent reads and run
// concurrently; stats are attached to each lifecycle node afterwards, once
// the nodes are known.
func (s *Service) Tree(ctx context.Context, entityID string, params TreeParams, legacyEndpointID string) (*models.ResolverTree, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.Tree")
	defer span.End()

	var (
		wg       sync.WaitGroup
		ancestry *models.AncestryResponse
		children *models.ChildrenResponse
		related  *models.EventsResponse
		errs     [3]error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		ancestry, errs[0] = s.Ancestry(ctx, entityID, params.Ancestors, legacyEndpointID)
	}()
	go func() {
		defer wg.Done()
		children, errs[1] = s.Children(ctx, entityID, params.Children, params.Generations, nil, legacyEndpointID)
	}()
	go func() {
		defer wg.Done()
		related, errs[2] = s.RelatedEvents(ctx, entityID, params.Events, nil, legacyEndpointID)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	tree := &models.ResolverTree{
		EntityID:      entityID,
		Lifecycle:     []models.EndpointEvent{},
		Ancestry:      *ancestry,
		Children:      *children,
		RelatedEvents: *related,
	}

	// The origin's own node leads the ancestry slice when the entity exists.
	if len(ancestry.Ancestors) > 0 && ancestry.Ancestors[0].EntityID == entityID {
		tree.Lifecycle = ancestry.Ancestors[0].Lifecycle
	}

	for i := range tree.Ancestry.Ancestors {
		stats, err := s.Stats(ctx, tree.Ancestry.Ancestors[i].EntityID, legacyEndpointID)
		if err != nil {
			return nil, err
		}
		tree.Ancestry.Ancestors[i].Stats = stats
	}
	for i := range tree.Children.ChildNodes {
		stats, err := s.Stats(ctx, tree.Children.ChildNodes[i].EntityID, legacyEndpointID)
		if err != nil {
			return nil, err
		}
		tree.Children.ChildNodes[i].Stats = stats
	}

	// Top-level stats cover the origin only.
	if len(tree.Ancestry.Ancestors) > 0 {
		tree.Stats = tree.Ancestry.Ancestors[0].Stats
	} else {
		stats, err := s.Stats(ctx, entityID, legacyEndpointID)
		if err != nil {
			return nil, err
		}
		tree.Stats = stats
	}

	return tree, nil
}
