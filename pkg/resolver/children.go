package resolver

import (
	"context"
	"time"

	"github.com/Ramsey-B/arbor/pkg/cursor"
	"github.com/Ramsey-B/arbor/pkg/models"
	"github.com/Ramsey-B/arbor/pkg/tracing"
)

// childWorkItem is one pending child scan: a parent whose children still need
// to be fetched and how many generations remain below it. An explicit queue
// keeps the traversal breadth-first and the memory bounded; no recursion.
type childWorkItem struct {
	parentID   string
	generation int
	after      *cursor.Cursor
}

// Children walks child links downward from entityID, breadth-first by
// generation. The after cursor applies only to the request root's own scan;
// each returned node carries its own nextChild cursor for continuing under
// that node, independent of its siblings. The response-level NextChild
// continues the root's first-generation scan.
func (s *Service) Children(ctx context.Context, entityID string, maxChildrenPerNode, maxGenerations int, after *cursor.Cursor, legacyEndpointID string) (resp *models.ChildrenResponse, err error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.Children")
	defer span.End()
	start := time.Now()
	defer func() { observe("children", start, err) }()

	if err := s.validateLimit("children", maxChildrenPerNode); err != nil {
		return nil, err
	}
	if err := s.validateLimit("generations", maxGenerations); err != nil {
		return nil, err
	}

	store := s.stores.ForRequest(legacyEndpointID)

	resp = &models.ChildrenResponse{ChildNodes: []models.ChildNode{}}
	// Index into resp.ChildNodes by entity, to attach a node's own
	// continuation cursor when its children are scanned later.
	nodeIndex := make(map[string]int)

	queue := []childWorkItem{{parentID: entityID, generation: 1, after: after}}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		// Over-fetch by one to learn whether a continuation cursor is needed
		// without a second query.
		rows, err := store.Children(ctx, item.parentID, maxChildrenPerNode+1, item.after)
		if err != nil {
			return nil, err
		}

		var next *string
		if len(rows) > maxChildrenPerNode {
			rows = rows[:maxChildrenPerNode]
			last := rows[len(rows)-1]
			token := cursor.Encode(last.OccurredAt, last.ID)
			next = &token
		}

		// The continuation belongs to the node whose children were scanned:
		// the response itself for the request root, the node's own entry
		// otherwise.
		if item.parentID == entityID {
			resp.NextChild = next
		} else if idx, ok := nodeIndex[item.parentID]; ok {
			resp.ChildNodes[idx].NextChild = next
		}

		if len(rows) == 0 {
			continue
		}

		childIDs := make([]string, 0, len(rows))
		for _, row := range rows {
			childIDs = append(childIDs, row.EntityID)
		}
		lifecycle, err := store.LifecycleEventsForEntities(ctx, childIDs)
		if err != nil {
			return nil, err
		}
		grouped := groupLifecycle(lifecycle)

		for _, row := range rows {
			events := grouped[row.EntityID]
			if len(events) == 0 {
				events = []models.EndpointEvent{row}
			}
			nodeIndex[row.EntityID] = len(resp.ChildNodes)
			resp.ChildNodes = append(resp.ChildNodes, models.ChildNode{
				LifecycleNode: models.LifecycleNode{
					EntityID:  row.EntityID,
					Lifecycle: events,
				},
				ParentEntityID: item.parentID,
			})

			if item.generation < maxGenerations {
				queue = append(queue, childWorkItem{
					parentID:   row.EntityID,
					generation: item.generation + 1,
				})
			}
		}
	}

	return resp, nil
}
