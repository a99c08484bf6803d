package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/arbor/pkg/tracing"
)

// LineageService keeps the process-tree projection current and answers
// ancestor-chain lookups against it. The projection is advisory: callers fall
// back to the event store on any error, so methods here never have to be
// authoritative.
type LineageService struct {
	client *Client
	logger ectologger.Logger
}

// NewLineageService creates a new lineage service.
func NewLineageService(client *Client, logger ectologger.Logger) *LineageService {
	return &LineageService{
		client: client,
		logger: logger,
	}
}

// UpsertProcess records a process start: the node itself and, when a parent
// is known, the PARENT_OF edge from its parent.
func (s *LineageService) UpsertProcess(ctx context.Context, entityID, parentEntityID, processName string, startedAt time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.UpsertProcess")
	defer span.End()

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (p:Process {entity_id: $entity_id})
			SET p.name = $name, p.started_at = $started_at
		`
		params := map[string]any{
			"entity_id":  entityID,
			"name":       processName,
			"started_at": startedAt.UTC().Format(time.RFC3339Nano),
		}

		if _, err := tx.Run(ctx, query, params); err != nil {
			return nil, err
		}

		if parentEntityID == "" {
			return nil, nil
		}

		edge := `
			MERGE (parent:Process {entity_id: $parent_id})
			MERGE (child:Process {entity_id: $entity_id})
			MERGE (parent)-[:PARENT_OF]->(child)
		`
		_, err := tx.Run(ctx, edge, map[string]any{
			"parent_id": parentEntityID,
			"entity_id": entityID,
		})
		return nil, err
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("entity_id", entityID).Error("Failed to upsert process node")
		return err
	}

	return nil
}

// MarkEnded records a process end on the projection node.
func (s *LineageService) MarkEnded(ctx context.Context, entityID string, endedAt time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.MarkEnded")
	defer span.End()

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (p:Process {entity_id: $entity_id})
			SET p.ended_at = $ended_at
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"entity_id": entityID,
			"ended_at":  endedAt.UTC().Format(time.RFC3339Nano),
		})
		return nil, err
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("entity_id", entityID).Error("Failed to mark process ended")
		return err
	}

	return nil
}

// AncestorChain returns up to max ancestor entity IDs of entityID ordered
// origin-outward, in a single traversal instead of one store query per hop.
func (s *LineageService) AncestorChain(ctx context.Context, entityID string, max int) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.AncestorChain")
	defer span.End()

	// Variable-length bounds cannot be parameterized in Cypher.
	query := fmt.Sprintf(`
		MATCH path = (a:Process)-[:PARENT_OF*1..%d]->(p:Process {entity_id: $entity_id})
		WITH nodes(path) AS chain
		ORDER BY size(chain) DESC
		LIMIT 1
		UNWIND chain AS node
		RETURN node.entity_id AS entity_id
	`, max)

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"entity_id": entityID})
		if err != nil {
			return nil, err
		}

		var ids []string
		for res.Next(ctx) {
			id, ok := res.Record().Get("entity_id")
			if !ok {
				continue
			}
			if v, ok := id.(string); ok {
				ids = append(ids, v)
			}
		}
		return ids, res.Err()
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("entity_id", entityID).Warn("Ancestor chain lookup failed; falling back to store walk")
		return nil, err
	}

	ids, _ := result.([]string)
	if len(ids) == 0 {
		return nil, nil
	}

	// The path returns root-first including the origin; reorder to
	// origin-outward and drop the origin itself.
	var chain []string
	for i := len(ids) - 1; i >= 0; i-- {
		if ids[i] == entityID {
			continue
		}
		chain = append(chain, ids[i])
	}
	return chain, nil
}
