package models

import (
	"encoding/json"
	"time"
)

// EventEnvelope is the wire shape of one endpoint event on the ingest topic.
type EventEnvelope struct {
	ID             string          `json:"id"`
	EntityID       string          `json:"entity_id" validate:"required"`
	ParentEntityID string          `json:"parent_entity_id"`
	EndpointID     string          `json:"endpoint_id"`
	UniquePID      *int64          `json:"unique_pid"`
	UniquePPID     *int64          `json:"unique_ppid"`
	Kind           string          `json:"kind" validate:"required,oneof=lifecycle related"`
	Action         string          `json:"action" validate:"required_if=Kind lifecycle,omitempty,oneof=start end"`
	Category       string          `json:"category" validate:"required_if=Kind related"`
	ProcessName    string          `json:"process_name"`
	OccurredAt     time.Time       `json:"occurred_at" validate:"required"`
	Data           json.RawMessage `json:"data"`
}

// ToEvent converts the envelope into a store row.
func (e *EventEnvelope) ToEvent() *EndpointEvent {
	event := &EndpointEvent{
		ID:          e.ID,
		EntityID:    e.EntityID,
		UniquePID:   e.UniquePID,
		UniquePPID:  e.UniquePPID,
		Kind:        e.Kind,
		Action:      e.Action,
		Category:    e.Category,
		ProcessName: e.ProcessName,
		OccurredAt:  e.OccurredAt.UTC(),
		Data:        e.Data,
	}
	if e.ParentEntityID != "" {
		parent := e.ParentEntityID
		event.ParentEntityID = &parent
	}
	if e.EndpointID != "" {
		endpoint := e.EndpointID
		event.EndpointID = &endpoint
	}
	return event
}
