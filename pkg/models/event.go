package models

import (
	"encoding/json"
	"time"
)

// Event kinds. Lifecycle events describe the process itself; related events
// are everything else an endpoint reports against a process.
const (
	KindLifecycle = "lifecycle"
	KindRelated   = "related"
)

// Lifecycle actions. An entity has at most one of each.
const (
	ActionStart = "start"
	ActionEnd   = "end"
)

// Related-event categories reported by endpoints.
const (
	CategoryFile     = "file"
	CategoryRegistry = "registry"
	CategoryLibrary  = "library"
	CategoryDriver   = "driver"
	CategoryNetwork  = "network"
	CategoryDNS      = "dns"
	CategorySecurity = "security"
)

// CategoryCodes maps a related-event category to the stat codes it counts
// toward. Most categories map to a single code; dns also counts as network.
var CategoryCodes = map[string][]string{
	CategoryFile:     {CategoryFile},
	CategoryRegistry: {CategoryRegistry},
	CategoryLibrary:  {CategoryLibrary},
	CategoryDriver:   {CategoryDriver},
	CategoryNetwork:  {CategoryNetwork},
	CategoryDNS:      {CategoryDNS, CategoryNetwork},
	CategorySecurity: {CategorySecurity},
}

// EndpointEvent is one event row in the event store.
//
// Native-schema events are keyed by entity_id with the parent link in
// parent_entity_id. Legacy-schema events are keyed by (endpoint_id,
// unique_pid) with the parent link in unique_ppid; the legacy adapter
// normalizes those into entity_id/parent_entity_id before anything above the
// store sees them.
type EndpointEvent struct {
	ID             string          `json:"id" db:"id"`
	EntityID       string          `json:"entity_id" db:"entity_id"`
	ParentEntityID *string         `json:"parent_entity_id,omitempty" db:"parent_entity_id"`
	EndpointID     *string         `json:"endpoint_id,omitempty" db:"endpoint_id"`
	UniquePID      *int64          `json:"unique_pid,omitempty" db:"unique_pid"`
	UniquePPID     *int64          `json:"unique_ppid,omitempty" db:"unique_ppid"`
	Kind           string          `json:"kind" db:"kind"`
	Action         string          `json:"action,omitempty" db:"action"`
	Category       string          `json:"category,omitempty" db:"category"`
	ProcessName    string          `json:"process_name,omitempty" db:"process_name"`
	OccurredAt     time.Time       `json:"occurred_at" db:"occurred_at"`
	Data           json.RawMessage `json:"data,omitempty" db:"data"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// IsLifecycle reports whether the event is a process start or end record.
func (e *EndpointEvent) IsLifecycle() bool {
	return e.Kind == KindLifecycle
}

// ParentRef returns the parent entity ID, or "" at the root of the known
// ancestry.
func (e *EndpointEvent) ParentRef() string {
	if e.ParentEntityID == nil {
		return ""
	}
	return *e.ParentEntityID
}
