package models

// Stats summarizes the related events of a single entity.
type Stats struct {
	ByCategory map[string]int `json:"byCategory"`
	Total      int            `json:"total"`
}

// LifecycleNode is one process in a resolver tree: its entity ID plus the
// lifecycle events (start, optionally end) known for it.
type LifecycleNode struct {
	EntityID  string          `json:"entityID"`
	Lifecycle []EndpointEvent `json:"lifecycle"`
	Stats     *Stats          `json:"stats,omitempty"`
}

// ChildNode is a lifecycle node in the children traversal. NextChild, when
// set, continues the child scan under this node (not under the request root).
type ChildNode struct {
	LifecycleNode
	ParentEntityID string  `json:"parentEntityID"`
	NextChild      *string `json:"nextChild"`
}

// AncestryResponse is the result of an ancestry walk. Ancestors is ordered
// origin first, then each parent outward. NextAncestor is nil once the walk
// reached a node with no parent link.
type AncestryResponse struct {
	Ancestors    []LifecycleNode `json:"ancestors"`
	NextAncestor *string         `json:"nextAncestor"`
}

// ChildrenResponse is the result of a breadth-first children traversal.
// NextChild continues the request root's own first-generation scan.
type ChildrenResponse struct {
	ChildNodes []ChildNode `json:"childNodes"`
	NextChild  *string     `json:"nextChild"`
}

// EventsResponse is one page of related events. NextEvent is non-nil exactly
// when the page was full and more events may exist.
type EventsResponse struct {
	EntityID  string          `json:"entityID"`
	Events    []EndpointEvent `json:"events"`
	NextEvent *string         `json:"nextEvent"`
}

// ResolverTree is the combined tree response: origin lifecycle, ancestry,
// children, one page of related events, and the origin's stats.
type ResolverTree struct {
	EntityID      string           `json:"entityID"`
	Lifecycle     []EndpointEvent  `json:"lifecycle"`
	Ancestry      AncestryResponse `json:"ancestry"`
	Children      ChildrenResponse `json:"children"`
	RelatedEvents EventsResponse   `json:"relatedEvents"`
	Stats         *Stats           `json:"stats"`
}
