package graph

import "time"

// Well-known property keys on nodes and edges.
const (
	PropEdgeType       = "edge_type"
	PropPolarity       = "polarity"
	PropSupersededBy   = "superseded_by"
	PropMemoryStrength = "memory_strength"
)

// EdgeTypeConstitutive marks edges whose relation is part of what the
// source *is*, not merely something it does; they score above the usual
// ceiling in the integrative evaluation.
const EdgeTypeConstitutive = "constitutive"

// DefaultLabel is assigned to endpoints auto-created by AddEdge.
const DefaultLabel = "Entity"

// Node is one typed named entity. VectorID anchors the node to an insight
// embedding when set.
type Node struct {
	ID         string
	Label      string
	Name       string
	Properties map[string]interface{}
	VectorID   *int64
	CreatedAt  time.Time
}

// Edge is one typed directed relation. AccessCount and LastAccessed drive
// the memory-strength decay; ModifiedAt drives the recency boost.
type Edge struct {
	ID           string
	SourceID     string
	TargetID     string
	Relation     string
	Weight       float64
	Properties   map[string]interface{}
	CreatedAt    time.Time
	ModifiedAt   time.Time
	LastAccessed time.Time
	AccessCount  int64
}

// Superseded reports whether a nuance resolution retired this edge.
func (e *Edge) Superseded() bool {
	if e.Properties == nil {
		return false
	}
	v, ok := e.Properties[PropSupersededBy]
	if !ok || v == nil {
		return false
	}
	s, isString := v.(string)
	return !isString || s != ""
}

// EdgeType reads properties.edge_type, empty when unset.
func (e *Edge) EdgeType() string {
	if e.Properties == nil {
		return ""
	}
	s, _ := e.Properties[PropEdgeType].(string)
	return s
}

// Polarity reads properties.polarity, empty when unset.
func (e *Edge) Polarity() string {
	if e.Properties == nil {
		return ""
	}
	s, _ := e.Properties[PropPolarity].(string)
	return s
}
