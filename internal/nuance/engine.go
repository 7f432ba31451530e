// Package nuance detects contradictory knowledge-graph edges and tracks
// their review lifecycle. A review starts PENDING, which feeds the IEF
// nuance penalty, and resolves either with both edges standing or with one
// edge retired in favour of the other.
package nuance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/josephgoksu/MindWing/internal/graph"
	"github.com/josephgoksu/MindWing/types"
)

// Review statuses.
const (
	StatusPending    = "PENDING"
	StatusResolved   = "RESOLVED"
	StatusSuperseded = "SUPERSEDED"
)

// Review pairs two edges between the same nodes that assert something
// contradictory.
type Review struct {
	ID         string     `json:"id"`
	EdgeAID    string     `json:"edge_a_id"`
	EdgeBID    string     `json:"edge_b_id"`
	Reason     string     `json:"reason"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// DefaultExclusiveRelations lists relation pairs that cannot both hold
// between the same two nodes.
func DefaultExclusiveRelations() map[string]string {
	return map[string]string{
		"SUPPORTS":   "CONTRADICTS",
		"USES":       "AVOIDS",
		"DEPENDS_ON": "INDEPENDENT_OF",
		"SOLVES":     "CAUSES",
	}
}

// Options configures an Engine.
type Options struct {
	// ExclusiveRelations maps each relation to the relation it excludes.
	// Nil means DefaultExclusiveRelations.
	ExclusiveRelations map[string]string
	Log                *zap.Logger
}

// Engine owns the in-memory review registry. Mutation goes through a
// single-writer lock; reads hand out copies.
type Engine struct {
	graph     *graph.Store
	exclusive map[string]bool
	log       *zap.Logger

	mu       sync.RWMutex
	reviews  map[string]*Review
	reviewed map[string]string // unordered edge pair key → review id
}

// NewEngine wires the dissonance engine onto the graph store.
func NewEngine(g *graph.Store, opts Options) *Engine {
	pairs := opts.ExclusiveRelations
	if pairs == nil {
		pairs = DefaultExclusiveRelations()
	}
	exclusive := make(map[string]bool, len(pairs))
	for a, b := range pairs {
		exclusive[pairKey(a, b)] = true
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		graph:     g,
		exclusive: exclusive,
		log:       log,
		reviews:   map[string]*Review{},
		reviewed:  map[string]string{},
	}
}

// DetectEdge checks one freshly inserted edge against every other edge
// between the same node pair and opens PENDING reviews for conflicts.
// Already-reviewed pairs are not reopened.
func (e *Engine) DetectEdge(ctx context.Context, edgeID string) ([]Review, error) {
	edge, err := e.graph.EdgeByID(ctx, edgeID)
	if err != nil {
		return nil, err
	}
	if edge == nil {
		return nil, types.NewMCPError(types.ErrNotFound, fmt.Sprintf("edge %s not found", edgeID), nil)
	}
	if edge.Superseded() {
		return nil, nil
	}

	siblings, err := e.graph.EdgesBetween(ctx, edge.SourceID, edge.TargetID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var opened []Review
	for i := range siblings {
		sib := &siblings[i]
		if sib.ID == edge.ID || sib.Superseded() {
			continue
		}
		reason, clash := e.conflict(edge, sib)
		if !clash {
			continue
		}
		if r := e.propose(edge.ID, sib.ID, reason); r != nil {
			opened = append(opened, *r)
		}
	}
	return opened, nil
}

// ScanAll sweeps the whole graph for conflicting edge pairs. Used on
// demand from the CLI and at server startup to rebuild the registry.
func (e *Engine) ScanAll(ctx context.Context) ([]Review, error) {
	edges, err := e.graph.AllEdges(ctx)
	if err != nil {
		return nil, err
	}

	groups := map[string][]*graph.Edge{}
	var keys []string
	for i := range edges {
		edge := &edges[i]
		if edge.Superseded() {
			continue
		}
		key := pairKey(edge.SourceID, edge.TargetID)
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], edge)
	}
	sort.Strings(keys)

	e.mu.Lock()
	defer e.mu.Unlock()

	var opened []Review
	for _, key := range keys {
		group := groups[key]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				reason, clash := e.conflict(group[i], group[j])
				if !clash {
					continue
				}
				if r := e.propose(group[i].ID, group[j].ID, reason); r != nil {
					opened = append(opened, *r)
				}
			}
		}
	}
	return opened, nil
}

// PendingEdgeIDs returns a copy of every edge id currently under a PENDING
// review. The IEF scorer applies the nuance penalty to this set.
func (e *Engine) PendingEdgeIDs() map[string]struct{} {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make(map[string]struct{}, len(e.reviews)*2)
	for _, r := range e.reviews {
		if r.Status != StatusPending {
			continue
		}
		ids[r.EdgeAID] = struct{}{}
		ids[r.EdgeBID] = struct{}{}
	}
	return ids
}

// Reviews returns a snapshot of all reviews, oldest first.
func (e *Engine) Reviews() []Review {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Review, 0, len(e.reviews))
	for _, r := range e.reviews {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Get returns one review by id.
func (e *Engine) Get(id string) (Review, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.reviews[id]
	if !ok {
		return Review{}, false
	}
	return *r, true
}

// Resolve transitions a PENDING review. With keepEdgeID empty both edges
// stand (RESOLVED); otherwise the named edge survives and the other is
// retired by setting its superseded_by property (SUPERSEDED).
func (e *Engine) Resolve(ctx context.Context, reviewID, keepEdgeID string) (Review, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.reviews[reviewID]
	if !ok {
		return Review{}, types.NewMCPError(types.ErrNotFound, fmt.Sprintf("nuance review %s not found", reviewID), nil)
	}
	if r.Status != StatusPending {
		return Review{}, types.ValidationError("review_id", fmt.Sprintf("review is already %s", r.Status))
	}

	now := time.Now().UTC()
	if keepEdgeID == "" {
		r.Status = StatusResolved
		r.ResolvedAt = &now
		e.log.Info("nuance review resolved, both edges stand", zap.String("review_id", r.ID))
		return *r, nil
	}

	var retire string
	switch keepEdgeID {
	case r.EdgeAID:
		retire = r.EdgeBID
	case r.EdgeBID:
		retire = r.EdgeAID
	default:
		return Review{}, types.ValidationError("keep_edge_id", "edge is not part of this review")
	}

	if err := e.graph.SetEdgeProperty(ctx, retire, graph.PropSupersededBy, keepEdgeID); err != nil {
		return Review{}, err
	}
	r.Status = StatusSuperseded
	r.ResolvedAt = &now
	e.log.Info("nuance review superseded edge",
		zap.String("review_id", r.ID),
		zap.String("kept", keepEdgeID),
		zap.String("retired", retire))
	return *r, nil
}

// propose opens a review unless the pair was already reviewed. Caller
// holds the write lock.
func (e *Engine) propose(edgeAID, edgeBID, reason string) *Review {
	key := pairKey(edgeAID, edgeBID)
	if _, seen := e.reviewed[key]; seen {
		return nil
	}
	r := &Review{
		ID:        uuid.NewString(),
		EdgeAID:   edgeAID,
		EdgeBID:   edgeBID,
		Reason:    reason,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	e.reviews[r.ID] = r
	e.reviewed[key] = r.ID
	e.log.Info("nuance review opened",
		zap.String("review_id", r.ID),
		zap.String("edge_a", edgeAID),
		zap.String("edge_b", edgeBID),
		zap.String("reason", reason))
	return r
}

// conflict reports whether two live edges between the same node pair
// contradict each other.
func (e *Engine) conflict(a, b *graph.Edge) (string, bool) {
	if e.exclusive[pairKey(a.Relation, b.Relation)] {
		return fmt.Sprintf("relation %s is mutually exclusive with %s", a.Relation, b.Relation), true
	}
	if a.Relation == b.Relation && opposedPolarity(a.Polarity(), b.Polarity()) {
		return fmt.Sprintf("opposed polarity on relation %s", a.Relation), true
	}
	return "", false
}

func opposedPolarity(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	return (a == "positive" && b == "negative") || (a == "negative" && b == "positive")
}

// pairKey builds an order-independent key for two ids or relation names.
func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
