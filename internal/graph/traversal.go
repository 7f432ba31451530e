package graph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/josephgoksu/MindWing/internal/ief"
	"github.com/josephgoksu/MindWing/types"
)

// Traversal depth bounds.
const (
	DefaultDepth = 1
	MaxDepth     = 5
)

// NeighborOptions controls a Neighbors traversal. Pending carries the edge
// ids under unresolved dissonance review for the IEF penalty.
type NeighborOptions struct {
	Relation          string
	Depth             int
	Direction         string
	IncludeSuperseded bool
	UseIEF            bool
	QueryEmbedding    []float32
	Pending           map[string]struct{}
	DecayTau          time.Duration
}

// Neighbor is one traversal result: the reached node plus the edge that
// led to it.
type Neighbor struct {
	Node
	Relation       string
	EdgeID         string
	Distance       int
	Weight         float64
	RelevanceScore float64
	IEFScore       *float64
	IEFComponents  *ief.Components
}

// Neighbors expands a breadth-first frontier from the named node up to
// opts.Depth hops. An unknown start node yields an empty result. Traversed
// edges are reinforced (access count and last_accessed bumped) after a
// successful walk. Results rank by IEF score when requested, otherwise by
// relevance.
func (s *Store) Neighbors(ctx context.Context, nodeName string, opts NeighborOptions) ([]Neighbor, error) {
	if opts.Depth <= 0 {
		opts.Depth = DefaultDepth
	}
	if opts.Depth > MaxDepth {
		opts.Depth = MaxDepth
	}
	switch opts.Direction {
	case "":
		opts.Direction = "both"
	case "both", "in", "out":
	default:
		return nil, types.ValidationError("direction", "direction must be both, in or out")
	}

	start, err := s.NodeByName(ctx, nodeName)
	if err != nil {
		return nil, err
	}
	if start == nil {
		return []Neighbor{}, nil
	}

	now := time.Now().UTC()
	nodeCache := map[string]*Node{start.ID: start}
	visited := map[string]bool{start.ID: true}
	queue := []struct {
		id    string
		depth int
	}{{start.ID, 0}}

	var neighbors []Neighbor
	var traversed []string

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("traversal cancelled: %w", err)
		}

		current := queue[0]
		queue = queue[1:]

		if current.depth >= opts.Depth {
			continue
		}

		edges, err := s.EdgesTouching(ctx, current.id, opts.Direction, opts.Relation)
		if err != nil {
			return nil, err
		}

		for i := range edges {
			edge := &edges[i]
			if !opts.IncludeSuperseded && edge.Superseded() {
				continue
			}

			neighborID := edge.TargetID
			if neighborID == current.id {
				neighborID = edge.SourceID
			}
			if visited[neighborID] {
				continue
			}
			visited[neighborID] = true

			node, err := s.cachedNode(ctx, nodeCache, neighborID)
			if err != nil {
				return nil, err
			}
			if node == nil {
				continue
			}

			n := Neighbor{
				Node:           *node,
				Relation:       edge.Relation,
				EdgeID:         edge.ID,
				Distance:       current.depth + 1,
				Weight:         edge.Weight,
				RelevanceScore: Relevance(edge, now, opts.DecayTau),
			}
			if opts.UseIEF {
				result := s.scoreEdge(ctx, nodeCache, edge, n.RelevanceScore, opts.QueryEmbedding, opts.Pending, now)
				n.IEFScore = &result.Score
				comps := result.Components
				n.IEFComponents = &comps
			}
			neighbors = append(neighbors, n)
			traversed = append(traversed, edge.ID)

			if current.depth+1 < opts.Depth {
				queue = append(queue, struct {
					id    string
					depth int
				}{neighborID, current.depth + 1})
			}
		}
	}

	if err := s.reinforceEdges(ctx, traversed, now); err != nil {
		return nil, err
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		a, b := rankingScore(&neighbors[i], opts.UseIEF), rankingScore(&neighbors[j], opts.UseIEF)
		if a != b {
			return a > b
		}
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].Name < neighbors[j].Name
	})

	return neighbors, nil
}

func rankingScore(n *Neighbor, useIEF bool) float64 {
	if useIEF && n.IEFScore != nil {
		return *n.IEFScore
	}
	return n.RelevanceScore
}

func (s *Store) cachedNode(ctx context.Context, cache map[string]*Node, id string) (*Node, error) {
	if node, ok := cache[id]; ok {
		return node, nil
	}
	node, err := s.NodeByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cache[id] = node
	return node, nil
}

// scoreEdge assembles the IEF inputs for one edge: the decayed relevance,
// the endpoint embeddings behind vector_id anchors, and the pending set.
func (s *Store) scoreEdge(ctx context.Context, cache map[string]*Node, edge *Edge, relevance float64, queryEmbedding []float32, pending map[string]struct{}, now time.Time) ief.Result {
	data := ief.EdgeData{
		EdgeID:     edge.ID,
		Relevance:  relevance,
		ModifiedAt: edge.ModifiedAt,
		EdgeType:   edge.EdgeType(),
	}

	if s.vectors != nil && len(queryEmbedding) > 0 {
		data.SourceVec = s.endpointEmbedding(ctx, cache, edge.SourceID)
		data.TargetVec = s.endpointEmbedding(ctx, cache, edge.TargetID)
	}

	return ief.Score(data, queryEmbedding, pending, now)
}

func (s *Store) endpointEmbedding(ctx context.Context, cache map[string]*Node, nodeID string) []float32 {
	node, err := s.cachedNode(ctx, cache, nodeID)
	if err != nil || node == nil || node.VectorID == nil {
		return nil
	}
	vec, found, err := s.vectors.InsightEmbedding(ctx, *node.VectorID)
	if err != nil || !found {
		return nil
	}
	return vec
}
