package graph

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// MaxPaths caps how many equal-length paths a search reports.
const MaxPaths = 10

// PathOptions controls a FindPaths search.
type PathOptions struct {
	MaxDepth       int
	UseIEF         bool
	QueryEmbedding []float32
	Pending        map[string]struct{}
	DecayTau       time.Duration
}

// PathHop is one node along a discovered path. Relation and EdgeID name
// the edge that led into the node; both are empty on the start hop.
type PathHop struct {
	NodeID   string
	Name     string
	Label    string
	Relation string
	EdgeID   string
}

// PathResult reports every shortest path between the endpoints, capped at
// MaxPaths. MeanIEF is the best path's mean edge score when requested.
type PathResult struct {
	Found   bool
	Length  int
	Paths   [][]PathHop
	MeanIEF *float64
}

type predecessor struct {
	nodeID string
	edge   Edge
}

// FindPaths runs an undirected breadth-first search between two named
// nodes and collects every path of the minimal length. Superseded edges
// never participate. Unknown endpoints yield Found=false.
func (s *Store) FindPaths(ctx context.Context, startName, endName string, opts PathOptions) (*PathResult, error) {
	if opts.MaxDepth <= 0 || opts.MaxDepth > MaxDepth {
		opts.MaxDepth = MaxDepth
	}

	start, err := s.NodeByName(ctx, startName)
	if err != nil {
		return nil, err
	}
	end, err := s.NodeByName(ctx, endName)
	if err != nil {
		return nil, err
	}
	if start == nil || end == nil {
		return &PathResult{}, nil
	}
	if start.ID == end.ID {
		return &PathResult{
			Found: true,
			Paths: [][]PathHop{{{NodeID: start.ID, Name: start.Name, Label: start.Label}}},
		}, nil
	}

	nodeCache := map[string]*Node{start.ID: start, end.ID: end}
	dist := map[string]int{start.ID: 0}
	preds := map[string][]predecessor{}
	queue := []string{start.ID}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("path search cancelled: %w", err)
		}

		current := queue[0]
		queue = queue[1:]
		depth := dist[current]
		if depth >= opts.MaxDepth {
			continue
		}
		if endDist, found := dist[end.ID]; found && depth >= endDist {
			// Every shortest hop into the end node is already recorded.
			break
		}

		edges, err := s.EdgesTouching(ctx, current, "both", "")
		if err != nil {
			return nil, err
		}
		for i := range edges {
			edge := edges[i]
			if edge.Superseded() {
				continue
			}
			next := edge.TargetID
			if next == current {
				next = edge.SourceID
			}
			if next == current {
				continue
			}
			if seen, found := dist[next]; found {
				if seen == depth+1 {
					preds[next] = append(preds[next], predecessor{current, edge})
				}
				continue
			}
			dist[next] = depth + 1
			preds[next] = append(preds[next], predecessor{current, edge})
			queue = append(queue, next)
		}
	}

	length, found := dist[end.ID]
	if !found {
		return &PathResult{}, nil
	}

	idPaths := collectPaths(start.ID, end.ID, preds, MaxPaths)
	result := &PathResult{Found: true, Length: length}
	for _, p := range idPaths {
		hops, err := s.renderPath(ctx, nodeCache, p)
		if err != nil {
			return nil, err
		}
		result.Paths = append(result.Paths, hops)
	}

	if opts.UseIEF {
		if err := s.rankPathsByIEF(ctx, nodeCache, result, idPaths, opts); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// collectPaths backtracks from the end node through the predecessor lists,
// enumerating shortest paths in frontier order until the cap is hit. Each
// returned path alternates hop entries carrying the inbound edge.
func collectPaths(startID, endID string, preds map[string][]predecessor, limit int) [][]predecessor {
	var paths [][]predecessor
	var walk func(nodeID string, suffix []predecessor)
	walk = func(nodeID string, suffix []predecessor) {
		if len(paths) >= limit {
			return
		}
		if nodeID == startID {
			path := make([]predecessor, 0, len(suffix)+1)
			path = append(path, predecessor{nodeID: startID})
			for i := len(suffix) - 1; i >= 0; i-- {
				path = append(path, suffix[i])
			}
			paths = append(paths, path)
			return
		}
		for _, p := range preds[nodeID] {
			walk(p.nodeID, append(suffix, predecessor{nodeID: nodeID, edge: p.edge}))
			if len(paths) >= limit {
				return
			}
		}
	}
	walk(endID, nil)
	return paths
}

func (s *Store) renderPath(ctx context.Context, cache map[string]*Node, path []predecessor) ([]PathHop, error) {
	hops := make([]PathHop, 0, len(path))
	for i, p := range path {
		node, err := s.cachedNode(ctx, cache, p.nodeID)
		if err != nil {
			return nil, err
		}
		hop := PathHop{NodeID: p.nodeID}
		if node != nil {
			hop.Name = node.Name
			hop.Label = node.Label
		}
		if i > 0 {
			hop.Relation = p.edge.Relation
			hop.EdgeID = p.edge.ID
		}
		hops = append(hops, hop)
	}
	return hops, nil
}

// rankPathsByIEF reorders the collected paths by their mean edge score,
// best first, and records the winning mean on the result.
func (s *Store) rankPathsByIEF(ctx context.Context, cache map[string]*Node, result *PathResult, idPaths [][]predecessor, opts PathOptions) error {
	now := time.Now().UTC()
	means := make([]float64, len(idPaths))
	for i, path := range idPaths {
		var sum float64
		var count int
		for j := 1; j < len(path); j++ {
			edge := path[j].edge
			rel := Relevance(&edge, now, opts.DecayTau)
			scored := s.scoreEdge(ctx, cache, &edge, rel, opts.QueryEmbedding, opts.Pending, now)
			sum += scored.Score
			count++
		}
		if count > 0 {
			means[i] = sum / float64(count)
		}
	}

	order := make([]int, len(idPaths))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return means[order[a]] > means[order[b]]
	})

	ranked := make([][]PathHop, len(order))
	for rank, idx := range order {
		ranked[rank] = result.Paths[idx]
	}
	result.Paths = ranked
	if len(order) > 0 {
		best := means[order[0]]
		result.MeanIEF = &best
	}
	return nil
}
