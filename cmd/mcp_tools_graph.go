/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

// Tool handlers for the knowledge graph: node/edge writes, neighbor
// traversal, and shortest-path search.

import (
	"context"
	"time"

	"github.com/josephgoksu/MindWing/internal/graph"
	"github.com/josephgoksu/MindWing/internal/ief"
	"github.com/josephgoksu/MindWing/types"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

func graphAddNodeHandler(deps *mcpDeps) mcp.ToolHandlerFor[types.GraphAddNodeParams, types.GraphAddNodeResult] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[types.GraphAddNodeParams]) (*mcp.CallToolResultFor[types.GraphAddNodeResult], error) {
		const tool = "graph_add_node"
		start := time.Now()
		args := params.Arguments

		id, err := deps.graph.AddNode(ctx, args.Label, args.Name, args.Properties, args.VectorID)
		if err != nil {
			deps.log.Warn("graph_add_node failed", zap.Error(err))
			observe(deps, tool, start, err)
			return toolFail[types.GraphAddNodeResult](tool, classifyErr("add node", err))
		}

		observe(deps, tool, start, nil)
		return toolOK(types.GraphAddNodeResult{ID: id, Status: types.StatusSuccess})
	}
}

func graphAddEdgeHandler(deps *mcpDeps) mcp.ToolHandlerFor[types.GraphAddEdgeParams, types.GraphAddEdgeResult] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[types.GraphAddEdgeParams]) (*mcp.CallToolResultFor[types.GraphAddEdgeResult], error) {
		const tool = "graph_add_edge"
		start := time.Now()
		args := params.Arguments

		weight := 1.0
		if args.Weight != nil {
			weight = *args.Weight
		}

		edgeID, err := deps.graph.AddEdge(ctx, args.SourceName, args.TargetName, args.Relation,
			args.SourceLabel, args.TargetLabel, weight, args.Properties)
		if err != nil {
			deps.log.Warn("graph_add_edge failed", zap.Error(err))
			observe(deps, tool, start, err)
			return toolFail[types.GraphAddEdgeResult](tool, classifyErr("add edge", err))
		}

		// Screen the fresh edge against its siblings. A failed scan never
		// fails the write; the edge is already committed.
		if reviews, derr := deps.nuance.DetectEdge(ctx, edgeID); derr != nil {
			deps.log.Warn("dissonance scan failed", zap.String("edge_id", edgeID), zap.Error(derr))
		} else if len(reviews) > 0 {
			deps.log.Info("dissonance detected on new edge",
				zap.String("edge_id", edgeID),
				zap.Int("reviews", len(reviews)))
		}

		observe(deps, tool, start, nil)
		return toolOK(types.GraphAddEdgeResult{EdgeID: edgeID, Status: types.StatusSuccess})
	}
}

func graphQueryNeighborsHandler(deps *mcpDeps) mcp.ToolHandlerFor[types.GraphQueryNeighborsParams, types.GraphQueryNeighborsResult] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[types.GraphQueryNeighborsParams]) (*mcp.CallToolResultFor[types.GraphQueryNeighborsResult], error) {
		const tool = "graph_query_neighbors"
		start := time.Now()
		args := params.Arguments

		ctx, cancel := context.WithTimeout(ctx, traversalBudget(deps, args.Depth))
		defer cancel()

		neighbors, err := deps.graph.Neighbors(ctx, args.NodeName, graph.NeighborOptions{
			Relation:          args.RelationType,
			Depth:             args.Depth,
			Direction:         args.Direction,
			IncludeSuperseded: args.IncludeSuperseded,
			UseIEF:            args.UseIEF,
			QueryEmbedding:    args.QueryEmbedding,
			Pending:           deps.nuance.PendingEdgeIDs(),
			DecayTau:          decayTau(deps),
		})
		if err != nil {
			deps.log.Warn("graph_query_neighbors failed", zap.Error(err))
			observe(deps, tool, start, err)
			return toolFail[types.GraphQueryNeighborsResult](tool, classifyErr("graph traversal", err))
		}

		out := make([]types.Neighbor, len(neighbors))
		for i, n := range neighbors {
			out[i] = types.Neighbor{
				NodeID:         n.ID,
				Label:          n.Label,
				Name:           n.Name,
				Properties:     n.Properties,
				Relation:       n.Relation,
				Distance:       n.Distance,
				Weight:         n.Weight,
				RelevanceScore: n.RelevanceScore,
				IEFScore:       n.IEFScore,
				IEFComponents:  iefComponents(n.IEFComponents),
			}
		}

		observe(deps, tool, start, nil)
		return toolOK(types.GraphQueryNeighborsResult{Neighbors: out, Status: types.StatusSuccess})
	}
}

func graphFindPathHandler(deps *mcpDeps) mcp.ToolHandlerFor[types.GraphFindPathParams, types.GraphFindPathResult] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[types.GraphFindPathParams]) (*mcp.CallToolResultFor[types.GraphFindPathResult], error) {
		const tool = "graph_find_path"
		start := time.Now()
		args := params.Arguments

		ctx, cancel := context.WithTimeout(ctx, time.Duration(deps.cfg.Timeouts.PathMS)*time.Millisecond)
		defer cancel()

		result, err := deps.graph.FindPaths(ctx, args.StartNode, args.EndNode, graph.PathOptions{
			MaxDepth:       args.MaxDepth,
			UseIEF:         args.UseIEF,
			QueryEmbedding: args.QueryEmbedding,
			Pending:        deps.nuance.PendingEdgeIDs(),
			DecayTau:       decayTau(deps),
		})
		if err != nil {
			deps.log.Warn("graph_find_path failed", zap.Error(err))
			observe(deps, tool, start, err)
			return toolFail[types.GraphFindPathResult](tool, classifyErr("path search", err))
		}

		observe(deps, tool, start, nil)
		if !result.Found {
			return toolOK(types.GraphFindPathResult{
				PathFound: false,
				Path:      []types.PathNode{},
				Status:    types.StatusSuccess,
			})
		}

		paths := make([][]types.PathNode, len(result.Paths))
		for i, p := range result.Paths {
			paths[i] = pathNodes(p)
		}
		out := types.GraphFindPathResult{
			PathFound:    true,
			PathLength:   result.Length,
			Path:         paths[0],
			PathIEFScore: result.MeanIEF,
			Status:       types.StatusSuccess,
		}
		if len(paths) > 1 {
			out.AllPaths = paths
		}
		return toolOK(out)
	}
}

// traversalBudget returns the neighbor-walk deadline. Deep walks get a
// larger share: 100ms covers depth <=3 at the default calibration, 250ms
// beyond that.
func traversalBudget(deps *mcpDeps, depth int) time.Duration {
	budget := time.Duration(deps.cfg.Timeouts.TraversalMS) * time.Millisecond
	if depth > 3 {
		budget = budget * 5 / 2
	}
	return budget
}

func decayTau(deps *mcpDeps) time.Duration {
	return time.Duration(deps.cfg.Graph.DecayTauHours * float64(time.Hour))
}

func iefComponents(c *ief.Components) *types.IEFComponents {
	if c == nil {
		return nil
	}
	return &types.IEFComponents{
		RelevanceScore:     c.RelevanceScore,
		SemanticSimilarity: c.SemanticSimilarity,
		RecencyBoost:       c.RecencyBoost,
		ConstitutiveWeight: c.ConstitutiveWeight,
		NuancePenalty:      c.NuancePenalty,
	}
}

func pathNodes(hops []graph.PathHop) []types.PathNode {
	out := make([]types.PathNode, len(hops))
	for i, h := range hops {
		out[i] = types.PathNode{
			Name:     h.Name,
			Label:    h.Label,
			Relation: h.Relation,
			EdgeID:   h.EdgeID,
		}
	}
	return out
}
