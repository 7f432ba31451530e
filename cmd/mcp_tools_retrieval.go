/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

// Tool handlers for hybrid retrieval and dual-judge evaluation.

import (
	"context"
	"time"

	"github.com/josephgoksu/MindWing/internal/telemetry"
	"github.com/josephgoksu/MindWing/types"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

func hybridSearchHandler(deps *mcpDeps) mcp.ToolHandlerFor[types.HybridSearchParams, types.HybridSearchResult] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[types.HybridSearchParams]) (*mcp.CallToolResultFor[types.HybridSearchResult], error) {
		const tool = "hybrid_search"
		start := time.Now()
		args := params.Arguments

		result, err := deps.engine.Search(ctx, args.QueryText, args.TopK, args.Weights, args.QueryEmbedding)
		if err != nil {
			deps.log.Warn("hybrid_search failed", zap.Error(err))
			observe(deps, tool, start, err)
			return toolFail[types.HybridSearchResult](tool, classifyErr("hybrid search", err))
		}

		hits := make([]types.SearchHit, len(result.Hits))
		for i, h := range result.Hits {
			hits[i] = types.SearchHit{
				ID:        h.ID,
				Content:   h.Content,
				Score:     h.Score,
				SourceIDs: h.SourceIDs,
			}
		}

		observe(deps, tool, start, nil)
		telemetry.SearchCompleted(deps.tel, result.QueryType, len(hits), time.Since(start))

		return toolOK(types.HybridSearchResult{
			Results: hits,
			Weights: result.Weights,
			Counts: types.SearchCounts{
				SemanticResultsCount: result.Counts.Semantic,
				KeywordResultsCount:  result.Counts.Keyword,
				GraphResultsCount:    result.Counts.Graph,
			},
			QueryType: result.QueryType,
			Status:    types.StatusSuccess,
		})
	}
}

func storeDualJudgeScoresHandler(deps *mcpDeps) mcp.ToolHandlerFor[types.StoreDualJudgeScoresParams, types.StoreDualJudgeScoresResult] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[types.StoreDualJudgeScoresParams]) (*mcp.CallToolResultFor[types.StoreDualJudgeScoresResult], error) {
		const tool = "store_dual_judge_scores"
		start := time.Now()
		args := params.Arguments

		outcome, err := deps.pipeline.Run(ctx, args.QueryID, args.Query, judgeDocs(args.Docs))
		if err != nil {
			deps.log.Warn("store_dual_judge_scores failed", zap.Error(err))
			observe(deps, tool, start, err)
			return toolFail[types.StoreDualJudgeScoresResult](tool, classifyErr("dual judge scoring", err))
		}

		observe(deps, tool, start, nil)
		return toolOK(types.StoreDualJudgeScoresResult{
			Judge1Scores: outcome.Judge1Scores,
			Judge2Scores: outcome.Judge2Scores,
			Kappa:        outcome.Kappa,
			Status:       types.StatusSuccess,
		})
	}
}
