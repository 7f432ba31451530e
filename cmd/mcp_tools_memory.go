/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

// Tool handlers for the memory tiers: L0 raw dialogue, L2 insights,
// working memory, and reflection episodes.

import (
	"context"
	"strings"
	"time"

	"github.com/josephgoksu/MindWing/internal/memory"
	"github.com/josephgoksu/MindWing/internal/policy"
	"github.com/josephgoksu/MindWing/types"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

func pingHandler(deps *mcpDeps) mcp.ToolHandlerFor[types.PingParams, types.PingResult] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[types.PingParams]) (*mcp.CallToolResultFor[types.PingResult], error) {
		start := time.Now()
		defer func() { observe(deps, "ping", start, nil) }()

		return toolOK(types.PingResult{
			Response:  "pong",
			Timestamp: metadataTimestamp(time.Now()),
			Status:    types.StatusSuccess,
		})
	}
}

func storeRawDialogueHandler(deps *mcpDeps) mcp.ToolHandlerFor[types.StoreRawDialogueParams, types.StoreRawDialogueResult] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[types.StoreRawDialogueParams]) (*mcp.CallToolResultFor[types.StoreRawDialogueResult], error) {
		const tool = "store_raw_dialogue"
		start := time.Now()
		args := params.Arguments

		if err := deps.policy.Check(ctx, policy.Input{
			Tool:          tool,
			SessionID:     args.SessionID,
			Speaker:       args.Speaker,
			ContentLength: len(args.Content),
		}); err != nil {
			observe(deps, tool, start, err)
			return toolFail[types.StoreRawDialogueResult](tool, err)
		}

		id, ts, err := deps.store.InsertRaw(ctx, args.SessionID, args.Speaker, args.Content, args.Metadata)
		if err != nil {
			deps.log.Warn("store_raw_dialogue failed", zap.Error(err))
			observe(deps, tool, start, err)
			return toolFail[types.StoreRawDialogueResult](tool, classifyErr("insert raw dialogue", err))
		}

		observe(deps, tool, start, nil)
		return toolOK(types.StoreRawDialogueResult{
			ID:        id,
			SessionID: args.SessionID,
			Timestamp: metadataTimestamp(ts),
			Status:    types.StatusSuccess,
		})
	}
}

func compressToL2InsightHandler(deps *mcpDeps) mcp.ToolHandlerFor[types.CompressToL2InsightParams, types.CompressToL2InsightResult] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[types.CompressToL2InsightParams]) (*mcp.CallToolResultFor[types.CompressToL2InsightResult], error) {
		const tool = "compress_to_l2_insight"
		start := time.Now()
		args := params.Arguments

		fail := func(err error) (*mcp.CallToolResultFor[types.CompressToL2InsightResult], error) {
			observe(deps, tool, start, err)
			return toolFail[types.CompressToL2InsightResult](tool, err)
		}

		if strings.TrimSpace(args.Content) == "" {
			return fail(types.ValidationError("content", "content must not be empty"))
		}
		if args.SourceIDs == nil {
			return fail(types.ValidationError("source_ids", "source_ids is required; pass [] for synthesised insights"))
		}

		embedding, err := deps.embedder.EmbedText(ctx, args.Content)
		if err != nil {
			return fail(classifyErr("embed insight", err))
		}

		id, createdAt, err := deps.store.InsertInsight(ctx, args.Content, embedding, args.SourceIDs, args.Metadata)
		if err != nil {
			deps.log.Warn("compress_to_l2_insight failed", zap.Error(err))
			return fail(classifyErr("insert insight", err))
		}

		observe(deps, tool, start, nil)
		return toolOK(types.CompressToL2InsightResult{
			ID:              id,
			EmbeddingStatus: "generated",
			CreatedAt:       metadataTimestamp(createdAt),
			Status:          types.StatusSuccess,
		})
	}
}

func storeEpisodeHandler(deps *mcpDeps) mcp.ToolHandlerFor[types.StoreEpisodeParams, types.StoreEpisodeResult] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[types.StoreEpisodeParams]) (*mcp.CallToolResultFor[types.StoreEpisodeResult], error) {
		const tool = "store_episode"
		start := time.Now()
		args := params.Arguments

		fail := func(err error) (*mcp.CallToolResultFor[types.StoreEpisodeResult], error) {
			observe(deps, tool, start, err)
			return toolFail[types.StoreEpisodeResult](tool, err)
		}

		if strings.TrimSpace(args.Query) == "" {
			return fail(types.ValidationError("query", "query must not be empty"))
		}
		if args.Reward == nil {
			return fail(types.ValidationError("reward", "reward is required"))
		}
		if strings.TrimSpace(args.Reflection) == "" {
			return fail(types.ValidationError("reflection", "reflection must not be empty"))
		}

		// The query is what future searches probe against, so it is the
		// embedded text, not the reflection.
		embedding, err := deps.embedder.EmbedText(ctx, args.Query)
		if err != nil {
			return fail(classifyErr("embed episode", err))
		}

		id, createdAt, err := deps.store.InsertEpisode(ctx, args.Query, *args.Reward, args.Reflection, embedding)
		if err != nil {
			deps.log.Warn("store_episode failed", zap.Error(err))
			return fail(classifyErr("insert episode", err))
		}

		observe(deps, tool, start, nil)
		return toolOK(types.StoreEpisodeResult{
			ID:              id,
			CreatedAt:       metadataTimestamp(createdAt),
			EmbeddingStatus: "generated",
			Status:          types.StatusSuccess,
		})
	}
}

func updateWorkingMemoryHandler(deps *mcpDeps) mcp.ToolHandlerFor[types.UpdateWorkingMemoryParams, types.UpdateWorkingMemoryResult] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[types.UpdateWorkingMemoryParams]) (*mcp.CallToolResultFor[types.UpdateWorkingMemoryResult], error) {
		const tool = "update_working_memory"
		start := time.Now()
		args := params.Arguments

		importance := 0.5
		if args.Importance != nil {
			importance = *args.Importance
		}

		if err := deps.policy.Check(ctx, policy.Input{
			Tool:          tool,
			ContentLength: len(args.Content),
			Importance:    importance,
		}); err != nil {
			observe(deps, tool, start, err)
			return toolFail[types.UpdateWorkingMemoryResult](tool, err)
		}

		result, err := deps.store.UpdateWorking(ctx, args.Content, importance, memory.WorkingPolicy{
			Capacity:          deps.cfg.WorkingMemory.Capacity,
			CriticalThreshold: deps.cfg.WorkingMemory.CriticalThreshold,
		})
		if err != nil {
			deps.log.Warn("update_working_memory failed", zap.Error(err))
			observe(deps, tool, start, err)
			return toolFail[types.UpdateWorkingMemoryResult](tool, classifyErr("update working memory", err))
		}

		observe(deps, tool, start, nil)
		return toolOK(types.UpdateWorkingMemoryResult{
			AddedID:    result.AddedID,
			EvictedID:  result.EvictedID,
			ArchivedID: result.ArchivedID,
			Status:     types.StatusSuccess,
		})
	}
}

func getInsightByIDHandler(deps *mcpDeps) mcp.ToolHandlerFor[types.GetInsightByIDParams, types.GetInsightByIDResult] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[types.GetInsightByIDParams]) (*mcp.CallToolResultFor[types.GetInsightByIDResult], error) {
		const tool = "get_insight_by_id"
		start := time.Now()

		insight, found, err := deps.store.GetInsight(ctx, params.Arguments.ID)
		if err != nil {
			deps.log.Warn("get_insight_by_id failed", zap.Error(err))
			observe(deps, tool, start, err)
			return toolFail[types.GetInsightByIDResult](tool, classifyErr("get insight", err))
		}

		observe(deps, tool, start, nil)
		if !found {
			// Graceful null so clients can write-then-verify without
			// error handling.
			return toolOK(types.GetInsightByIDResult{Insight: nil, Status: types.StatusNotFound})
		}
		return toolOK(types.GetInsightByIDResult{
			Insight: insightPayload(insight),
			Status:  types.StatusSuccess,
		})
	}
}

func listEpisodesHandler(deps *mcpDeps) mcp.ToolHandlerFor[types.ListEpisodesParams, types.ListEpisodesResult] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[types.ListEpisodesParams]) (*mcp.CallToolResultFor[types.ListEpisodesResult], error) {
		const tool = "list_episodes"
		start := time.Now()

		limit := params.Arguments.Limit
		if limit <= 0 {
			limit = 20
		}

		episodes, err := deps.store.ListEpisodes(ctx, limit)
		if err != nil {
			deps.log.Warn("list_episodes failed", zap.Error(err))
			observe(deps, tool, start, err)
			return toolFail[types.ListEpisodesResult](tool, classifyErr("list episodes", err))
		}

		summaries := make([]types.EpisodeSummary, len(episodes))
		for i, ep := range episodes {
			summaries[i] = types.EpisodeSummary{
				ID:         ep.ID,
				Query:      ep.Query,
				Reward:     ep.Reward,
				Reflection: ep.Reflection,
				CreatedAt:  metadataTimestamp(ep.CreatedAt),
			}
		}

		observe(deps, tool, start, nil)
		return toolOK(types.ListEpisodesResult{Episodes: summaries, Status: types.StatusSuccess})
	}
}

// insightPayload strips the embedding for the wire.
func insightPayload(in *memory.Insight) *types.InsightPayload {
	return &types.InsightPayload{
		ID:        in.ID,
		Content:   in.Content,
		SourceIDs: in.SourceIDs,
		Metadata:  in.Metadata,
		CreatedAt: metadataTimestamp(in.CreatedAt),
	}
}
