/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/josephgoksu/MindWing/internal/memory"
	"github.com/josephgoksu/MindWing/types"
)

// registerMCPResources exposes the read-only memory tiers as MCP resources.
// Parameters ride on the URI query string (memory://l0-raw?session_id=s42);
// the base URIs are what clients discover via resources/list.
func registerMCPResources(server *mcp.Server, deps *mcpDeps) {
	server.AddResource(&mcp.Resource{
		URI:         "memory://l2-insights",
		Name:        "l2-insights",
		Description: "Compressed L2 insights, newest first. Optional query params: query (semantic search), top_k.",
		MIMEType:    "application/json",
	}, l2InsightsResource(deps))

	server.AddResource(&mcp.Resource{
		URI:         "memory://working-memory",
		Name:        "working-memory",
		Description: "Current working memory items in eviction order (importance, then recency).",
		MIMEType:    "application/json",
	}, workingMemoryResource(deps))

	server.AddResource(&mcp.Resource{
		URI:         "memory://episode-memory",
		Name:        "episode-memory",
		Description: "Episodic query/reward/reflection records. Optional query params: query (semantic search), min_similarity.",
		MIMEType:    "application/json",
	}, episodeMemoryResource(deps))

	server.AddResource(&mcp.Resource{
		URI:         "memory://l0-raw",
		Name:        "l0-raw",
		Description: "Raw dialogue turns for one session. Query params: session_id (required), date_range (YYYY-MM-DD:YYYY-MM-DD), limit.",
		MIMEType:    "application/json",
	}, l0RawResource(deps))

	server.AddResource(&mcp.Resource{
		URI:         "memory://stale-memory",
		Name:        "stale-memory",
		Description: "Items evicted from working memory, newest first. Optional query param: importance_min.",
		MIMEType:    "application/json",
	}, staleMemoryResource(deps))
}

// resourceParams extracts the query parameters from a resource URI. The SDK
// hands us the full request URI, so memory://l0-raw?session_id=s42 arrives
// intact and url.Parse splits the query off the opaque part.
func resourceParams(rawURI string) (url.Values, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return nil, types.ValidationError("uri", fmt.Sprintf("malformed resource URI: %s", rawURI))
	}
	return u.Query(), nil
}

func resourceResult(uri string, payload interface{}) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, types.StorageError("serialize resource")
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: "application/json", Text: string(data)},
		},
	}, nil
}

// intParam parses a positive integer query parameter, returning def when the
// parameter is absent.
func intParam(params url.Values, name string, def int) (int, error) {
	raw := params.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, types.ValidationError(name, fmt.Sprintf("%s must be a positive integer, got %q", name, raw))
	}
	return n, nil
}

func floatParam(params url.Values, name string, def float64) (float64, error) {
	raw := params.Get(name)
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, types.ValidationError(name, fmt.Sprintf("%s must be a number, got %q", name, raw))
	}
	return f, nil
}

func l2InsightsResource(deps *mcpDeps) mcp.ResourceHandler {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.ReadResourceParams) (*mcp.ReadResourceResult, error) {
		q, err := resourceParams(params.URI)
		if err != nil {
			return nil, err
		}
		query := strings.TrimSpace(q.Get("query"))

		if query == "" {
			topK, err := intParam(q, "top_k", 20)
			if err != nil {
				return nil, err
			}
			insights, err := deps.store.ListRecentInsights(ctx, topK)
			if err != nil {
				deps.log.Warn("list insights failed", zap.Error(err))
				return nil, classifyErr("list insights", err)
			}
			if insights == nil {
				insights = []memory.Insight{}
			}
			return resourceResult(params.URI, insights)
		}

		topK, err := intParam(q, "top_k", 5)
		if err != nil {
			return nil, err
		}
		vec, err := deps.embedder.EmbedText(ctx, query)
		if err != nil {
			deps.log.Warn("resource embedding failed", zap.Error(err))
			return nil, classifyErr("embed query", err)
		}
		scored, err := deps.store.SearchInsightsByVector(ctx, vec, topK)
		if err != nil {
			deps.log.Warn("insight search failed", zap.Error(err))
			return nil, classifyErr("search insights", err)
		}
		if scored == nil {
			scored = []memory.ScoredInsight{}
		}
		return resourceResult(params.URI, scored)
	}
}

func workingMemoryResource(deps *mcpDeps) mcp.ResourceHandler {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.ReadResourceParams) (*mcp.ReadResourceResult, error) {
		items, err := deps.store.ListWorking(ctx)
		if err != nil {
			deps.log.Warn("list working memory failed", zap.Error(err))
			return nil, classifyErr("list working memory", err)
		}
		if items == nil {
			items = []memory.WorkingItem{}
		}
		return resourceResult(params.URI, items)
	}
}

func episodeMemoryResource(deps *mcpDeps) mcp.ResourceHandler {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.ReadResourceParams) (*mcp.ReadResourceResult, error) {
		q, err := resourceParams(params.URI)
		if err != nil {
			return nil, err
		}
		query := strings.TrimSpace(q.Get("query"))

		if query == "" {
			episodes, err := deps.store.ListEpisodes(ctx, 20)
			if err != nil {
				deps.log.Warn("list episodes failed", zap.Error(err))
				return nil, classifyErr("list episodes", err)
			}
			if episodes == nil {
				episodes = []memory.Episode{}
			}
			return resourceResult(params.URI, episodes)
		}

		minSim, err := floatParam(q, "min_similarity", 0.7)
		if err != nil {
			return nil, err
		}
		if minSim < 0 || minSim > 1 {
			return nil, types.ValidationError("min_similarity", "min_similarity must be between 0 and 1")
		}
		vec, err := deps.embedder.EmbedText(ctx, query)
		if err != nil {
			deps.log.Warn("resource embedding failed", zap.Error(err))
			return nil, classifyErr("embed query", err)
		}
		scored, err := deps.store.SearchEpisodes(ctx, vec, minSim, 20)
		if err != nil {
			deps.log.Warn("episode search failed", zap.Error(err))
			return nil, classifyErr("search episodes", err)
		}
		if scored == nil {
			scored = []memory.ScoredEpisode{}
		}
		return resourceResult(params.URI, scored)
	}
}

func l0RawResource(deps *mcpDeps) mcp.ResourceHandler {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.ReadResourceParams) (*mcp.ReadResourceResult, error) {
		q, err := resourceParams(params.URI)
		if err != nil {
			return nil, err
		}
		sessionID := strings.TrimSpace(q.Get("session_id"))
		if sessionID == "" {
			return nil, types.ValidationError("session_id", "session_id is required, e.g. memory://l0-raw?session_id=s42")
		}
		limit, err := intParam(q, "limit", 50)
		if err != nil {
			return nil, err
		}
		from, to, err := parseDateRange(q.Get("date_range"))
		if err != nil {
			return nil, err
		}

		entries, err := deps.store.ListRawBySession(ctx, sessionID, from, to, limit)
		if err != nil {
			deps.log.Warn("list raw dialogue failed", zap.Error(err))
			return nil, classifyErr("list raw dialogue", err)
		}
		if entries == nil {
			entries = []memory.RawEntry{}
		}
		return resourceResult(params.URI, entries)
	}
}

func staleMemoryResource(deps *mcpDeps) mcp.ResourceHandler {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.ReadResourceParams) (*mcp.ReadResourceResult, error) {
		q, err := resourceParams(params.URI)
		if err != nil {
			return nil, err
		}
		minImportance, err := floatParam(q, "importance_min", 0)
		if err != nil {
			return nil, err
		}
		if minImportance < 0 || minImportance > 1 {
			return nil, types.ValidationError("importance_min", "importance_min must be between 0 and 1")
		}

		items, err := deps.store.ListStale(ctx, minImportance, 100)
		if err != nil {
			deps.log.Warn("list stale memory failed", zap.Error(err))
			return nil, classifyErr("list stale memory", err)
		}
		if items == nil {
			items = []memory.StaleItem{}
		}
		return resourceResult(params.URI, items)
	}
}

// parseDateRange splits a YYYY-MM-DD:YYYY-MM-DD window into inclusive day
// bounds. An empty value leaves both bounds open.
func parseDateRange(raw string) (time.Time, time.Time, error) {
	if raw == "" {
		return time.Time{}, time.Time{}, nil
	}
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, types.ValidationError("date_range", "date_range must be YYYY-MM-DD:YYYY-MM-DD")
	}
	from, err := time.Parse("2006-01-02", parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, types.ValidationError("date_range", fmt.Sprintf("invalid start date %q", parts[0]))
	}
	to, err := time.Parse("2006-01-02", parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, types.ValidationError("date_range", fmt.Sprintf("invalid end date %q", parts[1]))
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, types.ValidationError("date_range", "end date precedes start date")
	}
	// The upper bound covers the whole end day.
	return from, to.Add(24*time.Hour - time.Nanosecond), nil
}
