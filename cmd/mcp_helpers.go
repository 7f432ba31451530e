/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

// Shared plumbing for MCP tool handlers: result envelopes, error mapping,
// and telemetry observation.

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/josephgoksu/MindWing/internal/judge"
	"github.com/josephgoksu/MindWing/internal/telemetry"
	"github.com/josephgoksu/MindWing/types"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// toolOK wraps a typed result into the MCP envelope: JSON text content
// plus the structured payload.
func toolOK[R any](result R) (*mcp.CallToolResultFor[R], error) {
	data, err := json.Marshal(result)
	if err != nil {
		data = []byte(`{"error":"result serialization failed"}`)
	}
	return &mcp.CallToolResultFor[R]{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(data)}},
		StructuredContent: result,
		IsError:           false,
	}, nil
}

// toolFail serializes the {error, details, tool} failure payload with
// IsError set. The protocol call itself still succeeds.
func toolFail[R any](tool string, err error) (*mcp.CallToolResultFor[R], error) {
	payload := types.NewToolError(tool, err)
	data, mErr := json.Marshal(payload)
	if mErr != nil {
		data = []byte(`{"error":"internal error","tool":"` + tool + `"}`)
	}
	return &mcp.CallToolResultFor[R]{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: true,
	}, nil
}

// classifyErr maps an internal error onto the wire taxonomy. MCPError
// passes through, deadline expiry becomes TIMEOUT, anything else is a
// redacted STORAGE failure; the unredacted cause stays in the server log.
func classifyErr(op string, err error) error {
	var mcpErr *types.MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return types.TimeoutError(op)
	}
	return types.StorageError(op)
}

// observe books one tool invocation into telemetry. Never blocks.
func observe(deps *mcpDeps, tool string, start time.Time, err error) {
	telemetry.ToolInvoked(deps.tel, tool, err == nil, time.Since(start))
}

// judgeDocs converts wire documents to pipeline documents. String ids
// that do not parse as integers get their 1-based position instead.
func judgeDocs(docs []types.JudgeDoc) []judge.Doc {
	out := make([]judge.Doc, len(docs))
	for i, d := range docs {
		id, err := strconv.ParseInt(d.ID, 10, 64)
		if err != nil {
			id = int64(i + 1)
		}
		out[i] = judge.Doc{ID: id, Content: d.Content}
	}
	return out
}

// metadataTimestamp formats server-side timestamps on the wire.
func metadataTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
