package telemetry

import "time"

// Event names. Payloads carry shape metadata only; queries, dialogue and
// insight content never leave the process.
const (
	EventToolInvoked     = "tool_invoked"
	EventSearchCompleted = "search_completed"
)

// LatencyBucket coarsens a duration so latency is reportable without
// being a fingerprint.
func LatencyBucket(d time.Duration) string {
	switch {
	case d < 50*time.Millisecond:
		return "lt_50ms"
	case d < 200*time.Millisecond:
		return "lt_200ms"
	case d < time.Second:
		return "lt_1s"
	case d < 5*time.Second:
		return "lt_5s"
	default:
		return "gte_5s"
	}
}

// ToolInvoked records one MCP tool call.
func ToolInvoked(c Client, tool string, success bool, elapsed time.Duration) {
	c.Track(EventToolInvoked, Properties{
		"tool":           tool,
		"success":        success,
		"latency_bucket": LatencyBucket(elapsed),
	})
}

// SearchCompleted records one hybrid search outcome.
func SearchCompleted(c Client, queryType string, hits int, elapsed time.Duration) {
	c.Track(EventSearchCompleted, Properties{
		"query_type":     queryType,
		"hits":           hits,
		"latency_bucket": LatencyBucket(elapsed),
	})
}
