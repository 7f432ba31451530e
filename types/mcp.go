/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package types

// MCP Tool Parameter Types
//
// Every tool takes a typed params struct and returns a typed result struct.
// The status field is "success" on the happy path; id lookups report
// "not_found" instead of raising an error so clients can write-then-verify.

// StatusSuccess and friends are the values of the wire-level status field.
const (
	StatusSuccess  = "success"
	StatusNotFound = "not_found"
)

// PingParams for the connectivity probe. No inputs.
type PingParams struct{}

// PingResult echoes liveness.
type PingResult struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

// StoreRawDialogueParams appends one conversational turn to the L0 log.
type StoreRawDialogueParams struct {
	SessionID string                 `json:"session_id" mcp:"Opaque session identifier (required)"`
	Speaker   string                 `json:"speaker" mcp:"Speaker of the turn, e.g. user or assistant (required)"`
	Content   string                 `json:"content" mcp:"Raw utterance text (required)"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" mcp:"Free-form metadata attached to the turn"`
}

// StoreRawDialogueResult reports the appended L0 row.
type StoreRawDialogueResult struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

// CompressToL2InsightParams stores a compressed semantic insight with its embedding.
type CompressToL2InsightParams struct {
	Content   string                 `json:"content" mcp:"Compressed semantic statement (required)"`
	SourceIDs []int64                `json:"source_ids" mcp:"Ordered L0 row ids this insight derives from; pass [] when synthesised (required)"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" mcp:"Free-form metadata attached to the insight"`
}

// CompressToL2InsightResult reports the stored insight.
type CompressToL2InsightResult struct {
	ID              int64  `json:"id"`
	EmbeddingStatus string `json:"embedding_status"`
	CreatedAt       string `json:"created_at"`
	Status          string `json:"status"`
}

// StoreEpisodeParams stores a reflection episode for verbal reinforcement.
type StoreEpisodeParams struct {
	Query      string   `json:"query" mcp:"Query the episode reflects on (required)"`
	Reward     *float64 `json:"reward" mcp:"Reinforcement reward in [-1,1] (required)"`
	Reflection string   `json:"reflection" mcp:"Reflection text (required)"`
}

// StoreEpisodeResult reports the stored episode.
type StoreEpisodeResult struct {
	ID              int64  `json:"id"`
	CreatedAt       string `json:"created_at"`
	EmbeddingStatus string `json:"embedding_status"`
	Status          string `json:"status"`
}

// JudgeDoc is one candidate document scored by the dual judges.
type JudgeDoc struct {
	ID      string `json:"id" mcp:"Candidate document id"`
	Content string `json:"content" mcp:"Candidate document text"`
}

// StoreDualJudgeScoresParams runs both judges over the candidate docs.
type StoreDualJudgeScoresParams struct {
	QueryID string     `json:"query_id" mcp:"Ground-truth query identifier (required)"`
	Query   string     `json:"query" mcp:"Query text to judge relevance against (required)"`
	Docs    []JudgeDoc `json:"docs" mcp:"Candidate documents, each {id, content} (required)"`
}

// StoreDualJudgeScoresResult carries both score arrays and Cohen's kappa.
// Kappa is null when both judges are unanimous on a single class.
type StoreDualJudgeScoresResult struct {
	Judge1Scores []float64 `json:"judge1_scores"`
	Judge2Scores []float64 `json:"judge2_scores"`
	Kappa        *float64  `json:"kappa"`
	Status       string    `json:"status"`
}

// HybridSearchParams runs the dense+lexical(+graph) fused retrieval.
type HybridSearchParams struct {
	QueryText      string             `json:"query_text" mcp:"Natural-language query (required)"`
	TopK           int                `json:"top_k,omitempty" mcp:"Number of fused results to return (default 5)"`
	Weights        map[string]float64 `json:"weights,omitempty" mcp:"Override fusion weights, keys: semantic, keyword, graph"`
	QueryEmbedding []float32          `json:"query_embedding,omitempty" mcp:"Precomputed query embedding; skips the embedding provider"`
}

// SearchHit is one fused retrieval result.
type SearchHit struct {
	ID        int64   `json:"id"`
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
	SourceIDs []int64 `json:"source_ids"`
}

// SearchCounts reports per-channel candidate counts.
type SearchCounts struct {
	SemanticResultsCount int `json:"semantic_results_count"`
	KeywordResultsCount  int `json:"keyword_results_count"`
	GraphResultsCount    int `json:"graph_results_count,omitempty"`
}

// HybridSearchResult is the fused, ranked retrieval response.
type HybridSearchResult struct {
	Results   []SearchHit        `json:"results"`
	Weights   map[string]float64 `json:"weights"`
	Counts    SearchCounts       `json:"counts"`
	QueryType string             `json:"query_type"`
	Status    string             `json:"status"`
}

// UpdateWorkingMemoryParams inserts into the bounded working set.
type UpdateWorkingMemoryParams struct {
	Content    string   `json:"content" mcp:"Working-memory item content (required)"`
	Importance *float64 `json:"importance,omitempty" mcp:"Importance in [0,1], default 0.5; items above the critical threshold resist eviction"`
}

// UpdateWorkingMemoryResult reports the insert and any eviction.
type UpdateWorkingMemoryResult struct {
	AddedID    int64  `json:"added_id"`
	EvictedID  *int64 `json:"evicted_id,omitempty"`
	ArchivedID *int64 `json:"archived_id,omitempty"`
	Status     string `json:"status"`
}

// GetInsightByIDParams looks up a single insight.
type GetInsightByIDParams struct {
	ID int64 `json:"id" mcp:"Insight id to retrieve (required)"`
}

// GetInsightByIDResult returns the insight without its embedding, or
// {insight: null, status: "not_found"} when the id is unknown.
type GetInsightByIDResult struct {
	Insight *InsightPayload `json:"insight"`
	Status  string          `json:"status"`
}

// InsightPayload is the client-facing insight shape (embedding omitted).
type InsightPayload struct {
	ID        int64                  `json:"id"`
	Content   string                 `json:"content"`
	SourceIDs []int64                `json:"source_ids"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt string                 `json:"created_at"`
}

// ListEpisodesParams lists recent reflection episodes.
type ListEpisodesParams struct {
	Limit int `json:"limit,omitempty" mcp:"Maximum episodes to return (default 20)"`
}

// EpisodeSummary is one episode row (embedding omitted).
type EpisodeSummary struct {
	ID         int64   `json:"id"`
	Query      string  `json:"query"`
	Reward     float64 `json:"reward"`
	Reflection string  `json:"reflection"`
	CreatedAt  string  `json:"created_at"`
}

// ListEpisodesResult is the ordered episode list, newest first.
type ListEpisodesResult struct {
	Episodes []EpisodeSummary `json:"episodes"`
	Status   string           `json:"status"`
}

// GraphAddNodeParams upserts a typed named entity on (label, name).
type GraphAddNodeParams struct {
	Label      string                 `json:"label" mcp:"Node category, e.g. Person, Tool, Concept (required)"`
	Name       string                 `json:"name" mcp:"Node name, unique per label (required)"`
	Properties map[string]interface{} `json:"properties,omitempty" mcp:"Free-form node properties"`
	VectorID   *int64                 `json:"vector_id,omitempty" mcp:"Insight id anchoring this node's semantics"`
}

// GraphAddNodeResult reports the upserted node id.
type GraphAddNodeResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// GraphAddEdgeParams inserts a typed directed relation; missing endpoints
// are auto-created.
type GraphAddEdgeParams struct {
	SourceName  string                 `json:"source_name" mcp:"Source node name (required)"`
	TargetName  string                 `json:"target_name" mcp:"Target node name (required)"`
	Relation    string                 `json:"relation" mcp:"Edge relation, e.g. USES, SOLVES, DEPENDS_ON (required)"`
	SourceLabel string                 `json:"source_label,omitempty" mcp:"Label for an auto-created source node (default Entity)"`
	TargetLabel string                 `json:"target_label,omitempty" mcp:"Label for an auto-created target node (default Entity)"`
	Weight      *float64               `json:"weight,omitempty" mcp:"Edge weight, non-negative (default 1.0)"`
	Properties  map[string]interface{} `json:"properties,omitempty" mcp:"Free-form edge properties, e.g. edge_type"`
}

// GraphAddEdgeResult reports the created edge id.
type GraphAddEdgeResult struct {
	EdgeID string `json:"edge_id"`
	Status string `json:"status"`
}

// GraphQueryNeighborsParams traverses outward from a named node.
type GraphQueryNeighborsParams struct {
	NodeName          string    `json:"node_name" mcp:"Start node name (required)"`
	RelationType      string    `json:"relation_type,omitempty" mcp:"Restrict traversal to this relation"`
	Depth             int       `json:"depth,omitempty" mcp:"Traversal depth 1..5 (default 1)"`
	Direction         string    `json:"direction,omitempty" mcp:"Edge direction: both, in, out (default both)"`
	IncludeSuperseded bool      `json:"include_superseded,omitempty" mcp:"Include edges retired by a nuance resolution (default false)"`
	UseIEF            bool      `json:"use_ief,omitempty" mcp:"Rank neighbors by the integrative evaluation function"`
	QueryEmbedding    []float32 `json:"query_embedding,omitempty" mcp:"Query embedding for the IEF similarity component"`
}

// IEFComponents is the per-edge breakdown of the integrative score.
type IEFComponents struct {
	RelevanceScore     float64 `json:"relevance_score"`
	SemanticSimilarity float64 `json:"semantic_similarity"`
	RecencyBoost       float64 `json:"recency_boost"`
	ConstitutiveWeight float64 `json:"constitutive_weight"`
	NuancePenalty      float64 `json:"nuance_penalty"`
}

// Neighbor is one traversal result.
type Neighbor struct {
	NodeID         string                 `json:"node_id"`
	Label          string                 `json:"label"`
	Name           string                 `json:"name"`
	Properties     map[string]interface{} `json:"properties,omitempty"`
	Relation       string                 `json:"relation"`
	Distance       int                    `json:"distance"`
	Weight         float64                `json:"weight"`
	RelevanceScore float64                `json:"relevance_score"`
	IEFScore       *float64               `json:"ief_score,omitempty"`
	IEFComponents  *IEFComponents         `json:"ief_components,omitempty"`
}

// GraphQueryNeighborsResult is the ranked neighbor list.
type GraphQueryNeighborsResult struct {
	Neighbors []Neighbor `json:"neighbors"`
	Status    string     `json:"status"`
}

// GraphFindPathParams searches for shortest paths between two named nodes.
type GraphFindPathParams struct {
	StartNode      string    `json:"start_node" mcp:"Start node name (required)"`
	EndNode        string    `json:"end_node" mcp:"End node name (required)"`
	MaxDepth       int       `json:"max_depth,omitempty" mcp:"Maximum path length 1..5 (default 5)"`
	UseIEF         bool      `json:"use_ief,omitempty" mcp:"Rank paths by mean edge IEF score"`
	QueryEmbedding []float32 `json:"query_embedding,omitempty" mcp:"Query embedding for the IEF similarity component"`
}

// PathNode is one hop of a discovered path. Relation names the edge that
// led into this node; it is empty on the start node.
type PathNode struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Relation string `json:"relation,omitempty"`
	EdgeID   string `json:"edge_id,omitempty"`
}

// GraphFindPathResult reports the best path plus up to nine alternates of
// the same minimal length.
type GraphFindPathResult struct {
	PathFound    bool         `json:"path_found"`
	PathLength   int          `json:"path_length"`
	Path         []PathNode   `json:"path"`
	AllPaths     [][]PathNode `json:"all_paths,omitempty"`
	PathIEFScore *float64     `json:"path_ief_score,omitempty"`
	Status       string       `json:"status"`
}
