package memory

import "time"

// RawEntry is one immutable L0 conversational turn. Rows are append-only;
// ids are monotonic within a database.
type RawEntry struct {
	ID        int64                  `json:"id"`
	SessionID string                 `json:"sessionId"`
	Speaker   string                 `json:"speaker"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Insight is one compressed L2 semantic statement with its embedding and
// the L0 rows it derives from.
type Insight struct {
	ID        int64                  `json:"id"`
	Content   string                 `json:"content"`
	Embedding []float32              `json:"-"`
	SourceIDs []int64                `json:"sourceIds"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// ScoredInsight pairs an insight with one retrieval channel's score.
type ScoredInsight struct {
	Insight
	Score float64 `json:"score"`
}

// WorkingItem is one entry of the bounded working set.
type WorkingItem struct {
	ID           int64     `json:"id"`
	Content      string    `json:"content"`
	Importance   float64   `json:"importance"`
	LastAccessed time.Time `json:"lastAccessed"`
	CreatedAt    time.Time `json:"createdAt"`
}

// StaleItem is a working-memory entry moved to the archive.
type StaleItem struct {
	ID              int64     `json:"id"`
	OriginalContent string    `json:"originalContent"`
	Importance      float64   `json:"importance"`
	ArchivedAt      time.Time `json:"archivedAt"`
	Reason          string    `json:"reason"`
}

// Archive reasons recorded on stale_memory rows.
const (
	ReasonLRUEviction   = "LRU_EVICTION"
	ReasonManualArchive = "MANUAL_ARCHIVE"
)

// Episode is one reflection record with a reinforcement reward in [-1,1].
type Episode struct {
	ID         int64     `json:"id"`
	Query      string    `json:"query"`
	Reward     float64   `json:"reward"`
	Reflection string    `json:"reflection"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ScoredEpisode pairs an episode with its cosine similarity to a probe.
type ScoredEpisode struct {
	Episode
	Similarity float64 `json:"similarity"`
}

// GroundTruth is one persisted dual-judge evaluation record. Kappa is nil
// when Cohen's kappa is undefined for the score pair (unanimous judges).
type GroundTruth struct {
	ID           int64     `json:"id"`
	QueryID      string    `json:"queryId"`
	Query        string    `json:"query"`
	ExpectedDocs []string  `json:"expectedDocs,omitempty"`
	Judge1Scores []float64 `json:"judge1Scores"`
	Judge2Scores []float64 `json:"judge2Scores"`
	Judge1Model  string    `json:"judge1Model"`
	Judge2Model  string    `json:"judge2Model"`
	Kappa        *float64  `json:"kappa"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ApiCostRecord books one provider call in the cost ledger.
type ApiCostRecord struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	Operation string    `json:"operation"`
	Model     string    `json:"model,omitempty"`
	Tokens    int       `json:"tokens"`
	CostUSD   float64   `json:"costUsd"`
	QueryID   string    `json:"queryId,omitempty"`
}

// CostSummary is one aggregated row of the cost ledger, grouped by
// provider, operation and UTC day.
type CostSummary struct {
	Provider  string  `json:"provider"`
	Operation string  `json:"operation"`
	Day       string  `json:"day,omitempty"`
	Calls     int     `json:"calls"`
	Tokens    int64   `json:"tokens"`
	CostUSD   float64 `json:"costUsd"`
}
