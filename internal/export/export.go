// Package export snapshots the memory database into portable JSONL files
// and restores them. Every tier gets one file; embeddings travel as base64
// of the stored little-endian float32 blob, timestamps as the stored TEXT
// so a round trip is byte-exact. A manifest records the schema version and
// vector dimensions so restores can refuse incompatible snapshots. All file
// access goes through afero.Fs.
package export

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/josephgoksu/MindWing/internal/memory"
)

// SchemaVersion is stamped into every manifest. Restore refuses snapshots
// written with a different version.
const SchemaVersion = 1

// Snapshot file names inside the export directory.
const (
	ManifestFile = "manifest.json"
	RawFile      = "raw_dialogue.jsonl"
	InsightsFile = "insights.jsonl"
	WorkingFile  = "working_memory.jsonl"
	StaleFile    = "stale_memory.jsonl"
	EpisodesFile = "episodes.jsonl"
	NodesFile    = "graph_nodes.jsonl"
	EdgesFile    = "graph_edges.jsonl"
)

// Manifest describes one snapshot directory.
type Manifest struct {
	SchemaVersion int            `json:"schema_version"`
	Dimensions    int            `json:"dimensions"`
	ExportedAt    time.Time      `json:"exported_at"`
	Counts        map[string]int `json:"counts"`
}

// Wire rows mirror the table columns. Timestamps stay the TEXT the
// database holds; JSON columns pass through unparsed.

type rawRow struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Speaker   string          `json:"speaker"`
	Content   string          `json:"content"`
	Timestamp string          `json:"timestamp"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

type insightRow struct {
	ID        int64           `json:"id"`
	Content   string          `json:"content"`
	Embedding string          `json:"embedding"`
	SourceIDs json.RawMessage `json:"source_ids"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt string          `json:"created_at"`
}

type workingRow struct {
	ID           int64   `json:"id"`
	Content      string  `json:"content"`
	Importance   float64 `json:"importance"`
	LastAccessed string  `json:"last_accessed"`
	CreatedAt    string  `json:"created_at"`
}

type staleRow struct {
	ID              int64   `json:"id"`
	OriginalContent string  `json:"original_content"`
	Importance      float64 `json:"importance"`
	ArchivedAt      string  `json:"archived_at"`
	Reason          string  `json:"reason"`
}

type episodeRow struct {
	ID         int64   `json:"id"`
	Query      string  `json:"query"`
	Reward     float64 `json:"reward"`
	Reflection string  `json:"reflection"`
	Embedding  string  `json:"embedding"`
	CreatedAt  string  `json:"created_at"`
}

type nodeRow struct {
	ID         string          `json:"id"`
	Label      string          `json:"label"`
	Name       string          `json:"name"`
	Properties json.RawMessage `json:"properties,omitempty"`
	VectorID   *int64          `json:"vector_id,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

type edgeRow struct {
	ID           string          `json:"id"`
	SourceID     string          `json:"source_id"`
	TargetID     string          `json:"target_id"`
	Relation     string          `json:"relation"`
	Weight       float64         `json:"weight"`
	Properties   json.RawMessage `json:"properties,omitempty"`
	CreatedAt    string          `json:"created_at"`
	ModifiedAt   string          `json:"modified_at"`
	LastAccessed string          `json:"last_accessed"`
	AccessCount  int64           `json:"access_count"`
}

// Snapshot writes one JSONL file per tier plus the manifest into dir. The
// ground-truth and cost-ledger tables are operational records, not memory,
// and stay behind.
func Snapshot(ctx context.Context, store *memory.Store, fs afero.Fs, dir string) (*Manifest, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}

	db := store.DB()
	manifest := &Manifest{
		SchemaVersion: SchemaVersion,
		Dimensions:    store.Dimensions(),
		ExportedAt:    time.Now().UTC(),
		Counts:        make(map[string]int),
	}

	raw, err := collectRaw(ctx, db)
	if err != nil {
		return nil, err
	}
	if manifest.Counts[RawFile], err = writeJSONL(fs, filepath.Join(dir, RawFile), raw); err != nil {
		return nil, err
	}

	insights, err := collectInsights(ctx, db)
	if err != nil {
		return nil, err
	}
	if manifest.Counts[InsightsFile], err = writeJSONL(fs, filepath.Join(dir, InsightsFile), insights); err != nil {
		return nil, err
	}

	working, err := collectWorking(ctx, db)
	if err != nil {
		return nil, err
	}
	if manifest.Counts[WorkingFile], err = writeJSONL(fs, filepath.Join(dir, WorkingFile), working); err != nil {
		return nil, err
	}

	stale, err := collectStale(ctx, db)
	if err != nil {
		return nil, err
	}
	if manifest.Counts[StaleFile], err = writeJSONL(fs, filepath.Join(dir, StaleFile), stale); err != nil {
		return nil, err
	}

	episodes, err := collectEpisodes(ctx, db)
	if err != nil {
		return nil, err
	}
	if manifest.Counts[EpisodesFile], err = writeJSONL(fs, filepath.Join(dir, EpisodesFile), episodes); err != nil {
		return nil, err
	}

	nodes, err := collectNodes(ctx, db)
	if err != nil {
		return nil, err
	}
	if manifest.Counts[NodesFile], err = writeJSONL(fs, filepath.Join(dir, NodesFile), nodes); err != nil {
		return nil, err
	}

	edges, err := collectEdges(ctx, db)
	if err != nil {
		return nil, err
	}
	if manifest.Counts[EdgesFile], err = writeJSONL(fs, filepath.Join(dir, EdgesFile), edges); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := afero.WriteFile(fs, filepath.Join(dir, ManifestFile), append(data, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	return manifest, nil
}

func collectRaw(ctx context.Context, db *sql.DB) ([]rawRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, session_id, speaker, content, timestamp, metadata
		FROM l0_raw ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("export l0_raw: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []rawRow
	for rows.Next() {
		var r rawRow
		var meta sql.NullString
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Speaker, &r.Content, &r.Timestamp, &meta); err != nil {
			return nil, fmt.Errorf("scan l0_raw row: %w", err)
		}
		r.Metadata = rawJSON(meta)
		out = append(out, r)
	}
	return out, rows.Err()
}

func collectInsights(ctx context.Context, db *sql.DB) ([]insightRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, content, embedding, source_ids, metadata, created_at
		FROM l2_insights ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("export l2_insights: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []insightRow
	for rows.Next() {
		var r insightRow
		var blob []byte
		var sourceIDs string
		var meta sql.NullString
		if err := rows.Scan(&r.ID, &r.Content, &blob, &sourceIDs, &meta, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan l2_insights row: %w", err)
		}
		r.Embedding = base64.StdEncoding.EncodeToString(blob)
		r.SourceIDs = json.RawMessage(sourceIDs)
		r.Metadata = rawJSON(meta)
		out = append(out, r)
	}
	return out, rows.Err()
}

func collectWorking(ctx context.Context, db *sql.DB) ([]workingRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, content, importance, last_accessed, created_at
		FROM working_memory ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("export working_memory: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []workingRow
	for rows.Next() {
		var r workingRow
		if err := rows.Scan(&r.ID, &r.Content, &r.Importance, &r.LastAccessed, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan working_memory row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func collectStale(ctx context.Context, db *sql.DB) ([]staleRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, original_content, importance, archived_at, reason
		FROM stale_memory ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("export stale_memory: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []staleRow
	for rows.Next() {
		var r staleRow
		if err := rows.Scan(&r.ID, &r.OriginalContent, &r.Importance, &r.ArchivedAt, &r.Reason); err != nil {
			return nil, fmt.Errorf("scan stale_memory row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func collectEpisodes(ctx context.Context, db *sql.DB) ([]episodeRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, query, reward, reflection, embedding, created_at
		FROM episode_memory ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("export episode_memory: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []episodeRow
	for rows.Next() {
		var r episodeRow
		var blob []byte
		if err := rows.Scan(&r.ID, &r.Query, &r.Reward, &r.Reflection, &blob, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan episode_memory row: %w", err)
		}
		r.Embedding = base64.StdEncoding.EncodeToString(blob)
		out = append(out, r)
	}
	return out, rows.Err()
}

func collectNodes(ctx context.Context, db *sql.DB) ([]nodeRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, label, name, properties, vector_id, created_at
		FROM graph_nodes ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("export graph_nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []nodeRow
	for rows.Next() {
		var r nodeRow
		var props sql.NullString
		var vectorID sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Label, &r.Name, &props, &vectorID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan graph_nodes row: %w", err)
		}
		r.Properties = rawJSON(props)
		if vectorID.Valid {
			v := vectorID.Int64
			r.VectorID = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func collectEdges(ctx context.Context, db *sql.DB) ([]edgeRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, source_id, target_id, relation, weight, properties,
		       created_at, modified_at, last_accessed, access_count
		FROM graph_edges ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("export graph_edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []edgeRow
	for rows.Next() {
		var r edgeRow
		var props sql.NullString
		if err := rows.Scan(&r.ID, &r.SourceID, &r.TargetID, &r.Relation, &r.Weight, &props,
			&r.CreatedAt, &r.ModifiedAt, &r.LastAccessed, &r.AccessCount); err != nil {
			return nil, fmt.Errorf("scan graph_edges row: %w", err)
		}
		r.Properties = rawJSON(props)
		out = append(out, r)
	}
	return out, rows.Err()
}

// writeJSONL writes one JSON object per line. An empty tier still produces
// the file so a snapshot directory always has the full set.
func writeJSONL[T any](fs afero.Fs, path string, rows []T) (int, error) {
	f, err := fs.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	for _, row := range rows {
		line, err := json.Marshal(row)
		if err != nil {
			return 0, fmt.Errorf("marshal row for %s: %w", path, err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return 0, fmt.Errorf("write %s: %w", path, err)
		}
	}
	return len(rows), nil
}

func rawJSON(s sql.NullString) json.RawMessage {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.RawMessage(s.String)
}
