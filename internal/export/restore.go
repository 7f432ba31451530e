package export

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/josephgoksu/MindWing/internal/memory"
)

// ReadManifest loads the manifest of a snapshot directory.
func ReadManifest(fs afero.Fs, dir string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// Restore replays a snapshot into the store, one transaction per tier, in
// an order that satisfies the schema's references (insights before graph
// nodes, nodes before edges). Rows keep their exported ids, so the target
// should be a fresh database. The manifest dimensions must match the store;
// every embedding is re-validated against them before insert.
func Restore(ctx context.Context, store *memory.Store, fs afero.Fs, dir string) (*Manifest, error) {
	manifest, err := ReadManifest(fs, dir)
	if err != nil {
		return nil, err
	}
	if manifest.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("snapshot schema version %d is not supported (want %d)",
			manifest.SchemaVersion, SchemaVersion)
	}
	if manifest.Dimensions != store.Dimensions() {
		return nil, fmt.Errorf("snapshot dimensions %d do not match store dimensions %d",
			manifest.Dimensions, store.Dimensions())
	}

	db := store.DB()
	dims := store.Dimensions()

	if err := restoreRaw(ctx, db, fs, filepath.Join(dir, RawFile)); err != nil {
		return nil, err
	}
	if err := restoreInsights(ctx, db, fs, filepath.Join(dir, InsightsFile), dims); err != nil {
		return nil, err
	}
	if err := restoreWorking(ctx, db, fs, filepath.Join(dir, WorkingFile)); err != nil {
		return nil, err
	}
	if err := restoreStale(ctx, db, fs, filepath.Join(dir, StaleFile)); err != nil {
		return nil, err
	}
	if err := restoreEpisodes(ctx, db, fs, filepath.Join(dir, EpisodesFile), dims); err != nil {
		return nil, err
	}
	if err := restoreNodes(ctx, db, fs, filepath.Join(dir, NodesFile)); err != nil {
		return nil, err
	}
	if err := restoreEdges(ctx, db, fs, filepath.Join(dir, EdgesFile)); err != nil {
		return nil, err
	}

	return manifest, nil
}

func restoreRaw(ctx context.Context, db *sql.DB, fs afero.Fs, path string) error {
	rows, err := readJSONL[rawRow](fs, path)
	if err != nil || len(rows) == 0 {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin l0_raw restore: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO l0_raw (id, session_id, speaker, content, timestamp, metadata)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.ID, r.SessionID, r.Speaker, r.Content, r.Timestamp, sqlJSON(r.Metadata)); err != nil {
			return fmt.Errorf("restore l0_raw row %d: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit l0_raw restore: %w", err)
	}
	return nil
}

func restoreInsights(ctx context.Context, db *sql.DB, fs afero.Fs, path string, dims int) error {
	rows, err := readJSONL[insightRow](fs, path)
	if err != nil || len(rows) == 0 {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin l2_insights restore: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range rows {
		blob, err := decodeEmbedding(r.Embedding, dims)
		if err != nil {
			return fmt.Errorf("restore l2_insights row %d: %w", r.ID, err)
		}
		// The insert fires the l2_fts trigger, so the lexical index
		// rebuilds itself during the replay.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO l2_insights (id, content, embedding, source_ids, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.ID, r.Content, blob, string(r.SourceIDs), sqlJSON(r.Metadata), r.CreatedAt); err != nil {
			return fmt.Errorf("restore l2_insights row %d: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit l2_insights restore: %w", err)
	}
	return nil
}

func restoreWorking(ctx context.Context, db *sql.DB, fs afero.Fs, path string) error {
	rows, err := readJSONL[workingRow](fs, path)
	if err != nil || len(rows) == 0 {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin working_memory restore: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO working_memory (id, content, importance, last_accessed, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, r.ID, r.Content, r.Importance, r.LastAccessed, r.CreatedAt); err != nil {
			return fmt.Errorf("restore working_memory row %d: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit working_memory restore: %w", err)
	}
	return nil
}

func restoreStale(ctx context.Context, db *sql.DB, fs afero.Fs, path string) error {
	rows, err := readJSONL[staleRow](fs, path)
	if err != nil || len(rows) == 0 {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stale_memory restore: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stale_memory (id, original_content, importance, archived_at, reason)
			VALUES (?, ?, ?, ?, ?)
		`, r.ID, r.OriginalContent, r.Importance, r.ArchivedAt, r.Reason); err != nil {
			return fmt.Errorf("restore stale_memory row %d: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stale_memory restore: %w", err)
	}
	return nil
}

func restoreEpisodes(ctx context.Context, db *sql.DB, fs afero.Fs, path string, dims int) error {
	rows, err := readJSONL[episodeRow](fs, path)
	if err != nil || len(rows) == 0 {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin episode_memory restore: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range rows {
		blob, err := decodeEmbedding(r.Embedding, dims)
		if err != nil {
			return fmt.Errorf("restore episode_memory row %d: %w", r.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO episode_memory (id, query, reward, reflection, embedding, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.ID, r.Query, r.Reward, r.Reflection, blob, r.CreatedAt); err != nil {
			return fmt.Errorf("restore episode_memory row %d: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit episode_memory restore: %w", err)
	}
	return nil
}

func restoreNodes(ctx context.Context, db *sql.DB, fs afero.Fs, path string) error {
	rows, err := readJSONL[nodeRow](fs, path)
	if err != nil || len(rows) == 0 {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin graph_nodes restore: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range rows {
		var vectorID interface{}
		if r.VectorID != nil {
			vectorID = *r.VectorID
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO graph_nodes (id, label, name, properties, vector_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.ID, r.Label, r.Name, sqlJSON(r.Properties), vectorID, r.CreatedAt); err != nil {
			return fmt.Errorf("restore graph_nodes row %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit graph_nodes restore: %w", err)
	}
	return nil
}

func restoreEdges(ctx context.Context, db *sql.DB, fs afero.Fs, path string) error {
	rows, err := readJSONL[edgeRow](fs, path)
	if err != nil || len(rows) == 0 {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin graph_edges restore: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO graph_edges
				(id, source_id, target_id, relation, weight, properties,
				 created_at, modified_at, last_accessed, access_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.SourceID, r.TargetID, r.Relation, r.Weight, sqlJSON(r.Properties),
			r.CreatedAt, r.ModifiedAt, r.LastAccessed, r.AccessCount); err != nil {
			return fmt.Errorf("restore graph_edges row %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit graph_edges restore: %w", err)
	}
	return nil
}

// readJSONL loads a tier file. A missing file reads as an empty tier so
// partial snapshots restore cleanly. Lines are split on the raw bytes, not
// scanned, so long rows carry no length limit.
func readJSONL[T any](fs afero.Fs, path string) ([]T, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", path, err)
	}
	if !exists {
		return nil, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var out []T
	for i, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", path, i+1, err)
		}
		out = append(out, row)
	}
	return out, nil
}

func decodeEmbedding(encoded string, dims int) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	if len(blob) != dims*4 {
		return nil, fmt.Errorf("embedding has %d dimensions, store expects %d", len(blob)/4, dims)
	}
	return blob, nil
}

func sqlJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
