package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/MindWing/types"
)

// InsertInsight stores one compressed insight with its embedding. sourceIDs
// must be non-nil; an empty slice marks a synthesised insight and gets a
// metadata.source annotation unless the caller already set one. The insert
// and its FTS sync (trigger-driven) commit atomically.
func (s *Store) InsertInsight(ctx context.Context, content string, embedding []float32, sourceIDs []int64, metadata map[string]interface{}) (int64, time.Time, error) {
	if strings.TrimSpace(content) == "" {
		return 0, time.Time{}, types.ValidationError("content", "content is required")
	}
	if sourceIDs == nil {
		return 0, time.Time{}, types.ValidationError("source_ids", "source_ids is required; pass [] for synthesised insights")
	}
	if len(embedding) != s.dims {
		return 0, time.Time{}, types.ValidationError("embedding",
			fmt.Sprintf("embedding dimension %d does not match configured %d", len(embedding), s.dims))
	}

	if len(sourceIDs) == 0 {
		if _, ok := metadata["source"]; !ok {
			merged := make(map[string]interface{}, len(metadata)+1)
			for k, v := range metadata {
				merged[k] = v
			}
			merged["source"] = "synthesised"
			metadata = merged
		}
	}

	srcJSON, err := json.Marshal(sourceIDs)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("marshal source_ids: %w", err)
	}

	now := nowUTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO l2_insights (content, embedding, source_ids, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, content, EncodeVector(embedding), string(srcJSON), marshalMetadata(metadata), formatTime(now))
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("insert insight: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("insight id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, time.Time{}, fmt.Errorf("commit insight: %w", err)
	}

	return id, now, nil
}

// GetInsight looks up one insight by id. A missing row reports found=false
// with a nil error so clients can write-then-verify without error handling.
func (s *Store) GetInsight(ctx context.Context, id int64) (*Insight, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, embedding, source_ids, metadata, created_at
		FROM l2_insights WHERE id = ?
	`, id)

	ins, blob, err := scanInsight(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	vec, err := DecodeVector(blob)
	if err != nil {
		return nil, false, fmt.Errorf("decode insight %d embedding: %w", id, err)
	}
	ins.Embedding = vec
	return ins, true, nil
}

// InsightEmbedding fetches just the embedding for id, or found=false.
func (s *Store) InsightEmbedding(ctx context.Context, id int64) ([]float32, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, "SELECT embedding FROM l2_insights WHERE id = ?", id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read embedding %d: %w", id, err)
	}
	vec, err := DecodeVector(blob)
	if err != nil {
		return nil, false, fmt.Errorf("decode embedding %d: %w", id, err)
	}
	return vec, true, nil
}

// SearchInsightsByVector ranks insights by cosine similarity to queryVec,
// descending, ties broken toward the lower id.
func (s *Store) SearchInsightsByVector(ctx context.Context, queryVec []float32, topN int) ([]ScoredInsight, error) {
	if len(queryVec) != s.dims {
		return nil, types.ValidationError("query_embedding",
			fmt.Sprintf("embedding dimension %d does not match configured %d", len(queryVec), s.dims))
	}
	if topN <= 0 {
		topN = 10
	}
	return s.denseRank(ctx, queryVec, topN)
}

// SearchInsightsByText runs an FTS5 bm25-ranked lexical search. The query
// is sanitized into an OR expression of quoted content words; a query that
// sanitizes to nothing returns no results.
func (s *Store) SearchInsightsByText(ctx context.Context, query string, topN int) ([]ScoredInsight, error) {
	if topN <= 0 {
		topN = 10
	}

	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.content, i.embedding, i.source_ids, i.metadata, i.created_at,
		       bm25(l2_fts) AS rank
		FROM l2_fts f
		JOIN l2_insights i ON f.rowid = i.id
		WHERE l2_fts MATCH ?
		ORDER BY rank ASC, i.id ASC
		LIMIT ?
	`, sanitized, topN)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []ScoredInsight
	for rows.Next() {
		ins, _, rank, err := scanInsightWithDist(rows)
		if err != nil {
			return nil, err
		}
		// bm25 ranks best matches most negative; negate so higher is better.
		results = append(results, ScoredInsight{Insight: *ins, Score: -rank})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fts results: %w", err)
	}
	return results, nil
}

// ListRecentInsights returns the newest insights, embeddings omitted.
func (s *Store) ListRecentInsights(ctx context.Context, limit int) ([]Insight, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, embedding, source_ids, metadata, created_at
		FROM l2_insights
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var insights []Insight
	for rows.Next() {
		ins, _, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		insights = append(insights, *ins)
	}
	return insights, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInsight(row rowScanner) (*Insight, []byte, error) {
	var ins Insight
	var blob []byte
	var srcJSON string
	var meta sql.NullString
	var createdAt string

	if err := row.Scan(&ins.ID, &ins.Content, &blob, &srcJSON, &meta, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("scan insight: %w", err)
	}

	populateInsight(&ins, srcJSON, meta, createdAt)
	return &ins, blob, nil
}

func scanInsightWithDist(row rowScanner) (*Insight, []byte, float64, error) {
	var ins Insight
	var blob []byte
	var srcJSON string
	var meta sql.NullString
	var createdAt string
	var dist float64

	if err := row.Scan(&ins.ID, &ins.Content, &blob, &srcJSON, &meta, &createdAt, &dist); err != nil {
		return nil, nil, 0, fmt.Errorf("scan ranked insight: %w", err)
	}

	populateInsight(&ins, srcJSON, meta, createdAt)
	return &ins, blob, dist, nil
}

func populateInsight(ins *Insight, srcJSON string, meta sql.NullString, createdAt string) {
	ins.SourceIDs = []int64{}
	_ = json.Unmarshal([]byte(srcJSON), &ins.SourceIDs)
	if meta.Valid && meta.String != "" {
		_ = json.Unmarshal([]byte(meta.String), &ins.Metadata)
	}
	ins.CreatedAt = parseTime(createdAt)
}

func marshalMetadata(metadata map[string]interface{}) interface{} {
	if len(metadata) == 0 {
		return nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil
	}
	return string(b)
}

// sanitizeFTSQuery rewrites free text into a safe FTS5 MATCH expression.
// Content words are quoted and joined with OR for recall; stop words, FTS
// operators and special characters are stripped.
func sanitizeFTSQuery(query string) string {
	if query == "" {
		return ""
	}

	stopWords := map[string]bool{
		"a": true, "an": true, "the": true, "is": true, "are": true,
		"was": true, "were": true, "be": true, "been": true, "being": true,
		"have": true, "has": true, "had": true, "do": true, "does": true,
		"did": true, "will": true, "would": true, "could": true, "should": true,
		"what": true, "which": true, "who": true, "whom": true, "this": true,
		"that": true, "these": true, "those": true, "it": true, "its": true,
		"of": true, "for": true, "with": true, "about": true, "to": true,
		"from": true, "in": true, "out": true, "on": true, "off": true,
		"how": true, "why": true, "when": true, "where": true,
	}

	replacer := strings.NewReplacer(
		`"`, " ", `^`, " ", `:`, " ", `(`, " ", `)`, " ",
		`{`, " ", `}`, " ", `[`, " ", `]`, " ", `-`, " ", `+`, " ",
		`?`, " ", `!`, " ", `.`, " ", `,`, " ", `;`, " ",
	)
	sanitized := replacer.Replace(strings.ToLower(query))

	var filtered []string
	for _, word := range strings.Fields(sanitized) {
		if len(word) < 2 || stopWords[word] {
			continue
		}
		upper := strings.ToUpper(word)
		if upper == "OR" || upper == "AND" || upper == "NOT" || upper == "NEAR" {
			continue
		}
		word = strings.ReplaceAll(word, "*", "")
		if word != "" {
			filtered = append(filtered, word)
		}
	}

	if len(filtered) == 0 {
		return ""
	}

	quoted := make([]string, len(filtered))
	for i, w := range filtered {
		quoted[i] = `"` + w + `"`
	}
	return strings.Join(quoted, " OR ")
}
