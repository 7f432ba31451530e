package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/josephgoksu/MindWing/types"
)

// InsertEpisode stores one reflection episode. Reward must be finite and
// within [-1,1].
func (s *Store) InsertEpisode(ctx context.Context, query string, reward float64, reflection string, embedding []float32) (int64, time.Time, error) {
	if strings.TrimSpace(query) == "" {
		return 0, time.Time{}, types.ValidationError("query", "query is required")
	}
	if strings.TrimSpace(reflection) == "" {
		return 0, time.Time{}, types.ValidationError("reflection", "reflection is required")
	}
	if math.IsNaN(reward) || math.IsInf(reward, 0) || reward < -1 || reward > 1 {
		return 0, time.Time{}, types.ValidationError("reward", "reward must be a finite value in [-1,1]")
	}
	if len(embedding) != s.dims {
		return 0, time.Time{}, types.ValidationError("embedding",
			fmt.Sprintf("embedding dimension %d does not match configured %d", len(embedding), s.dims))
	}

	now := nowUTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO episode_memory (query, reward, reflection, embedding, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, query, reward, reflection, EncodeVector(embedding), formatTime(now))
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("insert episode: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("episode id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, time.Time{}, fmt.Errorf("commit episode: %w", err)
	}

	return id, now, nil
}

// ListEpisodes returns the newest episodes first, embeddings omitted.
func (s *Store) ListEpisodes(ctx context.Context, limit int) ([]Episode, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, reward, reflection, created_at
		FROM episode_memory
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var episodes []Episode
	for rows.Next() {
		var e Episode
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Query, &e.Reward, &e.Reflection, &createdAt); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}

// SearchEpisodes ranks episodes by cosine similarity to queryVec, keeping
// those at or above minSimilarity.
func (s *Store) SearchEpisodes(ctx context.Context, queryVec []float32, minSimilarity float64, limit int) ([]ScoredEpisode, error) {
	if len(queryVec) != s.dims {
		return nil, types.ValidationError("query_embedding",
			fmt.Sprintf("embedding dimension %d does not match configured %d", len(queryVec), s.dims))
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, reward, reflection, embedding, created_at
		FROM episode_memory
	`)
	if err != nil {
		return nil, fmt.Errorf("scan episodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scored []ScoredEpisode
	for rows.Next() {
		var e Episode
		var blob []byte
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Query, &e.Reward, &e.Reflection, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		vec, err := DecodeVector(blob)
		if err != nil {
			continue
		}
		sim := CosineSimilarity(queryVec, vec)
		if sim >= minSimilarity {
			scored = append(scored, ScoredEpisode{Episode: e, Similarity: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].ID < scored[j].ID
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}
