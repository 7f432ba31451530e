//go:build sqlite_vec && cgo

package memory

import (
	"context"
	"fmt"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// sqlite-vec build: the extension registers vec_distance_cosine on every
// connection, so ranking pushes down into SQL instead of a Go-side scan.
const driverName = "sqlite3"

func init() {
	vec.Auto()
}

func (s *Store) denseRank(ctx context.Context, queryVec []float32, topN int) ([]ScoredInsight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, embedding, source_ids, metadata, created_at,
		       vec_distance_cosine(embedding, ?) AS dist
		FROM l2_insights
		ORDER BY dist ASC, id ASC
		LIMIT ?
	`, EncodeVector(queryVec), topN)
	if err != nil {
		return nil, fmt.Errorf("rank insights: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scored []ScoredInsight
	for rows.Next() {
		ins, _, dist, err := scanInsightWithDist(rows)
		if err != nil {
			return nil, err
		}
		scored = append(scored, ScoredInsight{Insight: *ins, Score: 1 - dist})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate insights: %w", err)
	}
	return scored, nil
}
