//go:build !(sqlite_vec && cgo)

package memory

import (
	"context"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"
)

// Pure-Go build: modernc driver, dense ranking via exhaustive cosine scan.
const driverName = "sqlite"

func (s *Store) denseRank(ctx context.Context, queryVec []float32, topN int) ([]ScoredInsight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, embedding, source_ids, metadata, created_at
		FROM l2_insights
	`)
	if err != nil {
		return nil, fmt.Errorf("scan insights: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scored []ScoredInsight
	for rows.Next() {
		ins, blob, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		vec, err := DecodeVector(blob)
		if err != nil {
			continue
		}
		scored = append(scored, ScoredInsight{Insight: *ins, Score: CosineSimilarity(queryVec, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate insights: %w", err)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})

	if len(scored) > topN {
		scored = scored[:topN]
	}
	return scored, nil
}
