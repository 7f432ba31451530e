package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/josephgoksu/MindWing/types"
)

// InsertGroundTruth persists one dual-judge record. A nil Kappa stores SQL
// NULL, marking an undefined agreement statistic.
func (s *Store) InsertGroundTruth(ctx context.Context, rec GroundTruth) (int64, error) {
	if strings.TrimSpace(rec.QueryID) == "" {
		return 0, types.ValidationError("query_id", "query_id is required")
	}
	if strings.TrimSpace(rec.Query) == "" {
		return 0, types.ValidationError("query", "query is required")
	}

	expJSON, err := json.Marshal(rec.ExpectedDocs)
	if err != nil {
		return 0, fmt.Errorf("marshal expected_docs: %w", err)
	}
	j1JSON, err := json.Marshal(rec.Judge1Scores)
	if err != nil {
		return 0, fmt.Errorf("marshal judge1 scores: %w", err)
	}
	j2JSON, err := json.Marshal(rec.Judge2Scores)
	if err != nil {
		return 0, fmt.Errorf("marshal judge2 scores: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = nowUTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO ground_truth
			(query_id, query, expected_docs, judge1_score, judge2_score, judge1_model, judge2_model, kappa, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.QueryID, rec.Query, string(expJSON), string(j1JSON), string(j2JSON),
		rec.Judge1Model, rec.Judge2Model, rec.Kappa, formatTime(createdAt))
	if err != nil {
		return 0, fmt.Errorf("insert ground truth: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ground truth id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit ground truth: %w", err)
	}

	return id, nil
}

// ListGroundTruth returns the newest evaluation records first.
func (s *Store) ListGroundTruth(ctx context.Context, limit int) ([]GroundTruth, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query_id, query, expected_docs, judge1_score, judge2_score,
		       judge1_model, judge2_model, kappa, created_at
		FROM ground_truth
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list ground truth: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []GroundTruth
	for rows.Next() {
		var rec GroundTruth
		var expJSON, j1JSON, j2JSON, j1Model, j2Model sql.NullString
		var kappa sql.NullFloat64
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.QueryID, &rec.Query, &expJSON, &j1JSON, &j2JSON,
			&j1Model, &j2Model, &kappa, &createdAt); err != nil {
			return nil, fmt.Errorf("scan ground truth: %w", err)
		}
		if expJSON.Valid {
			_ = json.Unmarshal([]byte(expJSON.String), &rec.ExpectedDocs)
		}
		if j1JSON.Valid {
			_ = json.Unmarshal([]byte(j1JSON.String), &rec.Judge1Scores)
		}
		if j2JSON.Valid {
			_ = json.Unmarshal([]byte(j2JSON.String), &rec.Judge2Scores)
		}
		rec.Judge1Model = j1Model.String
		rec.Judge2Model = j2Model.String
		if kappa.Valid {
			k := kappa.Float64
			rec.Kappa = &k
		}
		rec.CreatedAt = parseTime(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}
