package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// InsertCost books one provider call. Ledger writes are best-effort from
// the caller's perspective but still transactional here.
func (s *Store) InsertCost(ctx context.Context, rec ApiCostRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = nowUTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_cost_log (timestamp, provider, operation, model, tokens, cost_usd, query_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, formatTime(ts), rec.Provider, rec.Operation, nullable(rec.Model), rec.Tokens, rec.CostUSD, nullable(rec.QueryID))
	if err != nil {
		return fmt.Errorf("insert cost record: %w", err)
	}
	return nil
}

// SummarizeCosts aggregates the ledger by provider, operation and UTC day,
// newest day first.
func (s *Store) SummarizeCosts(ctx context.Context) ([]CostSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, operation, substr(timestamp, 1, 10) AS day,
		       COUNT(*), COALESCE(SUM(tokens), 0), COALESCE(SUM(cost_usd), 0)
		FROM api_cost_log
		GROUP BY provider, operation, day
		ORDER BY day DESC, provider ASC, operation ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("summarize costs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []CostSummary
	for rows.Next() {
		var cs CostSummary
		if err := rows.Scan(&cs.Provider, &cs.Operation, &cs.Day, &cs.Calls, &cs.Tokens, &cs.CostUSD); err != nil {
			return nil, fmt.Errorf("scan cost summary: %w", err)
		}
		summaries = append(summaries, cs)
	}
	return summaries, rows.Err()
}

// SummarizeCostsForQueries aggregates the ledger rows booked against the
// given query ids, grouped by provider and operation. Day is left empty;
// a run is scored as a whole.
func (s *Store) SummarizeCostsForQueries(ctx context.Context, queryIDs []string) ([]CostSummary, error) {
	if len(queryIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(queryIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(queryIDs))
	for i, id := range queryIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, operation, COUNT(*), COALESCE(SUM(tokens), 0), COALESCE(SUM(cost_usd), 0)
		FROM api_cost_log
		WHERE query_id IN (`+placeholders+`)
		GROUP BY provider, operation
		ORDER BY provider ASC, operation ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("summarize query costs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []CostSummary
	for rows.Next() {
		var cs CostSummary
		if err := rows.Scan(&cs.Provider, &cs.Operation, &cs.Calls, &cs.Tokens, &cs.CostUSD); err != nil {
			return nil, fmt.Errorf("scan cost summary: %w", err)
		}
		summaries = append(summaries, cs)
	}
	return summaries, rows.Err()
}

// TotalCost reports the ledger total in USD.
func (s *Store) TotalCost(ctx context.Context) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx, "SELECT SUM(cost_usd) FROM api_cost_log").Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total cost: %w", err)
	}
	return total.Float64, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
