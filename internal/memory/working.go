package memory

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/josephgoksu/MindWing/types"
)

// WorkingPolicy bounds the working set. Items with importance above the
// critical threshold resist LRU eviction until nothing else is left.
type WorkingPolicy struct {
	Capacity          int
	CriticalThreshold float64
}

// DefaultWorkingPolicy matches the shipped configuration.
var DefaultWorkingPolicy = WorkingPolicy{Capacity: 10, CriticalThreshold: 0.8}

// EvictionResult reports an UpdateWorking outcome. EvictedID and
// ArchivedID are nil when the insert fit within capacity.
type EvictionResult struct {
	AddedID    int64
	EvictedID  *int64
	ArchivedID *int64
}

// UpdateWorking inserts one item into the working set and, when the set
// exceeds capacity, evicts exactly one victim into stale_memory. The whole
// protocol runs in a single transaction: insert, count, victim selection
// (LRU among items at or below the critical threshold, falling back to the
// overall oldest), archive copy, delete. Any failure rolls back everything
// including the insert.
func (s *Store) UpdateWorking(ctx context.Context, content string, importance float64, policy WorkingPolicy) (*EvictionResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, types.ValidationError("content", "content is required")
	}
	if math.IsNaN(importance) || importance < 0 || importance > 1 {
		return nil, types.ValidationError("importance", "importance must be in [0,1]")
	}
	if policy.Capacity <= 0 {
		policy = DefaultWorkingPolicy
	}

	now := nowUTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO working_memory (content, importance, last_accessed, created_at)
		VALUES (?, ?, ?, ?)
	`, content, importance, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert working item: %w", err)
	}
	addedID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("working item id: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM working_memory").Scan(&count); err != nil {
		return nil, fmt.Errorf("count working items: %w", err)
	}

	result := &EvictionResult{AddedID: addedID}

	if count <= policy.Capacity {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit working update: %w", err)
		}
		return result, nil
	}

	// Over capacity: prefer the least-recently-used item whose importance
	// does not exceed the critical threshold.
	victim, err := selectVictim(ctx, tx, `
		SELECT id, content, importance FROM working_memory
		WHERE importance <= ?
		ORDER BY last_accessed ASC, id ASC
		LIMIT 1
	`, policy.CriticalThreshold)
	if err != nil {
		return nil, err
	}
	if victim == nil {
		// Every item is critical; evict the oldest regardless.
		victim, err = selectVictim(ctx, tx, `
			SELECT id, content, importance FROM working_memory
			ORDER BY last_accessed ASC, id ASC
			LIMIT 1
		`)
		if err != nil {
			return nil, err
		}
	}
	if victim == nil {
		return nil, fmt.Errorf("no eviction candidate in non-empty working set")
	}

	archRes, err := tx.ExecContext(ctx, `
		INSERT INTO stale_memory (original_content, importance, archived_at, reason)
		VALUES (?, ?, ?, ?)
	`, victim.Content, victim.Importance, formatTime(now), ReasonLRUEviction)
	if err != nil {
		return nil, fmt.Errorf("archive evicted item: %w", err)
	}
	archivedID, err := archRes.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("archived item id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM working_memory WHERE id = ?", victim.ID); err != nil {
		return nil, fmt.Errorf("delete evicted item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit working update: %w", err)
	}

	result.EvictedID = &victim.ID
	result.ArchivedID = &archivedID
	return result, nil
}

func selectVictim(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (*WorkingItem, error) {
	var v WorkingItem
	err := tx.QueryRowContext(ctx, query, args...).Scan(&v.ID, &v.Content, &v.Importance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select eviction victim: %w", err)
	}
	return &v, nil
}

// ArchiveWorking moves one working item into stale_memory with reason
// MANUAL_ARCHIVE. A missing id reports found=false without error.
func (s *Store) ArchiveWorking(ctx context.Context, id int64) (int64, bool, error) {
	now := nowUTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var content string
	var importance float64
	err = tx.QueryRowContext(ctx, "SELECT content, importance FROM working_memory WHERE id = ?", id).
		Scan(&content, &importance)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read working item: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO stale_memory (original_content, importance, archived_at, reason)
		VALUES (?, ?, ?, ?)
	`, content, importance, formatTime(now), ReasonManualArchive)
	if err != nil {
		return 0, false, fmt.Errorf("archive working item: %w", err)
	}
	archivedID, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("archived item id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM working_memory WHERE id = ?", id); err != nil {
		return 0, false, fmt.Errorf("delete working item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit archive: %w", err)
	}

	return archivedID, true, nil
}

// ListWorking returns the working set, most recently touched first.
func (s *Store) ListWorking(ctx context.Context) ([]WorkingItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, importance, last_accessed, created_at
		FROM working_memory
		ORDER BY last_accessed DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list working items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []WorkingItem
	for rows.Next() {
		var item WorkingItem
		var accessed, created string
		if err := rows.Scan(&item.ID, &item.Content, &item.Importance, &accessed, &created); err != nil {
			return nil, fmt.Errorf("scan working item: %w", err)
		}
		item.LastAccessed = parseTime(accessed)
		item.CreatedAt = parseTime(created)
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountWorking reports the current working-set size.
func (s *Store) CountWorking(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM working_memory").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count working items: %w", err)
	}
	return count, nil
}

// ListStale returns archived items at or above minImportance, newest first.
func (s *Store) ListStale(ctx context.Context, minImportance float64, limit int) ([]StaleItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, original_content, importance, archived_at, reason
		FROM stale_memory
		WHERE importance >= ?
		ORDER BY archived_at DESC, id DESC
		LIMIT ?
	`, minImportance, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []StaleItem
	for rows.Next() {
		var item StaleItem
		var archivedAt string
		if err := rows.Scan(&item.ID, &item.OriginalContent, &item.Importance, &archivedAt, &item.Reason); err != nil {
			return nil, fmt.Errorf("scan stale item: %w", err)
		}
		item.ArchivedAt = parseTime(archivedAt)
		items = append(items, item)
	}
	return items, rows.Err()
}
