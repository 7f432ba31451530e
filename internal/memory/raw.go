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

// InsertRaw appends one turn to the L0 log. The log is append-only; there
// is no update or delete path.
func (s *Store) InsertRaw(ctx context.Context, sessionID, speaker, content string, metadata map[string]interface{}) (int64, time.Time, error) {
	if strings.TrimSpace(sessionID) == "" {
		return 0, time.Time{}, types.ValidationError("session_id", "session_id is required")
	}
	if strings.TrimSpace(speaker) == "" {
		return 0, time.Time{}, types.ValidationError("speaker", "speaker is required")
	}
	if strings.TrimSpace(content) == "" {
		return 0, time.Time{}, types.ValidationError("content", "content is required")
	}

	now := nowUTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO l0_raw (session_id, speaker, content, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?)
	`, sessionID, speaker, content, formatTime(now), marshalMetadata(metadata))
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("insert raw entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("raw entry id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, time.Time{}, fmt.Errorf("commit raw entry: %w", err)
	}

	return id, now, nil
}

// ListRawBySession returns L0 rows for a session in insertion order. Zero
// from/to bounds are unbounded; limit <= 0 selects the default of 100.
func (s *Store) ListRawBySession(ctx context.Context, sessionID string, from, to time.Time, limit int) ([]RawEntry, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, types.ValidationError("session_id", "session_id is required")
	}
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT id, session_id, speaker, content, timestamp, metadata FROM l0_raw WHERE session_id = ?"
	args := []interface{}{sessionID}
	if !from.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, formatTime(from))
	}
	if !to.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, formatTime(to))
	}
	query += " ORDER BY timestamp ASC, id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list raw entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []RawEntry
	for rows.Next() {
		var e RawEntry
		var ts string
		var meta sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Speaker, &e.Content, &ts, &meta); err != nil {
			return nil, fmt.Errorf("scan raw entry: %w", err)
		}
		e.Timestamp = parseTime(ts)
		if meta.Valid && meta.String != "" {
			_ = json.Unmarshal([]byte(meta.String), &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
