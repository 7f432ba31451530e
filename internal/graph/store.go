// Package graph implements the knowledge graph: typed nodes and directed
// edges in SQLite, bounded traversal with memory reinforcement, shortest
// paths, and the Ebbinghaus-style relevance decay behind both.
package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josephgoksu/MindWing/types"
)

// EmbeddingSource resolves an insight id to its embedding; satisfied by the
// memory store. Traversal uses it for the IEF similarity component.
type EmbeddingSource interface {
	InsightEmbedding(ctx context.Context, id int64) ([]float32, bool, error)
}

// Store owns graph reads and writes on the shared database handle.
type Store struct {
	db      *sql.DB
	vectors EmbeddingSource
}

// NewStore wraps the shared handle. vectors may be nil; IEF similarity then
// falls back to its neutral value.
func NewStore(db *sql.DB, vectors EmbeddingSource) *Store {
	return &Store{db: db, vectors: vectors}
}

// AddNode upserts a node on (label, name). An existing node keeps its id;
// incoming properties merge key-wise over the stored ones, and a non-nil
// vectorID replaces the stored anchor.
func (s *Store) AddNode(ctx context.Context, label, name string, properties map[string]interface{}, vectorID *int64) (string, error) {
	if strings.TrimSpace(label) == "" {
		return "", types.ValidationError("label", "label is required")
	}
	if strings.TrimSpace(name) == "" {
		return "", types.ValidationError("name", "name is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := upsertNodeTx(ctx, tx, label, name, properties, vectorID)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit node: %w", err)
	}
	return id, nil
}

func upsertNodeTx(ctx context.Context, tx *sql.Tx, label, name string, properties map[string]interface{}, vectorID *int64) (string, error) {
	var existingID string
	var existingProps sql.NullString
	err := tx.QueryRowContext(ctx,
		"SELECT id, properties FROM graph_nodes WHERE label = ? AND name = ?",
		label, name).Scan(&existingID, &existingProps)

	switch {
	case err == sql.ErrNoRows:
		id := uuid.NewString()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO graph_nodes (id, label, name, properties, vector_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, label, name, marshalProps(properties), vectorID, formatTime(time.Now().UTC()))
		if err != nil {
			return "", fmt.Errorf("insert node: %w", err)
		}
		return id, nil

	case err != nil:
		return "", fmt.Errorf("lookup node: %w", err)

	default:
		merged := mergeProps(unmarshalProps(existingProps), properties)
		if vectorID != nil {
			_, err = tx.ExecContext(ctx,
				"UPDATE graph_nodes SET properties = ?, vector_id = ? WHERE id = ?",
				marshalProps(merged), *vectorID, existingID)
		} else {
			_, err = tx.ExecContext(ctx,
				"UPDATE graph_nodes SET properties = ? WHERE id = ?",
				marshalProps(merged), existingID)
		}
		if err != nil {
			return "", fmt.Errorf("update node: %w", err)
		}
		return existingID, nil
	}
}

// AddEdge inserts (or refreshes) a directed relation. Missing endpoints are
// auto-created with the default label unless one is supplied. Edge identity
// is (source, target, relation): repeating the call updates weight and
// properties on the existing edge instead of duplicating it.
func (s *Store) AddEdge(ctx context.Context, sourceName, targetName, relation, sourceLabel, targetLabel string, weight float64, properties map[string]interface{}) (string, error) {
	if strings.TrimSpace(sourceName) == "" {
		return "", types.ValidationError("source_name", "source_name is required")
	}
	if strings.TrimSpace(targetName) == "" {
		return "", types.ValidationError("target_name", "target_name is required")
	}
	if strings.TrimSpace(relation) == "" {
		return "", types.ValidationError("relation", "relation is required")
	}
	if weight < 0 {
		return "", types.ValidationError("weight", "weight must be non-negative")
	}
	if sourceLabel == "" {
		sourceLabel = DefaultLabel
	}
	if targetLabel == "" {
		targetLabel = DefaultLabel
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sourceID, err := resolveEndpointTx(ctx, tx, sourceLabel, sourceName)
	if err != nil {
		return "", err
	}
	targetID, err := resolveEndpointTx(ctx, tx, targetLabel, targetName)
	if err != nil {
		return "", err
	}

	var edgeID string
	var existingProps sql.NullString
	err = tx.QueryRowContext(ctx,
		"SELECT id, properties FROM graph_edges WHERE source_id = ? AND target_id = ? AND relation = ?",
		sourceID, targetID, relation).Scan(&edgeID, &existingProps)

	switch {
	case err == sql.ErrNoRows:
		edgeID = uuid.NewString()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO graph_edges
				(id, source_id, target_id, relation, weight, properties, created_at, modified_at, last_accessed, access_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		`, edgeID, sourceID, targetID, relation, weight, marshalProps(properties),
			formatTime(now), formatTime(now), formatTime(now))
		if err != nil {
			return "", fmt.Errorf("insert edge: %w", err)
		}

	case err != nil:
		return "", fmt.Errorf("lookup edge: %w", err)

	default:
		merged := mergeProps(unmarshalProps(existingProps), properties)
		_, err = tx.ExecContext(ctx,
			"UPDATE graph_edges SET weight = ?, properties = ?, modified_at = ? WHERE id = ?",
			weight, marshalProps(merged), formatTime(now), edgeID)
		if err != nil {
			return "", fmt.Errorf("update edge: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit edge: %w", err)
	}
	return edgeID, nil
}

// resolveEndpointTx finds a node by name (any label first, preferring an
// exact label match) or creates it.
func resolveEndpointTx(ctx context.Context, tx *sql.Tx, label, name string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM graph_nodes WHERE name = ? ORDER BY CASE WHEN label = ? THEN 0 ELSE 1 END, label LIMIT 1",
		name, label).Scan(&id)
	if err == sql.ErrNoRows {
		return upsertNodeTx(ctx, tx, label, name, nil, nil)
	}
	if err != nil {
		return "", fmt.Errorf("resolve endpoint %q: %w", name, err)
	}
	return id, nil
}

// NodeByName returns the node with the given name, or nil when absent.
// Names are unique per label; across labels the lexically first label wins.
func (s *Store) NodeByName(ctx context.Context, name string) (*Node, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, label, name, properties, vector_id, created_at
		FROM graph_nodes WHERE name = ? ORDER BY label LIMIT 1
	`, name)
	return scanNode(row)
}

// NodeByID returns the node with the given id, or nil when absent.
func (s *Store) NodeByID(ctx context.Context, id string) (*Node, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, label, name, properties, vector_id, created_at
		FROM graph_nodes WHERE id = ?
	`, id)
	return scanNode(row)
}

// NodesByNames resolves a set of names in one query, keyed by name.
func (s *Store) NodesByNames(ctx context.Context, names []string) (map[string]*Node, error) {
	if len(names) == 0 {
		return map[string]*Node{}, nil
	}
	placeholders := strings.Repeat("?,", len(names))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(names))
	for i, n := range names {
		args[i] = n
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, name, properties, vector_id, created_at
		FROM graph_nodes WHERE name IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]*Node)
	for rows.Next() {
		node, err := scanNodeRows(rows)
		if err != nil {
			return nil, err
		}
		if _, taken := found[node.Name]; !taken {
			found[node.Name] = node
		}
	}
	return found, rows.Err()
}

// EdgeByID returns one edge, or nil when absent.
func (s *Store) EdgeByID(ctx context.Context, id string) (*Edge, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_id, target_id, relation, weight, properties,
		       created_at, modified_at, last_accessed, access_count
		FROM graph_edges WHERE id = ?
	`, id)
	e, err := scanEdgeRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// EdgesTouching returns edges incident to nodeID, filtered by direction
// ("out", "in" or "both") and optionally by relation.
func (s *Store) EdgesTouching(ctx context.Context, nodeID, direction, relation string) ([]Edge, error) {
	var where string
	args := []interface{}{}
	switch direction {
	case "out":
		where = "source_id = ?"
		args = append(args, nodeID)
	case "in":
		where = "target_id = ?"
		args = append(args, nodeID)
	default:
		where = "(source_id = ? OR target_id = ?)"
		args = append(args, nodeID, nodeID)
	}
	if relation != "" {
		where += " AND relation = ?"
		args = append(args, relation)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, target_id, relation, weight, properties,
		       created_at, modified_at, last_accessed, access_count
		FROM graph_edges WHERE `+where+`
		ORDER BY created_at ASC, id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []Edge
	for rows.Next() {
		e, err := scanEdgeRow(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, *e)
	}
	return edges, rows.Err()
}

// EdgesBetween returns every edge connecting the two nodes, either
// direction, oldest first. The nuance engine checks these for conflicts.
func (s *Store) EdgesBetween(ctx context.Context, aID, bID string) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, target_id, relation, weight, properties,
		       created_at, modified_at, last_accessed, access_count
		FROM graph_edges
		WHERE (source_id = ? AND target_id = ?) OR (source_id = ? AND target_id = ?)
		ORDER BY created_at ASC, id ASC
	`, aID, bID, bID, aID)
	if err != nil {
		return nil, fmt.Errorf("list edges between nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []Edge
	for rows.Next() {
		e, err := scanEdgeRow(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, *e)
	}
	return edges, rows.Err()
}

// AllEdges streams every edge, oldest first. The decay loop and the nuance
// scan both work from this set.
func (s *Store) AllEdges(ctx context.Context) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, target_id, relation, weight, properties,
		       created_at, modified_at, last_accessed, access_count
		FROM graph_edges ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list all edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []Edge
	for rows.Next() {
		e, err := scanEdgeRow(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, *e)
	}
	return edges, rows.Err()
}

// CountNodes reports the graph size; retrieval skips the graph channel on
// an empty graph.
func (s *Store) CountNodes(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM graph_nodes").Scan(&count); err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return count, nil
}

// SetEdgeProperty writes one property key on an edge and bumps modified_at.
// The nuance engine uses this to retire superseded edges.
func (s *Store) SetEdgeProperty(ctx context.Context, edgeID, key string, value interface{}) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var props sql.NullString
	err = tx.QueryRowContext(ctx, "SELECT properties FROM graph_edges WHERE id = ?", edgeID).Scan(&props)
	if err == sql.ErrNoRows {
		return types.NewMCPError(types.ErrNotFound, fmt.Sprintf("edge %s not found", edgeID), nil)
	}
	if err != nil {
		return fmt.Errorf("read edge properties: %w", err)
	}

	merged := unmarshalProps(props)
	if merged == nil {
		merged = map[string]interface{}{}
	}
	merged[key] = value

	_, err = tx.ExecContext(ctx,
		"UPDATE graph_edges SET properties = ?, modified_at = ? WHERE id = ?",
		marshalProps(merged), formatTime(time.Now().UTC()), edgeID)
	if err != nil {
		return fmt.Errorf("write edge properties: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit edge property: %w", err)
	}
	return nil
}

// reinforceEdges bumps access_count and last_accessed on traversed edges.
func (s *Store) reinforceEdges(ctx context.Context, edgeIDs []string, now time.Time) error {
	if len(edgeIDs) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(edgeIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, 0, len(edgeIDs)+1)
	args = append(args, formatTime(now))
	for _, id := range edgeIDs {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx,
		"UPDATE graph_edges SET access_count = access_count + 1, last_accessed = ? WHERE id IN ("+placeholders+")",
		args...)
	if err != nil {
		return fmt.Errorf("reinforce edges: %w", err)
	}
	return nil
}

func scanNode(row *sql.Row) (*Node, error) {
	var n Node
	var props sql.NullString
	var vectorID sql.NullInt64
	var createdAt string

	err := row.Scan(&n.ID, &n.Label, &n.Name, &props, &vectorID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan node: %w", err)
	}

	n.Properties = unmarshalProps(props)
	if vectorID.Valid {
		v := vectorID.Int64
		n.VectorID = &v
	}
	n.CreatedAt = parseTime(createdAt)
	return &n, nil
}

func scanNodeRows(rows *sql.Rows) (*Node, error) {
	var n Node
	var props sql.NullString
	var vectorID sql.NullInt64
	var createdAt string

	if err := rows.Scan(&n.ID, &n.Label, &n.Name, &props, &vectorID, &createdAt); err != nil {
		return nil, fmt.Errorf("scan node: %w", err)
	}

	n.Properties = unmarshalProps(props)
	if vectorID.Valid {
		v := vectorID.Int64
		n.VectorID = &v
	}
	n.CreatedAt = parseTime(createdAt)
	return &n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEdgeRow(row rowScanner) (*Edge, error) {
	var e Edge
	var props sql.NullString
	var createdAt, modifiedAt, lastAccessed string

	err := row.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Relation, &e.Weight, &props,
		&createdAt, &modifiedAt, &lastAccessed, &e.AccessCount)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan edge: %w", err)
	}

	e.Properties = unmarshalProps(props)
	e.CreatedAt = parseTime(createdAt)
	e.ModifiedAt = parseTime(modifiedAt)
	e.LastAccessed = parseTime(lastAccessed)
	return &e, nil
}

func marshalProps(props map[string]interface{}) interface{} {
	if len(props) == 0 {
		return nil
	}
	b, err := json.Marshal(props)
	if err != nil {
		return nil
	}
	return string(b)
}

func unmarshalProps(props sql.NullString) map[string]interface{} {
	if !props.Valid || props.String == "" {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(props.String), &m); err != nil {
		return nil
	}
	return m
}

func mergeProps(base, overlay map[string]interface{}) map[string]interface{} {
	if len(overlay) == 0 {
		return base
	}
	merged := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
