package memory

import "fmt"

// migrations is the ordered schema history. Each entry runs at most once;
// schema_migrations records the applied versions.
var migrations = []struct {
	version int
	ddl     string
}{
	{
		version: 1,
		ddl: `
	-- L0: append-only raw dialogue log
	CREATE TABLE IF NOT EXISTS l0_raw (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		speaker TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		metadata TEXT                       -- JSON object
	);
	CREATE INDEX IF NOT EXISTS idx_l0_raw_session ON l0_raw(session_id, timestamp);

	-- L2: compressed semantic insights with embeddings
	CREATE TABLE IF NOT EXISTS l2_insights (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,            -- little-endian float32
		source_ids TEXT NOT NULL,           -- JSON array of l0_raw ids
		metadata TEXT,                      -- JSON object
		created_at DATETIME NOT NULL
	);

	-- Bounded working set
	CREATE TABLE IF NOT EXISTS working_memory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		importance REAL NOT NULL CHECK(importance >= 0 AND importance <= 1),
		last_accessed DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_working_last_accessed ON working_memory(last_accessed);

	-- Archive of evicted or manually retired working items
	CREATE TABLE IF NOT EXISTS stale_memory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		original_content TEXT NOT NULL,
		importance REAL NOT NULL,
		archived_at DATETIME NOT NULL,
		reason TEXT NOT NULL CHECK(reason IN ('LRU_EVICTION','MANUAL_ARCHIVE'))
	);
	CREATE INDEX IF NOT EXISTS idx_stale_archived_at ON stale_memory(archived_at);
	CREATE INDEX IF NOT EXISTS idx_stale_importance ON stale_memory(importance);

	-- Reflection episodes with reinforcement rewards
	CREATE TABLE IF NOT EXISTS episode_memory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		reward REAL NOT NULL CHECK(reward >= -1 AND reward <= 1),
		reflection TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at DATETIME NOT NULL
	);

	-- Dual-judge evaluation records
	CREATE TABLE IF NOT EXISTS ground_truth (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id TEXT NOT NULL,
		query TEXT NOT NULL,
		expected_docs TEXT,                 -- JSON array
		judge1_score TEXT,                  -- JSON array of floats
		judge2_score TEXT,                  -- JSON array of floats
		judge1_model TEXT,
		judge2_model TEXT,
		kappa REAL,                         -- NULL when undefined
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ground_truth_query ON ground_truth(query_id);

	-- API cost ledger
	CREATE TABLE IF NOT EXISTS api_cost_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		provider TEXT NOT NULL,
		operation TEXT NOT NULL,
		model TEXT,
		tokens INTEGER,
		cost_usd REAL,
		query_id TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_cost_provider ON api_cost_log(provider, operation);

	-- Knowledge graph
	CREATE TABLE IF NOT EXISTS graph_nodes (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		name TEXT NOT NULL,
		properties TEXT,                    -- JSON object
		vector_id INTEGER REFERENCES l2_insights(id),
		created_at DATETIME NOT NULL,
		UNIQUE(label, name)
	);
	CREATE INDEX IF NOT EXISTS idx_graph_nodes_name ON graph_nodes(name);

	CREATE TABLE IF NOT EXISTS graph_edges (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL REFERENCES graph_nodes(id) ON DELETE CASCADE,
		target_id TEXT NOT NULL REFERENCES graph_nodes(id) ON DELETE CASCADE,
		relation TEXT NOT NULL,
		weight REAL NOT NULL DEFAULT 1.0 CHECK(weight >= 0),
		properties TEXT,                    -- JSON object
		created_at DATETIME NOT NULL,
		modified_at DATETIME NOT NULL,
		last_accessed DATETIME NOT NULL,
		access_count INTEGER NOT NULL DEFAULT 0,
		UNIQUE(source_id, target_id, relation)
	);
	CREATE INDEX IF NOT EXISTS idx_graph_edges_source ON graph_edges(source_id);
	CREATE INDEX IF NOT EXISTS idx_graph_edges_target ON graph_edges(target_id);
	CREATE INDEX IF NOT EXISTS idx_graph_edges_relation ON graph_edges(relation);

	-- FTS5 companion for lexical insight search
	CREATE VIRTUAL TABLE IF NOT EXISTS l2_fts USING fts5(
		content,
		content='l2_insights',
		content_rowid='id'
	);
	`,
	},
}

// ftsTriggers keep l2_fts synchronized with l2_insights. SQLite has no
// CREATE TRIGGER IF NOT EXISTS for all versions we target, so existence is
// checked against sqlite_master first.
var ftsTriggers = []struct {
	name string
	sql  string
}{
	{
		name: "l2_fts_ai",
		sql: `CREATE TRIGGER l2_fts_ai AFTER INSERT ON l2_insights BEGIN
			INSERT INTO l2_fts(rowid, content) VALUES (NEW.id, NEW.content);
		END`,
	},
	{
		name: "l2_fts_ad",
		sql: `CREATE TRIGGER l2_fts_ad AFTER DELETE ON l2_insights BEGIN
			INSERT INTO l2_fts(l2_fts, rowid, content) VALUES('delete', OLD.id, OLD.content);
		END`,
	},
	{
		name: "l2_fts_au",
		sql: `CREATE TRIGGER l2_fts_au AFTER UPDATE ON l2_insights BEGIN
			INSERT INTO l2_fts(l2_fts, rowid, content) VALUES('delete', OLD.id, OLD.content);
			INSERT INTO l2_fts(rowid, content) VALUES (NEW.id, NEW.content);
		END`,
	},
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}
		if _, err := s.db.Exec(m.ddl); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			m.version, formatTime(nowUTC())); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}

	for _, t := range ftsTriggers {
		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='trigger' AND name=?", t.name).Scan(&count); err != nil {
			return fmt.Errorf("check trigger %s: %w", t.name, err)
		}
		if count == 0 {
			if _, err := s.db.Exec(t.sql); err != nil {
				return fmt.Errorf("create trigger %s: %w", t.name, err)
			}
		}
	}

	return nil
}
