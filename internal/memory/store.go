// Package memory implements Laminark's persistent data store.
//
// It uses SQLite with FTS5 full-text search and a brute-force cosine
// vector index to hold observations, tool-usage events, the tool
// registry, the notification bus, topic-shift stashes, and every other
// entity described in the data model. Adapted from Hoofy's memory store
// (github.com/HendryAvila/sdd-hoffy) with the schema generalized from a
// single-project SDD assistant to a cross-project passive memory layer.
package memory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Config holds store configuration.
type Config struct {
	DataDir             string
	MaxContentLength    int
	MaxContextResults   int
	MaxSearchResults    int
	ResearchBufferTTL   time.Duration
	ResearchPurgeAfter  time.Duration
	VectorDupeThreshold float64
	TextDupeThreshold   float64
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:             filepath.Join(home, ".laminark"),
		MaxContentLength:    4000,
		MaxContextResults:   20,
		MaxSearchResults:    20,
		ResearchBufferTTL:   5 * time.Minute,
		ResearchPurgeAfter:  30 * time.Minute,
		VectorDupeThreshold: 0.08,
		TextDupeThreshold:   0.85,
	}
}

// Store is the persistent data layer backed by SQLite + FTS5.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New creates a new Store with the given configuration. It creates the
// data directory if needed, opens SQLite in WAL mode, and runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("memory: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "laminark.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("memory: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("memory: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Config returns the configuration this Store was opened with.
func (s *Store) Config() Config {
	return s.cfg
}

// DB exposes the underlying connection for callers that need a single
// transaction spanning several of this package's helpers (e.g. the hook
// dispatcher wrapping the whole PostToolUse write path).
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id           TEXT PRIMARY KEY,
			project_hash TEXT NOT NULL,
			started_at   TEXT NOT NULL DEFAULT (datetime('now')),
			ended_at     TEXT,
			summary      TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_hash, started_at DESC);

		CREATE TABLE IF NOT EXISTS observations (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			project_hash TEXT    NOT NULL,
			session_id   TEXT,
			content      TEXT    NOT NULL,
			title        TEXT,
			kind         TEXT    NOT NULL DEFAULT 'finding',
			source       TEXT    NOT NULL,
			embedding    BLOB,
			created_at   TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at   TEXT    NOT NULL DEFAULT (datetime('now')),
			deleted_at   TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		);
		CREATE INDEX IF NOT EXISTS idx_obs_project    ON observations(project_hash, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_obs_session    ON observations(session_id, id);
		CREATE INDEX IF NOT EXISTS idx_obs_deleted    ON observations(deleted_at);

		CREATE VIRTUAL TABLE IF NOT EXISTS observations_fts USING fts5(
			title,
			content,
			source,
			kind,
			content='observations',
			content_rowid='id'
		);

		CREATE TABLE IF NOT EXISTS tool_usage_events (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			tool_name    TEXT    NOT NULL,
			project_hash TEXT,
			session_id   TEXT    NOT NULL,
			success      INTEGER NOT NULL,
			created_at   TEXT    NOT NULL DEFAULT (datetime('now'))
		);
		CREATE INDEX IF NOT EXISTS idx_usage_session ON tool_usage_events(session_id, id);
		CREATE INDEX IF NOT EXISTS idx_usage_tool    ON tool_usage_events(tool_name, project_hash, id DESC);

		CREATE TABLE IF NOT EXISTS tool_registry (
			tool_name      TEXT NOT NULL,
			project_hash   TEXT NOT NULL DEFAULT '',
			type           TEXT NOT NULL DEFAULT 'unknown',
			scope          TEXT NOT NULL DEFAULT 'global',
			source         TEXT NOT NULL DEFAULT '',
			description    TEXT,
			server_name    TEXT,
			trigger_hints  TEXT,
			usage_count    INTEGER NOT NULL DEFAULT 0,
			last_used_at   TEXT,
			discovered_at  TEXT NOT NULL DEFAULT (datetime('now')),
			status         TEXT NOT NULL DEFAULT 'active',
			PRIMARY KEY (tool_name, project_hash)
		);
		CREATE INDEX IF NOT EXISTS idx_registry_scope ON tool_registry(scope, project_hash);

		CREATE TABLE IF NOT EXISTS research_buffer (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			tool_name  TEXT NOT NULL,
			target     TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
		CREATE INDEX IF NOT EXISTS idx_research_session ON research_buffer(session_id, created_at);

		CREATE TABLE IF NOT EXISTS routing_patterns (
			project_hash   TEXT NOT NULL,
			session_id     TEXT NOT NULL,
			target_tool    TEXT NOT NULL,
			preceding_json TEXT NOT NULL,
			frequency      INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (project_hash, session_id, target_tool, preceding_json)
		);

		CREATE TABLE IF NOT EXISTS routing_state (
			project_hash             TEXT NOT NULL,
			session_id               TEXT NOT NULL,
			suggestions_made         INTEGER NOT NULL DEFAULT 0,
			last_suggestion_at       TEXT,
			tool_calls_since_suggest INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (project_hash, session_id)
		);

		CREATE TABLE IF NOT EXISTS context_stashes (
			id           TEXT PRIMARY KEY,
			project_hash TEXT NOT NULL,
			session_id   TEXT NOT NULL,
			topic_label  TEXT NOT NULL,
			summary      TEXT NOT NULL,
			status       TEXT NOT NULL DEFAULT 'stashed',
			created_at   TEXT NOT NULL DEFAULT (datetime('now'))
		);
		CREATE INDEX IF NOT EXISTS idx_stash_project ON context_stashes(project_hash, created_at DESC);

		CREATE TABLE IF NOT EXISTS stash_observations (
			stash_id       TEXT NOT NULL,
			seq            INTEGER NOT NULL,
			observation_id INTEGER NOT NULL,
			content        TEXT NOT NULL,
			source         TEXT NOT NULL,
			created_at     TEXT NOT NULL,
			embedding      BLOB,
			PRIMARY KEY (stash_id, seq)
		);

		CREATE TABLE IF NOT EXISTS shift_decisions (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			project_hash   TEXT NOT NULL,
			session_id     TEXT NOT NULL,
			observation_id INTEGER NOT NULL,
			distance       REAL NOT NULL,
			threshold      REAL NOT NULL,
			ewma_mean      REAL NOT NULL,
			ewma_variance  REAL NOT NULL,
			shifted        INTEGER NOT NULL,
			confidence     REAL NOT NULL,
			stash_id       TEXT,
			created_at     TEXT NOT NULL DEFAULT (datetime('now'))
		);
		CREATE INDEX IF NOT EXISTS idx_shift_session ON shift_decisions(session_id, id);

		CREATE TABLE IF NOT EXISTS topic_state (
			project_hash       TEXT NOT NULL,
			session_id         TEXT NOT NULL,
			previous_embedding BLOB,
			ewma_mean          REAL NOT NULL DEFAULT 0,
			ewma_variance      REAL NOT NULL DEFAULT 0,
			initialized        INTEGER NOT NULL DEFAULT 0,
			manual_threshold   REAL,
			PRIMARY KEY (project_hash, session_id)
		);

		CREATE TABLE IF NOT EXISTS pending_notifications (
			id           TEXT PRIMARY KEY,
			project_hash TEXT NOT NULL,
			message      TEXT NOT NULL,
			created_at   TEXT NOT NULL DEFAULT (datetime('now'))
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_project ON pending_notifications(project_hash, created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	return s.createObservationTriggers()
}

// createObservationTriggers installs the FTS sync triggers idempotently.
// Bulk resets (ResetObservationIndex) drop these first and recreate them
// after the bulk mutation so they don't fire per-row.
func (s *Store) createObservationTriggers() error {
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='trigger' AND name='obs_fts_insert'",
	).Scan(&name)
	if err == nil {
		return nil // already installed
	}
	if err != sql.ErrNoRows {
		return err
	}

	triggers := `
		CREATE TRIGGER obs_fts_insert AFTER INSERT ON observations BEGIN
			INSERT INTO observations_fts(rowid, title, content, source, kind)
			VALUES (new.id, new.title, new.content, new.source, new.kind);
		END;

		CREATE TRIGGER obs_fts_delete AFTER DELETE ON observations BEGIN
			INSERT INTO observations_fts(observations_fts, rowid, title, content, source, kind)
			VALUES ('delete', old.id, old.title, old.content, old.source, old.kind);
		END;

		CREATE TRIGGER obs_fts_update AFTER UPDATE ON observations BEGIN
			INSERT INTO observations_fts(observations_fts, rowid, title, content, source, kind)
			VALUES ('delete', old.id, old.title, old.content, old.source, old.kind);
			INSERT INTO observations_fts(rowid, title, content, source, kind)
			VALUES (new.id, new.title, new.content, new.source, new.kind);
		END;
	`
	_, err = s.db.Exec(triggers)
	return err
}

// ResetObservationIndex rebuilds the FTS index for the whole observations
// table. Per §5, trigger-firing is disabled for the duration of the
// rebuild and the whole operation runs in one transaction.
func (s *Store) ResetObservationIndex() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("reset index: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DROP TRIGGER IF EXISTS obs_fts_insert`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DROP TRIGGER IF EXISTS obs_fts_delete`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DROP TRIGGER IF EXISTS obs_fts_update`); err != nil {
		return err
	}

	if _, err := tx.Exec(`INSERT INTO observations_fts(observations_fts) VALUES ('delete-all')`); err != nil {
		return fmt.Errorf("reset index: clear fts: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO observations_fts(rowid, title, content, source, kind)
		SELECT id, title, content, source, kind FROM observations WHERE deleted_at IS NULL
	`); err != nil {
		return fmt.Errorf("reset index: rebuild fts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reset index: commit: %w", err)
	}
	return s.createObservationTriggers()
}

// Now returns the current time formatted for SQLite storage.
func Now() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}
