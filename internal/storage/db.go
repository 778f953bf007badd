package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite doesn't handle concurrent writes well
	db.SetMaxIdleConns(1)

	return &DB{db}, nil
}

// Migrate runs database migrations
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationRuns,
		migrationResults,
		migrationIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

const migrationRuns = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	prompt TEXT NOT NULL,

	-- Machine snapshot
	os TEXT NOT NULL,
	os_version TEXT,
	cpu TEXT,
	physical_cores INTEGER NOT NULL DEFAULT 0,
	logical_cores INTEGER NOT NULL DEFAULT 0,
	memory_gb REAL NOT NULL DEFAULT 0,
	arch TEXT,
	ollama_version TEXT,

	-- GPU snapshot
	gpu_available INTEGER NOT NULL DEFAULT 0,
	gpu_in_use INTEGER NOT NULL DEFAULT 0,
	gpu_backend TEXT,
	gpu_layers TEXT,

	-- Outcome counts
	model_count INTEGER NOT NULL DEFAULT 0,
	success_count INTEGER NOT NULL DEFAULT 0
);
`

const migrationResults = `
CREATE TABLE IF NOT EXISTS results (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	model TEXT NOT NULL,
	status TEXT NOT NULL,
	first_token_ms REAL NOT NULL DEFAULT 0,
	tokens_per_sec REAL NOT NULL DEFAULT 0,
	total_time_s REAL NOT NULL DEFAULT 0,
	token_count INTEGER NOT NULL DEFAULT 0,
	error TEXT,

	PRIMARY KEY (run_id, position),
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`

const migrationIndexes = `
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_results_model ON results(model);
CREATE INDEX IF NOT EXISTS idx_results_status ON results(status);
`
