package storage

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
	log *zap.Logger
}

// New creates a new database connection and initializes the schema
func New(dbPath string, log *zap.Logger) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	d := &DB{DB: db, log: log.Named("db")}

	// Initialize schema
	if err := d.initSchema(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	d.log.Info("Database initialized", zap.String("path", dbPath))
	return d, nil
}

func (db *DB) initSchema() error {
	schema := `
	-- Admin accounts
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		totp_secret TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	-- Failed admin login attempts (anti-brute force)
	CREATE TABLE IF NOT EXISTS failed_logins (
		key TEXT PRIMARY KEY, -- ip:username
		count INTEGER NOT NULL DEFAULT 0,
		last_attempt INTEGER NOT NULL
	);

	-- Archived URLs found by the last scan
	CREATE TABLE IF NOT EXISTS archived_urls (
		url_id TEXT PRIMARY KEY,
		original_url TEXT NOT NULL,
		folder_name TEXT NOT NULL
	);

	-- Snapshots of each archived URL
	CREATE TABLE IF NOT EXISTS snapshots (
		snapshot_id TEXT NOT NULL,
		url_id TEXT NOT NULL,
		captured_at INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		folder_path TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		artifacts TEXT NOT NULL DEFAULT '[]',
		FOREIGN KEY (url_id) REFERENCES archived_urls(url_id) ON DELETE CASCADE,
		PRIMARY KEY (url_id, snapshot_id)
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_id ON snapshots(snapshot_id);

	-- Scan bookkeeping
	CREATE TABLE IF NOT EXISTS scan_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		url_count INTEGER NOT NULL,
		snapshot_count INTEGER NOT NULL,
		timed_out INTEGER NOT NULL DEFAULT 0
	);
	`

	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
