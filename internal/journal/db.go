package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Open creates (if needed) and opens the journal database at path.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("journal: database path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite prefers single writer.
	db.SetConnMaxLifetime(time.Hour)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func applySchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS trade_events (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		trade_id    TEXT NOT NULL,
		dedup_key   TEXT NOT NULL,
		topic       TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		side        TEXT NOT NULL,
		status      TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		reason      TEXT NOT NULL DEFAULT '',
		at          TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trade_events_trade_id ON trade_events(trade_id);

	CREATE TABLE IF NOT EXISTS trades (
		id          TEXT PRIMARY KEY,
		dedup_key   TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		side        TEXT NOT NULL,
		status      TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error  TEXT NOT NULL DEFAULT '',
		updated_at  TIMESTAMP NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply journal schema: %w", err)
	}
	return nil
}
