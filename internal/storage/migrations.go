package storage

import (
	"context"
	"fmt"
	"time"
)

type migration struct {
	version     int
	description string
	statements  []string
}

// migrations are append-only; a released version is never edited.
var migrations = []migration{
	{
		version:     1,
		description: "initial schema",
		statements: []string{
			`CREATE TABLE quotes (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				text TEXT NOT NULL,
				author TEXT NOT NULL DEFAULT '',
				attribution TEXT NOT NULL DEFAULT '',
				difficulty REAL NOT NULL DEFAULT 0,
				is_active INTEGER NOT NULL DEFAULT 1,
				is_daily INTEGER NOT NULL DEFAULT 0,
				daily_date TEXT,
				server_id INTEGER,
				unique_letters INTEGER NOT NULL DEFAULT 0,
				times_used INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX idx_quotes_text ON quotes(text)`,
			`CREATE UNIQUE INDEX idx_quotes_daily_date ON quotes(daily_date) WHERE daily_date IS NOT NULL`,
			`CREATE TABLE puzzles (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				puzzle_id TEXT NOT NULL,
				user_id TEXT NOT NULL DEFAULT '',
				quote_id INTEGER,
				is_daily INTEGER NOT NULL DEFAULT 0,
				daily_date TEXT,
				has_won INTEGER NOT NULL DEFAULT 0,
				has_lost INTEGER NOT NULL DEFAULT 0,
				finalized INTEGER NOT NULL DEFAULT 0,
				uploaded INTEGER NOT NULL DEFAULT 0,
				start_time INTEGER NOT NULL,
				last_update INTEGER NOT NULL,
				state TEXT NOT NULL
			)`,
			`CREATE INDEX idx_puzzles_puzzle_id ON puzzles(puzzle_id)`,
			`CREATE INDEX idx_puzzles_open ON puzzles(user_id, is_daily, has_won, has_lost, last_update)`,
			`CREATE TABLE user_stats (
				user_id TEXT PRIMARY KEY,
				games_played INTEGER NOT NULL DEFAULT 0,
				games_won INTEGER NOT NULL DEFAULT 0,
				current_streak INTEGER NOT NULL DEFAULT 0,
				best_streak INTEGER NOT NULL DEFAULT 0,
				total_score INTEGER NOT NULL DEFAULT 0,
				average_mistakes REAL NOT NULL DEFAULT 0,
				average_time REAL NOT NULL DEFAULT 0,
				last_played INTEGER NOT NULL DEFAULT 0,
				played_quotes BLOB
			)`,
			`CREATE TABLE sync_tasks (
				puzzle_id TEXT PRIMARY KEY,
				summary TEXT NOT NULL,
				status TEXT NOT NULL,
				attempts INTEGER NOT NULL DEFAULT 0,
				max_attempts INTEGER NOT NULL DEFAULT 0,
				next_attempt_at INTEGER NOT NULL,
				last_error TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
		},
	},
}

// Migrate applies every migration newer than the recorded schema version,
// each in its own transaction.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL,
		description TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		for _, stmt := range m.statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)`,
			m.version, time.Now().Unix(), m.description,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration, 0 for a fresh file.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
