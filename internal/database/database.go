// Package database owns the engine's SQLite storage. Block records are
// the only persisted state the engine itself owns; appointments and
// catalog data stay upstream.
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for the scheduling engine.
type DB struct {
	*sql.DB
}

// New opens the database at path and runs migrations.
func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Blackout blocks
		`CREATE TABLE IF NOT EXISTS blocks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			barbershop_id INTEGER NOT NULL,
			resource_id INTEGER,
			title TEXT NOT NULL DEFAULT '',
			full_day BOOLEAN NOT NULL DEFAULT 0,
			start_time TEXT NOT NULL DEFAULT '00:00',
			end_time TEXT NOT NULL DEFAULT '00:00',
			recurrence_type TEXT NOT NULL,
			block_date TEXT,
			days_of_week TEXT,
			range_start TEXT,
			range_end TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_blocks_shop ON blocks(barbershop_id)`,

		// Audit trail of staff block edits
		`CREATE TABLE IF NOT EXISTS block_audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			barbershop_id INTEGER NOT NULL,
			block_id INTEGER NOT NULL,
			action TEXT NOT NULL,
			actor TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			details TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_block_audit_shop ON block_audit(barbershop_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}
