// Package store implements the persistence collaborators on sqlite via sqlx.
// Each concern gets a narrow interface and a sqlite-backed implementation;
// callers never see database/sql directly.
package store

import (
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'offline',
		away_text TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS buddies (
		owner_id TEXT NOT NULL,
		buddy_id TEXT NOT NULL,
		UNIQUE(owner_id, buddy_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		delivered INTEGER NOT NULL DEFAULT 0,
		delivered_at TIMESTAMP,
		read INTEGER NOT NULL DEFAULT 0,
		auto_response INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_undelivered ON messages(recipient_id, delivered, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_buddies_owner ON buddies(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_buddies_buddy ON buddies(buddy_id)`,
}

// Open opens (creating if needed) the sqlite database at path and bootstraps
// the schema.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}
