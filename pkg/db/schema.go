package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// Timestamps are stored as unix milliseconds so both drivers order them the
// same way.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS web_users (
		id BIGSERIAL PRIMARY KEY,
		login TEXT NOT NULL UNIQUE,
		email TEXT,
		password_hash TEXT NOT NULL,
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		owner_id BIGINT NOT NULL REFERENCES web_users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		privacy_mode BOOLEAN NOT NULL DEFAULT FALSE,
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_owner_updated ON conversations (owner_id, updated_ts DESC)`,
	`CREATE TABLE IF NOT EXISTS conversation_messages (
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		id TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content TEXT NOT NULL,
		created_ts BIGINT NOT NULL,
		PRIMARY KEY (conversation_id, seq),
		UNIQUE (conversation_id, id)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS web_users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		login TEXT NOT NULL UNIQUE,
		email TEXT,
		password_hash TEXT NOT NULL,
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		owner_id INTEGER NOT NULL REFERENCES web_users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		privacy_mode BOOLEAN NOT NULL DEFAULT 0,
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_owner_updated ON conversations (owner_id, updated_ts DESC)`,
	`CREATE TABLE IF NOT EXISTS conversation_messages (
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		id TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content TEXT NOT NULL,
		created_ts BIGINT NOT NULL,
		PRIMARY KEY (conversation_id, seq),
		UNIQUE (conversation_id, id)
	)`,
}

// Migrate creates the tables used by the service. It is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	var stmts []string
	switch db.DriverName() {
	case DriverPostgres:
		stmts = postgresSchema
	case DriverSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("no schema for driver %q", db.DriverName())
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	logrus.Infof("database schema is up to date (%s)", db.DriverName())
	return nil
}
