package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied in order on startup. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS reports (
		id          TEXT PRIMARY KEY,
		reporter    TEXT NOT NULL,
		type        TEXT NOT NULL DEFAULT '',
		location    TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		photo       TEXT,
		status      TEXT NOT NULL DEFAULT 'pending',
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ,
		updated_by  TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS reports_created_at_idx ON reports (created_at, id)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		message       TEXT NOT NULL DEFAULT '',
		app           TEXT NOT NULL DEFAULT '',
		user_id       TEXT NOT NULL,
		station       TEXT NOT NULL DEFAULT '',
		incident_type TEXT NOT NULL DEFAULT '',
		report_id     TEXT NOT NULL DEFAULT '',
		read          BOOLEAN NOT NULL DEFAULT FALSE,
		read_at       TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications (user_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS accounts (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS feature_flags (
		key        TEXT PRIMARY KEY,
		enabled    BOOLEAN NOT NULL DEFAULT false,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_by TEXT NOT NULL DEFAULT ''
	)`,
}

// Migrate creates the tables used by the postgres backends.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for i, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema statement %d: %w", i, err)
			}
		}
		return nil
	})
}
