package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied in order on every start, each statement is idempotent
var schema = []string{
	`CREATE TABLE IF NOT EXISTS scripts (
		id                UUID PRIMARY KEY,
		text              TEXT NOT NULL,
		duration_category TEXT NOT NULL,
		language_id       TEXT NOT NULL,
		active            BOOLEAN NOT NULL DEFAULT TRUE,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS scripts_tier_idx ON scripts (duration_category) WHERE active`,
	`CREATE TABLE IF NOT EXISTS recording_sessions (
		id             UUID PRIMARY KEY,
		script_id      TEXT NOT NULL,
		contributor_id UUID NOT NULL,
		expires_at     TIMESTAMPTZ NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS recordings (
		id               UUID PRIMARY KEY,
		script_id        TEXT NOT NULL,
		session_id       UUID NOT NULL,
		contributor_id   UUID NOT NULL,
		object_key       TEXT NOT NULL,
		duration_seconds INTEGER NOT NULL,
		format           TEXT NOT NULL,
		file_size_bytes  BIGINT NOT NULL,
		sample_rate      INTEGER NOT NULL DEFAULT 0,
		channels         INTEGER NOT NULL DEFAULT 0,
		bit_depth        INTEGER NOT NULL DEFAULT 0,
		idempotency_key  TEXT,
		checksum         TEXT,
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS recordings_idempotency_key_idx ON recordings (idempotency_key)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS recordings_script_checksum_idx ON recordings (script_id, checksum)`,
}

// Migrate applies the schema inside one transaction
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for i, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("schema statement %d: %w", i, err)
			}
		}
		return nil
	})
}
