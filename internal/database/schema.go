package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied in order by Migrate. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS hardware (
		id         TEXT PRIMARY KEY,
		model      TEXT NOT NULL,
		revision   TEXT NOT NULL,
		UNIQUE (model, revision)
	)`,
	`CREATE TABLE IF NOT EXISTS firmware (
		id          TEXT PRIMARY KEY,
		version     TEXT NOT NULL,
		hash        TEXT NOT NULL,
		size        BIGINT NOT NULL,
		uri         TEXT NOT NULL UNIQUE,
		filename    TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS firmware_compatibility (
		firmware_id TEXT NOT NULL REFERENCES firmware(id) ON DELETE CASCADE,
		hardware_id TEXT NOT NULL REFERENCES hardware(id),
		PRIMARY KEY (firmware_id, hardware_id)
	)`,
	`CREATE TABLE IF NOT EXISTS devices (
		id                TEXT PRIMARY KEY,
		hardware_id       TEXT REFERENCES hardware(id),
		feed              TEXT NOT NULL,
		flavor            TEXT NOT NULL,
		pinned            BOOLEAN NOT NULL DEFAULT FALSE,
		firmware_target   TEXT NOT NULL DEFAULT '',
		installed_version TEXT NOT NULL DEFAULT '',
		state             TEXT NOT NULL,
		last_firmware_id  TEXT NOT NULL DEFAULT '',
		last_log          TEXT NOT NULL DEFAULT '',
		last_seen         TIMESTAMPTZ,
		last_state_update TIMESTAMPTZ,
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rollouts (
		id            TEXT PRIMARY KEY,
		seq           BIGSERIAL NOT NULL,
		name          TEXT NOT NULL,
		feed          TEXT NOT NULL,
		flavor        TEXT NOT NULL,
		firmware_id   TEXT NOT NULL REFERENCES firmware(id),
		paused        BOOLEAN NOT NULL DEFAULT FALSE,
		success_count BIGINT NOT NULL DEFAULT 0,
		failure_count BIGINT NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS rollouts_feed_flavor_idx ON rollouts (feed, flavor) WHERE NOT paused`,
}

// Migrate applies the schema to the database.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
