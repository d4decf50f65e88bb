// Package store is the Postgres data-access layer for render jobs, batches,
// the dealer roster and template field maps.
//
// Two rules keep the batch counters honest under concurrent writers: job state
// changes are conditional updates that only apply when the row is still in the
// expected state, and counter mutation always uses relative SET x = x + n
// updates inside the same transaction as the job update. Batch status is then
// recomputed from the returned counters and persisted before commit.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for health checks.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

const schema = `
CREATE TABLE IF NOT EXISTS dealers (
	dealer_no      TEXT PRIMARY KEY,
	display_name   TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	logo_url       TEXT NOT NULL DEFAULT '',
	program_status TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS templates (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL UNIQUE,
	field_map_json TEXT NOT NULL DEFAULT '[]',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at     TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS render_batches (
	id              TEXT PRIMARY KEY,
	post_number     INTEGER NOT NULL,
	template_id     TEXT NOT NULL,
	total_jobs      INTEGER NOT NULL,
	pending_jobs    INTEGER NOT NULL,
	processing_jobs INTEGER NOT NULL DEFAULT 0,
	completed_jobs  INTEGER NOT NULL DEFAULT 0,
	failed_jobs     INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at      TIMESTAMPTZ,
	completed_at    TIMESTAMPTZ,
	CONSTRAINT batch_counters_sum
		CHECK (pending_jobs + processing_jobs + completed_jobs + failed_jobs = total_jobs)
);

CREATE TABLE IF NOT EXISTS render_jobs (
	id                    TEXT PRIMARY KEY,
	batch_id              TEXT NOT NULL REFERENCES render_batches(id),
	business_id           TEXT NOT NULL,
	business_name         TEXT NOT NULL,
	post_number           INTEGER NOT NULL,
	template_id           TEXT NOT NULL,
	status                TEXT NOT NULL DEFAULT 'pending',
	render_id             TEXT,
	render_url            TEXT,
	drive_file_id         TEXT,
	drive_url             TEXT,
	drive_path            TEXT,
	retry_count           INTEGER NOT NULL DEFAULT 0,
	last_error            TEXT,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	processing_started_at TIMESTAMPTZ,
	completed_at          TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_render_jobs_status_created ON render_jobs (status, created_at);
CREATE INDEX IF NOT EXISTS idx_render_jobs_batch ON render_jobs (batch_id);
CREATE INDEX IF NOT EXISTS idx_render_jobs_render_id ON render_jobs (render_id);
`

// EnsureSchema applies the schema. Statements are idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
