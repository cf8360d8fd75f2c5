package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// DB wraps a database/sql connection pool for PostgreSQL.
type DB struct {
	Pool *sql.DB
}

// New creates a new database connection.
// The caller must import a PostgreSQL driver (e.g., _ "github.com/lib/pq").
func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(5)

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.Pool.Close()
}

// WithinTx runs fn inside a transaction with a guaranteed
// begin → (commit | rollback) boundary on all exit paths.
func (d *DB) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-key violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Migrate runs the database schema migrations.
func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.Pool.ExecContext(ctx, migrationSQL)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

const migrationSQL = `
CREATE TABLE IF NOT EXISTS workflow_definitions (
    id          TEXT PRIMARY KEY,
    name        TEXT UNIQUE NOT NULL,
    definition  TEXT NOT NULL DEFAULT '',
    input_spec  JSONB NOT NULL DEFAULT '[]',
    scope       TEXT NOT NULL DEFAULT 'private',
    project_id  TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS delay_tolerant_workloads (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    workflow_id     TEXT REFERENCES workflow_definitions(id),
    workflow_name   TEXT NOT NULL,
    workflow_input  JSONB NOT NULL DEFAULT '{}',
    workflow_params JSONB NOT NULL DEFAULT '{}',
    deadline        TIMESTAMPTZ NOT NULL,
    job_duration    INTEGER NOT NULL DEFAULT 0,
    scope           TEXT NOT NULL DEFAULT 'private',
    executed        BOOLEAN NOT NULL DEFAULT FALSE,
    scheduled       BOOLEAN NOT NULL DEFAULT FALSE,
    trust_id        TEXT NOT NULL DEFAULT '',
    project_id      TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (name, project_id)
);

CREATE TABLE IF NOT EXISTS cron_triggers (
    id                   TEXT PRIMARY KEY,
    name                 TEXT NOT NULL,
    pattern              TEXT NOT NULL DEFAULT '',
    next_execution_time  TIMESTAMPTZ NOT NULL,
    remaining_executions INTEGER,
    workflow_id          TEXT,
    workflow_name        TEXT NOT NULL,
    workflow_input       JSONB NOT NULL DEFAULT '{}',
    workflow_params      JSONB NOT NULL DEFAULT '{}',
    trust_id             TEXT NOT NULL DEFAULT '',
    project_id           TEXT NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (name, project_id)
);

CREATE INDEX IF NOT EXISTS idx_dtw_executed ON delay_tolerant_workloads(executed);
CREATE INDEX IF NOT EXISTS idx_cron_triggers_next ON cron_triggers(next_execution_time);
`
