package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026030201)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS applications (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	job_title TEXT NOT NULL,
	company_name TEXT NOT NULL,
	status TEXT NOT NULL,
	job_type TEXT,
	location_type TEXT,
	location TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_applications_user ON applications(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_applications_user_status ON applications(user_id, status);

CREATE TABLE IF NOT EXISTS status_history (
	id TEXT PRIMARY KEY,
	application_id TEXT NOT NULL REFERENCES applications(id),
	from_status TEXT,
	to_status TEXT NOT NULL,
	trigger_type TEXT NOT NULL,
	email_record_id TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_status_history_application ON status_history(application_id, created_at);

CREATE TABLE IF NOT EXISTS email_records (
	id TEXT PRIMARY KEY,
	message_id TEXT NOT NULL UNIQUE,
	user_id TEXT NOT NULL,
	application_id TEXT,
	sender TEXT NOT NULL,
	sender_name TEXT,
	subject TEXT NOT NULL,
	body_preview TEXT NOT NULL,
	received_at TIMESTAMPTZ NOT NULL,
	classification JSONB,
	manual_override BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_email_records_user ON email_records(user_id, received_at DESC);

CREATE TABLE IF NOT EXISTS review_queue (
	id TEXT PRIMARY KEY,
	email_record_id TEXT NOT NULL UNIQUE REFERENCES email_records(id),
	user_id TEXT NOT NULL,
	suggested_apps JSONB NOT NULL DEFAULT '[]'::jsonb,
	linked_application_id TEXT,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_queue_pending ON review_queue(user_id, status, created_at);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	message_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	email JSONB NOT NULL,
	step TEXT NOT NULL,
	status TEXT NOT NULL,
	match_result JSONB,
	classification JSONB,
	email_record_id TEXT,
	attempts INT NOT NULL DEFAULT 0,
	last_error TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status, updated_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
