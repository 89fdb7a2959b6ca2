// Package store persists pipeline runs and their life tables in PostgreSQL.
//
// Persistence is optional: the pipeline only opens a store when a database
// URL is configured. Life-table rows are written with COPY in the same
// transaction as their run record.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/lifetable/internal/config"
	"github.com/JonMunkholm/lifetable/internal/core"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error)
}

// Store writes runs to a connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS lifetable_runs (
    id                UUID PRIMARY KEY,
    started_at        TIMESTAMPTZ NOT NULL,
    finished_at       TIMESTAMPTZ NOT NULL,
    status            TEXT NOT NULL,
    min_age           INTEGER NOT NULL,
    max_age           INTEGER NOT NULL,
    include_edge_data BOOLEAN NOT NULL,
    output_dir        TEXT NOT NULL,
    row_count         INTEGER NOT NULL,
    issue_count       INTEGER NOT NULL,
    error             TEXT
);

CREATE TABLE IF NOT EXISTS life_table_rows (
    run_id        UUID NOT NULL REFERENCES lifetable_runs(id) ON DELETE CASCADE,
    iso3          TEXT NOT NULL,
    iso3_suffix   TEXT,
    year          INTEGER NOT NULL,
    age           INTEGER NOT NULL,
    lx            DOUBLE PRECISION,
    mx            DOUBLE PRECISION,
    lxmx          DOUBLE PRECISION,
    dx            DOUBLE PRECISION,
    qx            DOUBLE PRECISION,
    sx            DOUBLE PRECISION,
    vx            DOUBLE PRECISION,
    income_status TEXT
);

CREATE INDEX IF NOT EXISTS life_table_rows_key_idx
    ON life_table_rows (run_id, iso3, iso3_suffix, year, age);
`

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// RunRecord is the persisted summary of one run.
type RunRecord struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Settings   core.Settings
	OutputDir  string
	RowCount   int
	IssueCount int
	Error      string
}

// SaveRun stores the run record and, when table is non-nil, its rows.
func (s *Store) SaveRun(ctx context.Context, run RunRecord, table *core.Table) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := saveRun(ctx, tx, run, table); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

func saveRun(ctx context.Context, db DBTX, run RunRecord, table *core.Table) error {
	var errText pgtype.Text
	if run.Error != "" {
		errText = pgtype.Text{String: run.Error, Valid: true}
	}

	_, err := db.Exec(ctx, `
INSERT INTO lifetable_runs
    (id, started_at, finished_at, status, min_age, max_age, include_edge_data, output_dir, row_count, issue_count, error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		pgtype.UUID{Bytes: run.ID, Valid: true},
		run.StartedAt, run.FinishedAt, run.Status,
		run.Settings.Ages.Min, run.Settings.Ages.Max, run.Settings.IncludeEdgeData,
		run.OutputDir, run.RowCount, run.IssueCount, errText,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	if table == nil || len(table.Rows) == 0 {
		return nil
	}
	src := newRowSource(run.ID, table)
	n, err := db.CopyFrom(ctx, pgx.Identifier{"life_table_rows"}, rowColumns, src)
	if err != nil {
		return fmt.Errorf("copy life table rows: %w", err)
	}
	if int(n) != len(table.Rows) {
		return fmt.Errorf("copy life table rows: wrote %d of %d", n, len(table.Rows))
	}
	return nil
}
