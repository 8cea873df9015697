package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/psantana5/shopbench/pkg/retry"
)

// PostgreSQLStore implements Store using PostgreSQL
type PostgreSQLStore struct {
	db *sql.DB
}

// NewPostgreSQLStore connects to PostgreSQL, retrying transient failures
func NewPostgreSQLStore(ctx context.Context, config Config) (*PostgreSQLStore, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("PostgreSQL DSN is required")
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(5)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	policy := retry.DefaultConfig()
	policy.Retryable = retry.IsRetryable
	if err := retry.Do(ctx, policy, func() error { return db.PingContext(ctx) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgreSQLStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *PostgreSQLStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		experiment_id TEXT NOT NULL,
		instance TEXT NOT NULL,
		variant TEXT NOT NULL,
		status TEXT NOT NULL,
		objective DOUBLE PRECISION,
		time_limit DOUBLE PRECISION NOT NULL,
		wall_seconds DOUBLE PRECISION NOT NULL,
		result_path TEXT NOT NULL,
		host TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_experiment ON runs(experiment_id);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun upserts run
func (s *PostgreSQLStore) RecordRun(run *Run) error {
	prepare(run)
	_, err := s.db.Exec(`INSERT INTO runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			objective = EXCLUDED.objective,
			wall_seconds = EXCLUDED.wall_seconds,
			result_path = EXCLUDED.result_path`, runArgs(run)...)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns the run with the given ID
func (s *PostgreSQLStore) GetRun(id string) (*Run, error) {
	return scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = $1`, id))
}

// ListRuns returns runs newest first
func (s *PostgreSQLStore) ListRuns(limit int) ([]*Run, error) {
	// listRuns passes -1 for "no limit", which NULLIF maps to LIMIT NULL
	return listRuns(s.db, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT NULLIF($1, -1)`, limit)
}

// HealthCheck pings the database
func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}

// Close closes the database
func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}
