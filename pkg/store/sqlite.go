package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a SQLite-based ledger
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the ledger at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// WAL and a busy timeout let concurrent batch workers share the file
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		experiment_id TEXT NOT NULL,
		instance TEXT NOT NULL,
		variant TEXT NOT NULL,
		status TEXT NOT NULL,
		objective REAL,
		time_limit REAL NOT NULL,
		wall_seconds REAL NOT NULL,
		result_path TEXT NOT NULL,
		host TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_experiment ON runs(experiment_id);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun inserts run, replacing an entry with the same ID
func (s *SQLiteStore) RecordRun(run *Run) error {
	prepare(run)
	_, err := s.db.Exec(`INSERT OR REPLACE INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, runArgs(run)...)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns the run with the given ID
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	return scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
}

// ListRuns returns runs newest first
func (s *SQLiteStore) ListRuns(limit int) ([]*Run, error) {
	return listRuns(s.db, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

// HealthCheck pings the database
func (s *SQLiteStore) HealthCheck() error {
	return s.db.Ping()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
