package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRunNotFound         = errors.New("run not found")
	ErrUnsupportedDatabase = errors.New("unsupported database type")
)

// Run is one ledger entry: where an experiment's results went and how it ended
type Run struct {
	ID           string    `json:"id"`
	ExperimentID string    `json:"experiment_id"`
	Instance     string    `json:"instance"`
	Variant      string    `json:"variant"`
	Status       string    `json:"status"`
	Objective    *float64  `json:"objective"`
	TimeLimit    float64   `json:"time_limit"`
	WallSeconds  float64   `json:"wall_seconds"`
	ResultPath   string    `json:"result_path"`
	Host         string    `json:"host"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store is the run ledger. SQLite, PostgreSQL and memory implement it.
type Store interface {
	RecordRun(run *Run) error
	GetRun(id string) (*Run, error)
	// ListRuns returns the newest runs first; limit <= 0 returns all
	ListRuns(limit int) ([]*Run, error)

	HealthCheck() error
	Close() error
}

// Config selects and configures a ledger backend
type Config struct {
	Type string // "memory", "sqlite" or "postgres"
	DSN  string // file path for sqlite, connection string for postgres

	// PostgreSQL specific
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewStore creates a store based on configuration
func NewStore(ctx context.Context, config Config) (Store, error) {
	switch config.Type {
	case "postgres", "postgresql":
		return NewPostgreSQLStore(ctx, config)
	case "sqlite":
		path := config.DSN
		if path == "" {
			path = "shopbench.db"
		}
		return NewSQLiteStore(path)
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, ErrUnsupportedDatabase
	}
}
