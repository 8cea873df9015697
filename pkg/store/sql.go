package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const runColumns = `id, experiment_id, instance, variant, status, objective, time_limit, wall_seconds, result_path, host, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run       Run
		objective sql.NullFloat64
	)
	err := row.Scan(&run.ID, &run.ExperimentID, &run.Instance, &run.Variant, &run.Status,
		&objective, &run.TimeLimit, &run.WallSeconds, &run.ResultPath, &run.Host, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	if objective.Valid {
		v := objective.Float64
		run.Objective = &v
	}
	run.CreatedAt = run.CreatedAt.UTC()
	return &run, nil
}

func runArgs(run *Run) []interface{} {
	var objective sql.NullFloat64
	if run.Objective != nil {
		objective = sql.NullFloat64{Float64: *run.Objective, Valid: true}
	}
	return []interface{}{run.ID, run.ExperimentID, run.Instance, run.Variant, run.Status,
		objective, run.TimeLimit, run.WallSeconds, run.ResultPath, run.Host, run.CreatedAt.UTC().Truncate(time.Microsecond)}
}

func listRuns(db *sql.DB, query string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
