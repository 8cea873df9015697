package report

import (
	"fmt"
	"time"

	"github.com/psantana5/shopbench/pkg/logging"
)

// Record is the immutable outcome of one experiment run. It is the single
// source for metrics, the unsolved log and the summary line.
type Record struct {
	RunID        string        `json:"run_id"`
	ExperimentID string        `json:"experiment_id"`
	Variant      string        `json:"variant"`
	Status       string        `json:"status"`
	Objective    *float64      `json:"objective"`
	Solutions    int           `json:"solution_count"`
	TimeLimit    float64       `json:"time_limit"`
	WallTime     time.Duration `json:"wall_time"`
	ResultPath   string        `json:"result_path"`
	Realizations int           `json:"realizations"`
}

// Solved reports whether the run produced a schedule
func (r *Record) Solved() bool {
	return r.Objective != nil
}

// Line renders the one-line human summary
func (r *Record) Line() string {
	obj := "none"
	if r.Objective != nil {
		obj = fmt.Sprintf("%g", *r.Objective)
	}
	realizations := ""
	if r.Realizations > 0 {
		realizations = fmt.Sprintf("realizations=%d | ", r.Realizations)
	}
	return fmt.Sprintf("RUN %s | variant=%s | %sstatus=%s | obj=%s | solutions=%d | runtime=%.2fs/%gs | out=%s",
		r.ExperimentID,
		r.Variant,
		realizations,
		r.Status,
		obj,
		r.Solutions,
		r.WallTime.Seconds(),
		r.TimeLimit,
		r.ResultPath,
	)
}

// LogSummary emits the summary line at INFO
func (r *Record) LogSummary(logger *logging.Logger) {
	logger.Info(r.Line())
}
