package cp

import (
	"context"
	"fmt"
	"time"
)

// SolverName identifies the built-in engine in experiment identifiers
const SolverName = "cpls"

// Solver is a local-search engine for Models. It searches over a precedence
// feasible task list and one mode per task, and reports OPTIMAL only when the
// best objective meets the lower bound.
type Solver struct {
	Seed          int64
	MaxIterations int64 // 0 = bounded by time only
}

// NewSolver creates a solver with the given seed
func NewSolver(seed int64, maxIterations int64) *Solver {
	return &Solver{Seed: seed, MaxIterations: maxIterations}
}

// Name returns the engine name
func (s *Solver) Name() string {
	return SolverName
}

// Solve searches until the time limit, cancellation, the iteration cap, or a
// proven optimum. It returns the solver handle, the termination status and the
// number of improving solutions found. Only a malformed model is an error;
// infeasible and unknown outcomes are reported through the status.
func (s *Solver) Solve(ctx context.Context, m *Model, limit time.Duration) (*Solution, Status, int, error) {
	started := time.Now()
	if err := m.Validate(); err != nil {
		return nil, ModelInvalid, 0, err
	}
	if limit <= 0 {
		return nil, ModelInvalid, 0, fmt.Errorf("time limit must be > 0 (got %s)", limit)
	}

	for _, t := range m.tasks {
		if len(t.modes) == 0 {
			return &Solution{bound: 0, wallTime: time.Since(started)}, Infeasible, 0, nil
		}
	}
	if ctx.Err() != nil {
		return &Solution{wallTime: time.Since(started)}, Unknown, 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	search := newSearch(m, s.Seed)
	result := search.run(ctx, s.MaxIterations)
	result.solution.wallTime = time.Since(started)
	return result.solution, result.status, result.improving, nil
}
