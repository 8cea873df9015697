package experiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/psantana5/shopbench/pkg/cp"
)

var (
	// ErrInvalidTimeLimit is returned for non-positive or non-finite limits
	ErrInvalidTimeLimit = errors.New("invalid time limit")
	// ErrSolverFault wraps failures of the solver itself, such as a malformed model
	ErrSolverFault = errors.New("solver fault")
)

// SolverAdapter solves a model within a wall-clock limit
type SolverAdapter interface {
	Name() string
	Solve(ctx context.Context, m *cp.Model, limit time.Duration) (*cp.Solution, cp.Status, int, error)
}

// Solve checks the time limit (seconds) and delegates to the solver. Every
// termination status is a valid outcome; only solver errors are returned.
func Solve(ctx context.Context, solver SolverAdapter, model *cp.Model, limit float64) (cp.Outcome, error) {
	if math.IsNaN(limit) || math.IsInf(limit, 0) || limit <= 0 {
		return cp.Outcome{}, fmt.Errorf("%w: %v seconds", ErrInvalidTimeLimit, limit)
	}
	budget := time.Duration(limit * float64(time.Second))

	solution, status, count, err := solver.Solve(ctx, model, budget)
	if err != nil {
		return cp.Outcome{}, fmt.Errorf("%w: %s: %w", ErrSolverFault, solver.Name(), err)
	}
	if solution == nil {
		solution = &cp.Solution{}
	}
	return cp.Outcome{
		Solution:      solution,
		Status:        status,
		SolutionCount: count,
		TimeLimit:     budget,
	}, nil
}
