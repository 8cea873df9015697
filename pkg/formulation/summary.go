package formulation

import (
	"math"

	"github.com/psantana5/shopbench/pkg/cp"
	"github.com/psantana5/shopbench/pkg/models"
)

// Header carries the solver statistics shared by every result summary.
// Objective fields are null when the solve produced no solution.
type Header struct {
	TimeLimit     float64   `json:"time_limit"`
	Status        cp.Status `json:"status"`
	ObjValue      *float64  `json:"objValue"`
	BestBound     *float64  `json:"bestBound"`
	RunTime       float64   `json:"runTime"`
	Iterations    int64     `json:"iterations"`
	SolutionCount int       `json:"solution_count"`
}

// Stats gives uniform access to the header of any summary
func (h *Header) Stats() *Header {
	return h
}

// Report is implemented by Summary and StochasticSummary
type Report interface {
	Stats() *Header
}

// ScheduledOperation is one row of a schedule
type ScheduledOperation struct {
	Job       int `json:"job"`
	Operation int `json:"operation"`
	Machine   int `json:"machine"`
	Start     int `json:"start"`
	End       int `json:"end"`
	Setup     int `json:"setup"`
}

// Summary is the result of a deterministic run
type Summary struct {
	Header
	Makespan *int                 `json:"makespan"`
	Solution []ScheduledOperation `json:"solution"`
}

// RealizationResult is the schedule of one realization of a stochastic run
type RealizationResult struct {
	Realization int                  `json:"realization"`
	Makespan    *int                 `json:"makespan"`
	Solution    []ScheduledOperation `json:"solution"`
}

// StochasticSummary aggregates every realization of a stochastic run
type StochasticSummary struct {
	Header
	StochObj         cp.ObjectiveKind    `json:"stoch_obj"`
	VaRAlpha         *float64            `json:"VaR_alpha,omitempty"`
	NumRealizations  int                 `json:"num_realizations"`
	ExpectedMakespan *float64            `json:"expected_makespan"`
	VaR              *float64            `json:"VaR"`
	Realizations     []RealizationResult `json:"realizations"`
}

func newHeader(out cp.Outcome) Header {
	h := Header{
		TimeLimit:     out.TimeLimit.Seconds(),
		Status:        out.Status,
		RunTime:       out.Solution.WallTime().Seconds(),
		Iterations:    out.Solution.Iterations(),
		SolutionCount: out.SolutionCount,
	}
	if bound := out.Solution.BestObjectiveBound(); !math.IsNaN(bound) && out.Status.HasSolution() {
		h.BestBound = &bound
	}
	if out.Status.HasSolution() && out.Solution.HasValues() {
		obj := out.Solution.ObjectiveValue()
		h.ObjValue = &obj
	}
	return h
}

// schedule lists the scheduled operations of env in key order
func schedule(env *models.Environment) []ScheduledOperation {
	rows := []ScheduledOperation{}
	for _, op := range env.Operations() {
		if !op.Scheduled {
			continue
		}
		rows = append(rows, ScheduledOperation{
			Job:       op.Job,
			Operation: op.Index,
			Machine:   op.Machine,
			Start:     op.Start,
			End:       op.End,
			Setup:     op.SetupTime,
		})
	}
	return rows
}

func makespanOf(env *models.Environment, solved bool) *int {
	if !solved {
		return nil
	}
	m := env.Makespan()
	return &m
}
