package cp

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Status is the termination status of a solve. Values follow the usual
// CP-SAT numbering.
type Status int

const (
	Unknown Status = iota
	ModelInvalid
	Feasible
	Infeasible
	Optimal
)

func (s Status) String() string {
	switch s {
	case Unknown:
		return "UNKNOWN"
	case ModelInvalid:
		return "MODEL_INVALID"
	case Feasible:
		return "FEASIBLE"
	case Infeasible:
		return "INFEASIBLE"
	case Optimal:
		return "OPTIMAL"
	default:
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
}

// HasSolution reports whether the status carries variable values
func (s Status) HasSolution() bool {
	return s == Feasible || s == Optimal
}

// MarshalText encodes the status by name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStatus is the inverse of String
func ParseStatus(name string) (Status, error) {
	for _, s := range []Status{Unknown, ModelInvalid, Feasible, Infeasible, Optimal} {
		if s.String() == name {
			return s, nil
		}
	}
	return Unknown, fmt.Errorf("unknown solver status %q", name)
}

// Solution is the solver handle returned by Solve. Values are only present
// when the status has a solution.
type Solution struct {
	values     []int64
	objective  float64
	bound      float64
	makespans  []int64
	wallTime   time.Duration
	iterations int64
}

// HasValues reports whether variable values are available
func (s *Solution) HasValues() bool {
	return s != nil && s.values != nil
}

// Value returns the value of v in the best solution
func (s *Solution) Value(v VarID) int64 {
	if !s.HasValues() || int(v) < 0 || int(v) >= len(s.values) {
		return 0
	}
	return s.values[v]
}

// BooleanValue returns the value of literal v in the best solution
func (s *Solution) BooleanValue(v VarID) bool {
	return s.Value(v) != 0
}

// ObjectiveValue returns the objective of the best solution, NaN without one
func (s *Solution) ObjectiveValue() float64 {
	if !s.HasValues() {
		return math.NaN()
	}
	return s.objective
}

// BestObjectiveBound returns the proven lower bound on the objective
func (s *Solution) BestObjectiveBound() float64 {
	if s == nil {
		return math.NaN()
	}
	return s.bound
}

// Makespans returns the makespan of every scenario in the best solution
func (s *Solution) Makespans() []int64 {
	if !s.HasValues() {
		return nil
	}
	return append([]int64(nil), s.makespans...)
}

// WallTime returns the time spent in Solve
func (s *Solution) WallTime() time.Duration {
	if s == nil {
		return 0
	}
	return s.wallTime
}

// Iterations returns the number of neighbourhood moves evaluated
func (s *Solution) Iterations() int64 {
	if s == nil {
		return 0
	}
	return s.iterations
}

// Outcome is the immutable result of one solve
type Outcome struct {
	Solution      *Solution
	Status        Status
	SolutionCount int // improving solutions found
	TimeLimit     time.Duration
}

// Evaluate aggregates per-scenario makespans under the objective
func (o Objective) Evaluate(makespans []int64) float64 {
	if len(makespans) == 0 {
		return 0
	}
	switch o.Kind {
	case ValueAtRisk:
		return float64(Quantile(makespans, o.Alpha))
	default:
		sum := 0.0
		for _, v := range makespans {
			sum += float64(v)
		}
		return sum / float64(len(makespans))
	}
}

// Quantile returns the empirical alpha-quantile: the ceil(alpha*n)-th
// smallest value.
func Quantile(values []int64, alpha float64) int64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	k := int(math.Ceil(alpha*float64(len(sorted)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(sorted) {
		k = len(sorted) - 1
	}
	return sorted[k]
}

// UnmarshalText decodes a status name
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
