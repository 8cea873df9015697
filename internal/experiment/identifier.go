package experiment

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/psantana5/shopbench/pkg/config"
	"github.com/psantana5/shopbench/pkg/cp"
)

// IDParams are the inputs of an experiment identifier
type IDParams struct {
	Solver          string
	TimeLimit       float64
	Stoch           bool
	NumRealizations int
	Objective       cp.ObjectiveKind
	Alpha           float64
	Instance        string
}

// ExperimentID builds the relative output directory of a run:
//
//	{solver}_{limit}/{instance}
//	{solver}_{limit}/stoch_{n}_expectation{instance}
//	{solver}_{limit}/stoch_{n}_VaR_{round(alpha*100)}{instance}
//
// The instance name is flattened so that the result holds exactly one
// separator.
func ExperimentID(p IDParams) string {
	prefix := p.Solver + "_" + strconv.FormatFloat(p.TimeLimit, 'f', -1, 64)
	name := InstanceName(p.Instance)
	if !p.Stoch {
		return prefix + "/" + name
	}
	switch p.Objective {
	case cp.ValueAtRisk:
		return fmt.Sprintf("%s/stoch_%d_%s_%d%s", prefix, p.NumRealizations, cp.ValueAtRisk, int(math.Round(p.Alpha*100)), name)
	default:
		return fmt.Sprintf("%s/stoch_%d_%s%s", prefix, p.NumRealizations, p.Objective, name)
	}
}

// InstanceName flattens an instance identifier into one path segment
func InstanceName(instance string) string {
	name := strings.Trim(strings.TrimSpace(instance), `/\`)
	return strings.NewReplacer("/", "_", `\`, "_").Replace(name)
}

// IDFromConfig builds the identifier of a validated configuration
func IDFromConfig(cfg *config.Config) string {
	return ExperimentID(IDParams{
		Solver:          cfg.Solver.Name,
		TimeLimit:       cfg.Solver.TimeLimit,
		Stoch:           cfg.Instance.Stoch,
		NumRealizations: cfg.Instance.NumRealizations,
		Objective:       cp.ObjectiveKind(cfg.Instance.StochObj),
		Alpha:           cfg.Instance.VaRAlpha,
		Instance:        cfg.Instance.ProblemInstance,
	})
}
