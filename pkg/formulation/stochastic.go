package formulation

import (
	"fmt"

	"github.com/psantana5/shopbench/pkg/cp"
	"github.com/psantana5/shopbench/pkg/models"
)

// FJSPStoch models a flexible job shop under sampled processing times. One
// joint model covers every realization: machine assignment and sequence are
// decided once, timing follows each realization.
type FJSPStoch struct{}

// Build creates the joint model minimizing the expectation or the VaR of the
// makespan over envs
func (FJSPStoch) Build(envs []*models.Environment, objective cp.Objective) (*cp.Model, cp.VariableIndex, error) {
	switch objective.Kind {
	case cp.Expectation:
	case cp.ValueAtRisk:
		if !(objective.Alpha > 0 && objective.Alpha < 1) {
			return nil, nil, fmt.Errorf("%w: VaR alpha must be in (0,1) (got %v)", ErrUnsupported, objective.Alpha)
		}
	default:
		return nil, nil, fmt.Errorf("%w: stochastic objective %q", ErrUnsupported, objective.Kind)
	}
	if len(envs) == 0 {
		return nil, nil, fmt.Errorf("%w: no realizations", ErrUnsupported)
	}

	model, index, err := build(envs[0].Name, envs, false)
	if err != nil {
		return nil, nil, err
	}
	model.Minimize(objective)
	return model, index, nil
}

// Update writes scenario r of the solution into realization r and aggregates
// the makespans under the model objective
func (FJSPStoch) Update(envs []*models.Environment, idx cp.VariableIndex, out cp.Outcome, objective cp.Objective) ([]*models.Environment, *StochasticSummary, error) {
	solved := out.Status.HasSolution() && out.Solution.HasValues()
	summary := &StochasticSummary{
		Header:          newHeader(out),
		StochObj:        objective.Kind,
		NumRealizations: len(envs),
		Realizations:    make([]RealizationResult, 0, len(envs)),
	}
	if objective.Kind == cp.ValueAtRisk {
		alpha := objective.Alpha
		summary.VaRAlpha = &alpha
	}

	for r, env := range envs {
		if err := apply(env, idx, out, r); err != nil {
			return nil, nil, fmt.Errorf("failed to update realization %d of %s: %w", r, env.Name, err)
		}
		summary.Realizations = append(summary.Realizations, RealizationResult{
			Realization: r,
			Makespan:    makespanOf(env, solved),
			Solution:    schedule(env),
		})
	}

	if solved {
		values := makespans(envs)
		expected := cp.Objective{Kind: cp.Expectation}.Evaluate(values)
		summary.ExpectedMakespan = &expected
		if objective.Kind == cp.ValueAtRisk {
			v := float64(cp.Quantile(values, objective.Alpha))
			summary.VaR = &v
		}
	}
	return envs, summary, nil
}
