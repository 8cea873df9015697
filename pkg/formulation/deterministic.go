package formulation

import (
	"fmt"

	"github.com/psantana5/shopbench/pkg/cp"
	"github.com/psantana5/shopbench/pkg/models"
)

// JSP models job shops and flow shops: every operation has exactly one
// machine, machines are disjunctive and jobs are chains.
type JSP struct{}

// Build creates the model of a job shop or flow shop
func (JSP) Build(env *models.Environment) (*cp.Model, cp.VariableIndex, error) {
	for _, op := range env.Operations() {
		if len(op.Alternatives) != 1 {
			return nil, nil, fmt.Errorf("%w: operation %s has %d eligible machines", ErrUnsupported, op, len(op.Alternatives))
		}
	}
	if env.HasSetupTimes() {
		return nil, nil, fmt.Errorf("%w: %s has setup times", ErrUnsupported, env.Name)
	}
	return build(env.Name, []*models.Environment{env}, false)
}

// Update writes the solution into env
func (JSP) Update(env *models.Environment, idx cp.VariableIndex, out cp.Outcome) (*models.Environment, *Summary, error) {
	return updateOne(env, idx, out)
}

// FJSP models flexible job shops: each operation picks one of its eligible
// machines.
type FJSP struct{}

// Build creates the model of a flexible job shop. Setup times, if any, are
// ignored.
func (FJSP) Build(env *models.Environment) (*cp.Model, cp.VariableIndex, error) {
	return build(env.Name, []*models.Environment{env}, false)
}

// Update writes the solution into env
func (FJSP) Update(env *models.Environment, idx cp.VariableIndex, out cp.Outcome) (*models.Environment, *Summary, error) {
	return updateOne(env, idx, out)
}

// FJSPSDST is FJSP with sequence-dependent setup times between consecutive
// operations on a machine.
type FJSPSDST struct{}

// Build creates the model, setup matrices included
func (FJSPSDST) Build(env *models.Environment) (*cp.Model, cp.VariableIndex, error) {
	if !env.HasSetupTimes() {
		return nil, nil, fmt.Errorf("%w: %s has no setup times", ErrUnsupported, env.Name)
	}
	return build(env.Name, []*models.Environment{env}, true)
}

// Update writes the solution into env, setup times included
func (FJSPSDST) Update(env *models.Environment, idx cp.VariableIndex, out cp.Outcome) (*models.Environment, *Summary, error) {
	return updateOne(env, idx, out)
}
