// Package formulation turns scheduling environments into constraint models
// and writes solver assignments back into them, one formulation per problem
// family.
package formulation

import (
	"errors"
	"fmt"

	"github.com/psantana5/shopbench/pkg/cp"
	"github.com/psantana5/shopbench/pkg/models"
)

// ErrUnsupported is returned when an environment does not fit a formulation
var ErrUnsupported = errors.New("environment not supported by formulation")

// build creates one task per operation over len(envs) scenarios. Task IDs
// equal operation keys. Every environment must share the structure of the
// first one; only durations may differ.
func build(name string, envs []*models.Environment, withSetup bool) (*cp.Model, cp.VariableIndex, error) {
	if len(envs) == 0 {
		return nil, nil, errors.New("no environment to build from")
	}
	base := envs[0]
	if err := base.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid environment %s: %w", base.Name, err)
	}
	for r, env := range envs[1:] {
		if env.NumOperations() != base.NumOperations() || env.NumMachines != base.NumMachines {
			return nil, nil, fmt.Errorf("realization %d does not match the structure of %s", r+1, base.Name)
		}
	}

	model := cp.NewModel(name, base.NumMachines, len(envs))
	index := make(cp.VariableIndex)
	jobTasks := make(map[int][]cp.TaskID)
	for _, op := range base.Operations() {
		modes := make([]cp.Mode, 0, len(op.Alternatives))
		for a, alt := range op.Alternatives {
			durations := make([]int64, len(envs))
			for s, env := range envs {
				other := env.Operation(op.Key)
				if len(other.Alternatives) != len(op.Alternatives) || other.Alternatives[a].Machine != alt.Machine {
					return nil, nil, fmt.Errorf("realization %d: operation %s has different machines", s, op)
				}
				durations[s] = int64(other.Alternatives[a].Duration)
			}
			modes = append(modes, cp.Mode{Machine: alt.Machine, Durations: durations})
		}

		id := model.AddTask(op.Job, op.Index, modes)
		for k, mv := range model.ModeVars(id) {
			index[cp.Key{Job: op.Job, Operation: op.Index, Machine: modes[k].Machine}] = mv
		}
		if prev := jobTasks[op.Job]; len(prev) > 0 {
			model.AddPrecedence(prev[len(prev)-1], id)
		}
		jobTasks[op.Job] = append(jobTasks[op.Job], id)
	}

	if withSetup {
		for m, matrix := range base.Setup {
			rows := make([][]int64, len(matrix))
			for i, row := range matrix {
				rows[i] = make([]int64, len(row))
				for j, v := range row {
					rows[i][j] = int64(v)
				}
			}
			model.SetSetupTimes(m, rows)
		}
	}
	return model, index, nil
}

// apply writes scenario s of the solution into env. The environment is reset
// first so that a run without solution leaves it unscheduled.
func apply(env *models.Environment, idx cp.VariableIndex, out cp.Outcome, s int) error {
	env.Reset()
	if !out.Status.HasSolution() || !out.Solution.HasValues() {
		return nil
	}
	sol := out.Solution
	for _, op := range env.Operations() {
		placed := false
		for _, alt := range op.Alternatives {
			mv, ok := idx[cp.Key{Job: op.Job, Operation: op.Index, Machine: alt.Machine}]
			if !ok {
				return fmt.Errorf("no variables for operation %s on machine %d", op, alt.Machine)
			}
			if !sol.BooleanValue(mv.Presence) {
				continue
			}
			if s >= len(mv.Start) {
				return fmt.Errorf("no scenario %d for operation %s", s, op)
			}
			env.Schedule(op, alt.Machine, int(sol.Value(mv.Start[s])), int(sol.Value(mv.End[s])), 0)
			placed = true
			break
		}
		if !placed {
			return fmt.Errorf("solution assigns no machine to operation %s", op)
		}
	}
	if env.HasSetupTimes() {
		for _, machine := range env.Machines() {
			prev := -1
			for _, op := range machine.Operations {
				op.SetupTime = env.SetupTime(machine.ID, prev, op.Key)
				prev = op.Key
			}
		}
	}
	return nil
}

// updateOne is the updater shared by the deterministic formulations
func updateOne(env *models.Environment, idx cp.VariableIndex, out cp.Outcome) (*models.Environment, *Summary, error) {
	if err := apply(env, idx, out, 0); err != nil {
		return nil, nil, fmt.Errorf("failed to update %s: %w", env.Name, err)
	}
	solved := out.Status.HasSolution() && out.Solution.HasValues()
	return env, &Summary{
		Header:   newHeader(out),
		Makespan: makespanOf(env, solved),
		Solution: schedule(env),
	}, nil
}

func makespans(envs []*models.Environment) []int64 {
	values := make([]int64, len(envs))
	for i, env := range envs {
		values[i] = int64(env.Makespan())
	}
	return values
}
