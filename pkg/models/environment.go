package models

import (
	"errors"
	"fmt"
)

// Deterministic marks an environment that is not a sampled realization
const Deterministic = -1

// Environment is the in-memory representation of one concrete shop instance.
// It is mutated in place when a schedule is written back into it.
type Environment struct {
	Name        string `json:"name"`
	Realization int    `json:"realization"`
	Jobs        []*Job `json:"jobs"`
	NumMachines int    `json:"num_machines"`

	// Setup[m][from][to] is the setup time on machine m between operations
	// with keys from and to. Nil when the instance has no setup times.
	Setup [][][]int `json:"setup,omitempty"`

	ops []*Operation
}

// NewEnvironment builds an environment from per-job alternative lists.
// jobs[j][o] lists the eligible machines of operation o of job j.
func NewEnvironment(name string, numMachines int, jobs [][][]Alternative) *Environment {
	env := &Environment{
		Name:        name,
		Realization: Deterministic,
		NumMachines: numMachines,
	}
	key := 0
	for j, ops := range jobs {
		job := &Job{ID: j}
		for o, alts := range ops {
			op := &Operation{
				Job:          j,
				Index:        o,
				Key:          key,
				Alternatives: append([]Alternative(nil), alts...),
			}
			op.reset()
			job.Operations = append(job.Operations, op)
			key++
		}
		env.Jobs = append(env.Jobs, job)
	}
	return env
}

// Operations returns all operations ordered by key
func (e *Environment) Operations() []*Operation {
	if e.ops == nil {
		for _, job := range e.Jobs {
			e.ops = append(e.ops, job.Operations...)
		}
	}
	return e.ops
}

// Operation returns the operation with the given key
func (e *Environment) Operation(key int) *Operation {
	ops := e.Operations()
	if key < 0 || key >= len(ops) {
		return nil
	}
	return ops[key]
}

// NumOperations returns the total number of operations
func (e *Environment) NumOperations() int {
	return len(e.Operations())
}

// HasSetupTimes reports whether sequence-dependent setup times are present
func (e *Environment) HasSetupTimes() bool {
	return e.Setup != nil
}

// SetupTime returns the setup on machine m between operations from and to
func (e *Environment) SetupTime(m, from, to int) int {
	if e.Setup == nil || from < 0 {
		return 0
	}
	return e.Setup[m][from][to]
}

// Schedule records the assignment of op to machine m over [start, end)
func (e *Environment) Schedule(op *Operation, machine, start, end, setup int) {
	op.Scheduled = true
	op.Machine = machine
	op.Start = start
	op.End = end
	op.SetupTime = setup
}

// Reset clears every scheduled assignment
func (e *Environment) Reset() {
	for _, op := range e.Operations() {
		op.reset()
	}
}

// Makespan returns the latest end time over scheduled operations
func (e *Environment) Makespan() int {
	makespan := 0
	for _, op := range e.Operations() {
		if op.Scheduled && op.End > makespan {
			makespan = op.End
		}
	}
	return makespan
}

// TotalDuration is the sum of the longest processing time of every operation.
// Any semi-active schedule without setup times ends within it.
func (e *Environment) TotalDuration() int {
	total := 0
	for _, op := range e.Operations() {
		total += op.MaxDuration()
	}
	return total
}

// Clone returns a deep copy with an independent operation set
func (e *Environment) Clone() *Environment {
	c := &Environment{
		Name:        e.Name,
		Realization: e.Realization,
		NumMachines: e.NumMachines,
	}
	for _, job := range e.Jobs {
		cj := &Job{ID: job.ID}
		for _, op := range job.Operations {
			cop := *op
			cop.Alternatives = append([]Alternative(nil), op.Alternatives...)
			cj.Operations = append(cj.Operations, &cop)
		}
		c.Jobs = append(c.Jobs, cj)
	}
	if e.Setup != nil {
		c.Setup = make([][][]int, len(e.Setup))
		for m, matrix := range e.Setup {
			c.Setup[m] = make([][]int, len(matrix))
			for i, row := range matrix {
				c.Setup[m][i] = append([]int(nil), row...)
			}
		}
	}
	return c
}

// Validate checks structural consistency of the environment
func (e *Environment) Validate() error {
	if e == nil {
		return errors.New("environment is nil")
	}
	if e.NumMachines <= 0 {
		return fmt.Errorf("machines must be > 0 (got %d)", e.NumMachines)
	}
	if len(e.Jobs) == 0 {
		return errors.New("environment has no jobs")
	}
	for _, op := range e.Operations() {
		if len(op.Alternatives) == 0 {
			return fmt.Errorf("operation %s has no eligible machine", op)
		}
		seen := make(map[int]bool, len(op.Alternatives))
		for _, alt := range op.Alternatives {
			if alt.Machine < 0 || alt.Machine >= e.NumMachines {
				return fmt.Errorf("operation %s: machine %d out of range [0,%d)", op, alt.Machine, e.NumMachines)
			}
			// one mode per machine: the model keys modes by machine
			if seen[alt.Machine] {
				return fmt.Errorf("operation %s lists machine %d more than once", op, alt.Machine)
			}
			seen[alt.Machine] = true
			if alt.Duration < 0 {
				return fmt.Errorf("operation %s: duration must be >= 0 (got %d)", op, alt.Duration)
			}
		}
	}
	if e.Setup != nil {
		n := e.NumOperations()
		if len(e.Setup) != e.NumMachines {
			return fmt.Errorf("setup times must cover %d machines (got %d)", e.NumMachines, len(e.Setup))
		}
		for m, matrix := range e.Setup {
			if len(matrix) != n {
				return fmt.Errorf("setup matrix of machine %d must have %d rows (got %d)", m, n, len(matrix))
			}
			for i, row := range matrix {
				if len(row) != n {
					return fmt.Errorf("setup matrix of machine %d row %d must have %d columns (got %d)", m, i, n, len(row))
				}
			}
		}
	}
	return nil
}
