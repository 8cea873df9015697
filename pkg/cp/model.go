package cp

import (
	"errors"
	"fmt"
)

// ErrModelInvalid is returned when a model is structurally malformed
var ErrModelInvalid = errors.New("model invalid")

// VarID identifies a decision variable of a Model
type VarID int

// TaskID identifies a task (one operation) of a Model
type TaskID int

type variable struct {
	name    string
	boolean bool
}

// ObjectiveKind selects how per-scenario makespans are aggregated
type ObjectiveKind string

const (
	Makespan    ObjectiveKind = "makespan"
	Expectation ObjectiveKind = "expectation"
	ValueAtRisk ObjectiveKind = "VaR"
)

// Objective is minimized by the solver
type Objective struct {
	Kind  ObjectiveKind
	Alpha float64 // confidence level, VaR only
}

// Mode is one way of processing a task: a machine and its duration per scenario
type Mode struct {
	Machine   int
	Durations []int64
}

// ModeVars are the decision variables of one task mode
type ModeVars struct {
	Task     TaskID
	Mode     int
	Presence VarID   // 1 iff the task runs in this mode
	Start    []VarID // per scenario
	End      []VarID // per scenario
}

// Key addresses a task mode by scheduling coordinates
type Key struct {
	Job       int
	Operation int
	Machine   int
}

// VariableIndex maps scheduling decisions to model variables
type VariableIndex map[Key]ModeVars

type task struct {
	job   int
	op    int
	modes []Mode
	vars  []ModeVars
	preds []TaskID
	succs []TaskID
}

// Model is a scheduling model: tasks with alternative modes, precedences,
// no-overlap machines with optional sequence-dependent setup times, and a
// makespan objective over one or more scenarios. Machine assignment and the
// sequence on every machine are shared by all scenarios; timing is per scenario.
type Model struct {
	Name string

	machines  int
	scenarios int
	vars      []variable
	tasks     []task
	setup     map[int][][]int64
	makespan  []VarID
	objective Objective

	badPrecedence [][2]TaskID
}

// NewModel creates an empty model
func NewModel(name string, machines, scenarios int) *Model {
	m := &Model{
		Name:      name,
		machines:  machines,
		scenarios: scenarios,
		setup:     make(map[int][][]int64),
		objective: Objective{Kind: Makespan},
	}
	for s := 0; s < scenarios; s++ {
		m.makespan = append(m.makespan, m.NewIntVar(fmt.Sprintf("makespan_%d", s)))
	}
	return m
}

// NewIntVar adds an integer variable
func (m *Model) NewIntVar(name string) VarID {
	m.vars = append(m.vars, variable{name: name})
	return VarID(len(m.vars) - 1)
}

// NewBoolVar adds a boolean variable
func (m *Model) NewBoolVar(name string) VarID {
	m.vars = append(m.vars, variable{name: name, boolean: true})
	return VarID(len(m.vars) - 1)
}

// VarName returns the name given to v
func (m *Model) VarName(v VarID) string {
	if int(v) < 0 || int(v) >= len(m.vars) {
		return ""
	}
	return m.vars[v].name
}

// AddTask adds a task with its alternative modes and creates, per mode, a
// presence literal and start/end variables for every scenario.
func (m *Model) AddTask(job, op int, modes []Mode) TaskID {
	id := TaskID(len(m.tasks))
	t := task{job: job, op: op, modes: modes}
	for k, mode := range modes {
		mv := ModeVars{
			Task:     id,
			Mode:     k,
			Presence: m.NewBoolVar(fmt.Sprintf("x_%d_%d_%d", job, op, mode.Machine)),
		}
		for s := 0; s < m.scenarios; s++ {
			mv.Start = append(mv.Start, m.NewIntVar(fmt.Sprintf("start_%d_%d_%d_%d", job, op, mode.Machine, s)))
			mv.End = append(mv.End, m.NewIntVar(fmt.Sprintf("end_%d_%d_%d_%d", job, op, mode.Machine, s)))
		}
		t.vars = append(t.vars, mv)
	}
	m.tasks = append(m.tasks, t)
	return id
}

// ModeVars returns the variables of every mode of task t
func (m *Model) ModeVars(t TaskID) []ModeVars {
	return m.tasks[t].vars
}

// AddPrecedence requires before to end before after starts, in every scenario
func (m *Model) AddPrecedence(before, after TaskID) {
	if !m.hasTask(before) || !m.hasTask(after) {
		// reported by Validate
		m.badPrecedence = append(m.badPrecedence, [2]TaskID{before, after})
		return
	}
	m.tasks[before].succs = append(m.tasks[before].succs, after)
	m.tasks[after].preds = append(m.tasks[after].preds, before)
}

func (m *Model) hasTask(t TaskID) bool {
	return int(t) >= 0 && int(t) < len(m.tasks)
}

// SetSetupTimes sets the sequence-dependent setup matrix of a machine,
// indexed by task IDs.
func (m *Model) SetSetupTimes(machine int, matrix [][]int64) {
	m.setup[machine] = matrix
}

// Minimize sets the objective
func (m *Model) Minimize(obj Objective) {
	m.objective = obj
}

// Objective returns the objective being minimized
func (m *Model) Objective() Objective {
	return m.objective
}

// MakespanVar returns the makespan variable of scenario s
func (m *Model) MakespanVar(s int) VarID {
	return m.makespan[s]
}

// NumTasks returns the number of tasks
func (m *Model) NumTasks() int { return len(m.tasks) }

// NumScenarios returns the number of scenarios
func (m *Model) NumScenarios() int { return m.scenarios }

// NumMachines returns the number of machines
func (m *Model) NumMachines() int { return m.machines }

// NumVars returns the number of decision variables
func (m *Model) NumVars() int { return len(m.vars) }

func (m *Model) setupTime(machine, from, to int) int64 {
	if from < 0 {
		return 0
	}
	matrix, ok := m.setup[machine]
	if !ok {
		return 0
	}
	return matrix[from][to]
}

// Validate reports structural defects. A task without modes is not a defect:
// it makes the model infeasible.
func (m *Model) Validate() error {
	if m.machines <= 0 {
		return fmt.Errorf("%w: machines must be > 0 (got %d)", ErrModelInvalid, m.machines)
	}
	if m.scenarios <= 0 {
		return fmt.Errorf("%w: scenarios must be > 0 (got %d)", ErrModelInvalid, m.scenarios)
	}
	if len(m.badPrecedence) > 0 {
		bad := m.badPrecedence[0]
		return fmt.Errorf("%w: precedence %d -> %d references unknown task", ErrModelInvalid, bad[0], bad[1])
	}
	for id, t := range m.tasks {
		for _, mode := range t.modes {
			if mode.Machine < 0 || mode.Machine >= m.machines {
				return fmt.Errorf("%w: task %d uses machine %d out of range [0,%d)", ErrModelInvalid, id, mode.Machine, m.machines)
			}
			if len(mode.Durations) != m.scenarios {
				return fmt.Errorf("%w: task %d has %d durations for %d scenarios", ErrModelInvalid, id, len(mode.Durations), m.scenarios)
			}
			for _, d := range mode.Durations {
				if d < 0 {
					return fmt.Errorf("%w: task %d has negative duration %d", ErrModelInvalid, id, d)
				}
			}
		}
	}
	for machine, matrix := range m.setup {
		if machine < 0 || machine >= m.machines {
			return fmt.Errorf("%w: setup times for unknown machine %d", ErrModelInvalid, machine)
		}
		if len(matrix) != len(m.tasks) {
			return fmt.Errorf("%w: setup matrix of machine %d has %d rows for %d tasks", ErrModelInvalid, machine, len(matrix), len(m.tasks))
		}
		for _, row := range matrix {
			if len(row) != len(m.tasks) {
				return fmt.Errorf("%w: setup matrix of machine %d is not square", ErrModelInvalid, machine)
			}
			for _, v := range row {
				if v < 0 {
					return fmt.Errorf("%w: setup matrix of machine %d has negative entry", ErrModelInvalid, machine)
				}
			}
		}
	}
	switch m.objective.Kind {
	case Makespan, Expectation:
	case ValueAtRisk:
		if !(m.objective.Alpha > 0 && m.objective.Alpha < 1) {
			return fmt.Errorf("%w: VaR alpha must be in (0,1) (got %v)", ErrModelInvalid, m.objective.Alpha)
		}
	default:
		return fmt.Errorf("%w: unknown objective %q", ErrModelInvalid, m.objective.Kind)
	}
	if _, ok := m.topologicalOrder(); !ok {
		return fmt.Errorf("%w: precedence graph has a cycle", ErrModelInvalid)
	}
	return nil
}

// topologicalOrder lists tasks so that predecessors come first, preferring
// lower operation index then lower job. The flag is false on a cycle.
func (m *Model) topologicalOrder() ([]TaskID, bool) {
	n := len(m.tasks)
	indegree := make([]int, n)
	for id := range m.tasks {
		indegree[id] = len(m.tasks[id].preds)
	}
	var ready []TaskID
	for id := range m.tasks {
		if indegree[id] == 0 {
			ready = append(ready, TaskID(id))
		}
	}
	order := make([]TaskID, 0, n)
	for len(ready) > 0 {
		best := 0
		for i := 1; i < len(ready); i++ {
			if m.before(ready[i], ready[best]) {
				best = i
			}
		}
		t := ready[best]
		ready[best] = ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		order = append(order, t)
		for _, s := range m.tasks[t].succs {
			indegree[s]--
			if indegree[s] == 0 {
				ready = append(ready, s)
			}
		}
	}
	return order, len(order) == n
}

func (m *Model) before(a, b TaskID) bool {
	ta, tb := m.tasks[a], m.tasks[b]
	if ta.op != tb.op {
		return ta.op < tb.op
	}
	if ta.job != tb.job {
		return ta.job < tb.job
	}
	return a < b
}
