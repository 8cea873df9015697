package cp

import (
	"context"
	"math"
	"math/rand"
)

const (
	initialTemperatureRatio = 0.05
	coolingRate             = 0.9995
	minTemperature          = 1e-3
	checkEvery              = 64
)

// assignment is a point of the search space: a task list in which every task
// follows its predecessors, and the chosen mode of every task
type assignment struct {
	order []TaskID
	mode  []int
}

func (a assignment) clone() assignment {
	return assignment{
		order: append([]TaskID(nil), a.order...),
		mode:  append([]int(nil), a.mode...),
	}
}

type timing struct {
	start [][]int64 // [scenario][task]
	end   [][]int64
}

type searchResult struct {
	solution  *Solution
	status    Status
	improving int
}

type search struct {
	model *Model
	rng   *rand.Rand
	bound float64

	// scratch buffers reused by evaluate
	free     []int64
	last     []int
	ends     []int64
	makespan []int64
	pos      []int
}

func newSearch(m *Model, seed int64) *search {
	return &search{
		model:    m,
		rng:      rand.New(rand.NewSource(seed)),
		free:     make([]int64, m.machines),
		last:     make([]int, m.machines),
		ends:     make([]int64, len(m.tasks)),
		makespan: make([]int64, m.scenarios),
		pos:      make([]int, len(m.tasks)),
	}
}

func (s *search) run(ctx context.Context, maxIterations int64) searchResult {
	m := s.model
	s.bound = m.objective.Evaluate(s.lowerBounds())

	current := s.initial()
	currentObj := s.evaluate(current)
	best := current.clone()
	bestObj := currentObj
	improving := 1

	temperature := math.Max(1, initialTemperatureRatio*currentObj)
	var iterations int64
	for !s.optimal(bestObj) {
		if maxIterations > 0 && iterations >= maxIterations {
			break
		}
		if iterations%checkEvery == 0 && ctx.Err() != nil {
			break
		}
		iterations++

		candidate, ok := s.neighbour(current)
		if !ok {
			// no move exists: the single schedule is the best one
			break
		}
		obj := s.evaluate(candidate)
		delta := obj - currentObj
		if delta <= 0 || s.rng.Float64() < math.Exp(-delta/temperature) {
			current, currentObj = candidate, obj
			if obj < bestObj {
				best, bestObj = candidate.clone(), obj
				improving++
			}
		}

		temperature *= coolingRate
		if temperature < minTemperature {
			current, currentObj = best.clone(), bestObj
			temperature = math.Max(1, initialTemperatureRatio*bestObj)
		}
	}

	status := Feasible
	if s.optimal(bestObj) {
		status = Optimal
	}
	return searchResult{
		solution:  s.materialize(best, bestObj, iterations),
		status:    status,
		improving: improving,
	}
}

func (s *search) optimal(obj float64) bool {
	return obj <= s.bound+1e-9
}

// initial lists tasks in topological order and picks the mode with the
// shortest mean duration
func (s *search) initial() assignment {
	m := s.model
	order, _ := m.topologicalOrder()
	modes := make([]int, len(m.tasks))
	for id, t := range m.tasks {
		bestMean := math.Inf(1)
		for k, mode := range t.modes {
			mean := 0.0
			for _, d := range mode.Durations {
				mean += float64(d)
			}
			mean /= float64(len(mode.Durations))
			if mean < bestMean {
				bestMean = mean
				modes[id] = k
			}
		}
	}
	return assignment{order: order, mode: modes}
}

// neighbour applies one random move to a copy of a: either a task is given
// another mode, or a task is shifted within the window allowed by its
// predecessors and successors.
func (s *search) neighbour(a assignment) (assignment, bool) {
	m := s.model
	n := len(a.order)
	if n == 0 {
		return a, false
	}
	next := a.clone()
	for attempt := 0; attempt < 2*n+2; attempt++ {
		t := TaskID(s.rng.Intn(n))
		if s.rng.Intn(2) == 0 && len(m.tasks[t].modes) > 1 {
			k := s.rng.Intn(len(m.tasks[t].modes) - 1)
			if k >= next.mode[t] {
				k++
			}
			next.mode[t] = k
			return next, true
		}
		if s.shift(next, t) {
			return next, true
		}
	}
	return a, false
}

func (s *search) shift(a assignment, t TaskID) bool {
	m := s.model
	for i, id := range a.order {
		s.pos[id] = i
	}
	from := s.pos[t]
	lo, hi := 0, len(a.order)-1
	for _, p := range m.tasks[t].preds {
		if s.pos[p]+1 > lo {
			lo = s.pos[p] + 1
		}
	}
	for _, q := range m.tasks[t].succs {
		if s.pos[q]-1 < hi {
			hi = s.pos[q] - 1
		}
	}
	if hi <= lo {
		return false
	}
	to := lo + s.rng.Intn(hi-lo)
	if to >= from {
		to++
	}
	if to > hi {
		return false
	}
	if to < from {
		copy(a.order[to+1:from+1], a.order[to:from])
	} else {
		copy(a.order[from:to], a.order[from+1:to+1])
	}
	a.order[to] = t
	return true
}

// evaluate decodes a into a semi-active schedule per scenario and returns the
// objective value
func (s *search) evaluate(a assignment) float64 {
	for sc := 0; sc < s.model.scenarios; sc++ {
		s.makespan[sc] = s.decode(a, sc, nil)
	}
	return s.model.objective.Evaluate(s.makespan)
}

// decode schedules scenario sc and returns its makespan. When out is non-nil
// the start and end of every task are recorded in it.
func (s *search) decode(a assignment, sc int, out *timing) int64 {
	m := s.model
	for i := range s.free {
		s.free[i] = 0
		s.last[i] = -1
	}
	var makespan int64
	for _, t := range a.order {
		task := m.tasks[t]
		mode := task.modes[a.mode[t]]

		var ready int64
		for _, p := range task.preds {
			if s.ends[p] > ready {
				ready = s.ends[p]
			}
		}
		available := s.free[mode.Machine] + m.setupTime(mode.Machine, s.last[mode.Machine], int(t))
		start := ready
		if available > start {
			start = available
		}
		end := start + mode.Durations[sc]

		s.ends[t] = end
		s.free[mode.Machine] = end
		s.last[mode.Machine] = int(t)
		if end > makespan {
			makespan = end
		}
		if out != nil {
			out.start[sc][t] = start
			out.end[sc][t] = end
		}
	}
	return makespan
}

// lowerBounds returns a makespan bound per scenario: the largest of the
// longest precedence chain, the load of single-mode tasks on any machine, and
// the total work spread over all machines.
func (s *search) lowerBounds() []int64 {
	m := s.model
	order, _ := m.topologicalOrder()
	bounds := make([]int64, m.scenarios)
	chain := make([]int64, len(m.tasks))
	for sc := 0; sc < m.scenarios; sc++ {
		load := make([]int64, m.machines)
		var total, longest int64
		for _, t := range order {
			task := m.tasks[t]
			shortest := int64(math.MaxInt64)
			for _, mode := range task.modes {
				if mode.Durations[sc] < shortest {
					shortest = mode.Durations[sc]
				}
			}
			if len(task.modes) == 1 {
				load[task.modes[0].Machine] += shortest
			}
			total += shortest

			var ready int64
			for _, p := range task.preds {
				if chain[p] > ready {
					ready = chain[p]
				}
			}
			chain[t] = ready + shortest
			if chain[t] > longest {
				longest = chain[t]
			}
		}
		bound := longest
		for _, l := range load {
			if l > bound {
				bound = l
			}
		}
		if spread := (total + int64(m.machines) - 1) / int64(m.machines); spread > bound {
			bound = spread
		}
		bounds[sc] = bound
	}
	return bounds
}

func (s *search) materialize(a assignment, obj float64, iterations int64) *Solution {
	m := s.model
	out := &timing{
		start: make([][]int64, m.scenarios),
		end:   make([][]int64, m.scenarios),
	}
	for sc := range out.start {
		out.start[sc] = make([]int64, len(m.tasks))
		out.end[sc] = make([]int64, len(m.tasks))
	}

	values := make([]int64, len(m.vars))
	makespans := make([]int64, m.scenarios)
	for sc := 0; sc < m.scenarios; sc++ {
		makespans[sc] = s.decode(a, sc, out)
		values[m.makespan[sc]] = makespans[sc]
	}
	for id, t := range m.tasks {
		mv := t.vars[a.mode[id]]
		values[mv.Presence] = 1
		for sc := 0; sc < m.scenarios; sc++ {
			values[mv.Start[sc]] = out.start[sc][id]
			values[mv.End[sc]] = out.end[sc][id]
		}
	}
	return &Solution{
		values:     values,
		objective:  obj,
		bound:      s.bound,
		makespans:  makespans,
		iterations: iterations,
	}
}
