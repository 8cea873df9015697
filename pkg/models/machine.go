package models

import "sort"

// Machine is a processing resource of the shop
type Machine struct {
	ID         int          `json:"id"`
	Operations []*Operation `json:"operations"` // in start order
}

// Busy returns the summed processing and setup time on the machine
func (m *Machine) Busy() int {
	total := 0
	for _, op := range m.Operations {
		total += op.End - op.Start + op.SetupTime
	}
	return total
}

// MachineSchedule returns the operations assigned to machine m ordered by start time
func (e *Environment) MachineSchedule(m int) *Machine {
	machine := &Machine{ID: m}
	for _, op := range e.Operations() {
		if op.Scheduled && op.Machine == m {
			machine.Operations = append(machine.Operations, op)
		}
	}
	sort.SliceStable(machine.Operations, func(i, j int) bool {
		return machine.Operations[i].Start < machine.Operations[j].Start
	})
	return machine
}

// Machines returns the schedule of every machine
func (e *Environment) Machines() []*Machine {
	machines := make([]*Machine, e.NumMachines)
	for m := range machines {
		machines[m] = e.MachineSchedule(m)
	}
	return machines
}
