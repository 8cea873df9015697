package models

import (
	"strings"
	"testing"
)

func twoJobEnv() *Environment {
	return NewEnvironment("toy", 2, [][][]Alternative{
		{{{Machine: 0, Duration: 3}}, {{Machine: 1, Duration: 2}}},
		{{{Machine: 1, Duration: 4}, {Machine: 0, Duration: 6}}},
	})
}

func TestNewEnvironmentKeys(t *testing.T) {
	env := twoJobEnv()

	if env.NumOperations() != 3 {
		t.Fatalf("Expected 3 operations, got %d", env.NumOperations())
	}
	for i, op := range env.Operations() {
		if op.Key != i {
			t.Errorf("Operation %s has key %d, want %d", op, op.Key, i)
		}
		if op.Scheduled || op.Machine != -1 {
			t.Errorf("Operation %s should start unscheduled", op)
		}
	}
	if env.Realization != Deterministic {
		t.Errorf("Expected deterministic realization, got %d", env.Realization)
	}
	if err := env.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestTotalDurationUsesLongestAlternative(t *testing.T) {
	env := twoJobEnv()
	if got := env.TotalDuration(); got != 3+2+6 {
		t.Errorf("TotalDuration = %d, want 11", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	env := twoJobEnv()
	env.Setup = [][][]int{
		{{0, 1, 1}, {1, 0, 1}, {1, 1, 0}},
		{{0, 2, 2}, {2, 0, 2}, {2, 2, 0}},
	}
	clone := env.Clone()

	clone.Schedule(clone.Operation(0), 0, 0, 3, 0)
	clone.Operation(0).Alternatives[0].Duration = 99
	clone.Setup[0][0][1] = 42

	if env.Operation(0).Scheduled {
		t.Error("Scheduling the clone must not touch the original")
	}
	if env.Operation(0).Alternatives[0].Duration != 3 {
		t.Error("Clone shares alternative slices with the original")
	}
	if env.Setup[0][0][1] != 1 {
		t.Error("Clone shares setup matrices with the original")
	}
}

func TestMakespanAndMachineSchedule(t *testing.T) {
	env := twoJobEnv()
	env.Schedule(env.Operation(0), 0, 0, 3, 0)
	env.Schedule(env.Operation(2), 1, 0, 4, 0)
	env.Schedule(env.Operation(1), 1, 4, 6, 0)

	if env.Makespan() != 6 {
		t.Errorf("Makespan = %d, want 6", env.Makespan())
	}
	m1 := env.MachineSchedule(1)
	if len(m1.Operations) != 2 || m1.Operations[0].Key != 2 || m1.Operations[1].Key != 1 {
		t.Errorf("Machine 1 schedule out of order: %v", m1.Operations)
	}
	if m1.Busy() != 6 {
		t.Errorf("Machine 1 busy = %d, want 6", m1.Busy())
	}

	env.Reset()
	if env.Makespan() != 0 {
		t.Errorf("Makespan after reset = %d, want 0", env.Makespan())
	}
}

func TestValidateRejectsBadSetupShape(t *testing.T) {
	env := twoJobEnv()
	env.Setup = [][][]int{{{0}}}
	if err := env.Validate(); err == nil {
		t.Fatal("Expected setup shape error")
	}
}

func TestValidateRejectsMachineOutOfRange(t *testing.T) {
	env := NewEnvironment("bad", 1, [][][]Alternative{{{{Machine: 3, Duration: 1}}}})
	if err := env.Validate(); err == nil {
		t.Fatal("Expected machine range error")
	}
}

func TestValidateRejectsDuplicateMachine(t *testing.T) {
	env := NewEnvironment("dup", 1, [][][]Alternative{{{
		{Machine: 0, Duration: 3},
		{Machine: 0, Duration: 5},
	}}})
	err := env.Validate()
	if err == nil {
		t.Fatal("Expected duplicate machine error")
	}
	if !strings.Contains(err.Error(), "machine 0 more than once") {
		t.Errorf("Unexpected error: %v", err)
	}
}
