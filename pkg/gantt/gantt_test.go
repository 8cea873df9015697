package gantt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/psantana5/shopbench/pkg/models"
)

func scheduled() *models.Environment {
	env := models.NewEnvironment("toy", 2, [][][]models.Alternative{
		{{{Machine: 0, Duration: 3}}, {{Machine: 1, Duration: 2}}},
		{{{Machine: 1, Duration: 4}}, {{Machine: 0, Duration: 1}}},
	})
	env.Schedule(env.Jobs[0].Operations[0], 0, 0, 3, 0)
	env.Schedule(env.Jobs[1].Operations[0], 1, 0, 4, 0)
	env.Schedule(env.Jobs[0].Operations[1], 1, 4, 6, 0)
	env.Schedule(env.Jobs[1].Operations[1], 0, 4, 5, 0)
	return env
}

func TestBar(t *testing.T) {
	env := scheduled()
	if got := Bar(env.MachineSchedule(0), 6, 6); got != "000.1." {
		t.Errorf("machine 0 bar = %q", got)
	}
	if got := Bar(env.MachineSchedule(1), 6, 6); got != "111100" {
		t.Errorf("machine 1 bar = %q", got)
	}
	if got := Bar(env.MachineSchedule(0), 0, 6); got != "" {
		t.Errorf("empty schedule bar = %q", got)
	}
}

func TestBarShowsSetup(t *testing.T) {
	machine := &models.Machine{ID: 0, Operations: []*models.Operation{
		{Job: 2, Start: 2, End: 4, SetupTime: 2},
	}}
	if got := Bar(machine, 4, 4); got != "~~22" {
		t.Errorf("bar with setup = %q", got)
	}
}

func TestDraw(t *testing.T) {
	var buf bytes.Buffer
	env := scheduled()
	env.Realization = 3
	if err := NewTableRenderer(&buf).Draw(env); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"toy [realization 3] | makespan=6", "J0.O0 J1.O1", "M1"} {
		if !strings.Contains(out, want) {
			t.Errorf("chart lacks %q:\n%s", want, out)
		}
	}
}

func TestSymbol(t *testing.T) {
	if Symbol(0) != '0' || Symbol(10) != 'a' || Symbol(1000) != '#' {
		t.Errorf("unexpected symbols")
	}
}
