// Package gantt renders schedules as text Gantt charts.
package gantt

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/psantana5/shopbench/pkg/models"
)

// DefaultWidth is the number of characters of a chart bar
const DefaultWidth = 60

const symbols = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// TableRenderer draws one table per environment: a row per machine with its
// operation sequence, busy time and a scaled bar.
type TableRenderer struct {
	Out   io.Writer
	Width int
}

// NewTableRenderer creates a renderer writing to out, stdout if nil
func NewTableRenderer(out io.Writer) *TableRenderer {
	if out == nil {
		out = os.Stdout
	}
	return &TableRenderer{Out: out, Width: DefaultWidth}
}

// Draw renders the schedule held by env
func (r *TableRenderer) Draw(env *models.Environment) error {
	width := r.Width
	if width <= 0 {
		width = DefaultWidth
	}
	makespan := env.Makespan()

	title := env.Name
	if env.Realization != models.Deterministic {
		title = fmt.Sprintf("%s [realization %d]", title, env.Realization)
	}
	if _, err := fmt.Fprintf(r.Out, "%s | makespan=%d\n", title, makespan); err != nil {
		return fmt.Errorf("failed to write chart title: %w", err)
	}

	table := tablewriter.NewWriter(r.Out)
	table.Header("Machine", "Sequence", "Busy", "Chart")
	for _, machine := range env.Machines() {
		seq := make([]string, len(machine.Operations))
		for i, op := range machine.Operations {
			seq[i] = op.String()
		}
		if err := table.Append(
			fmt.Sprintf("M%d", machine.ID),
			strings.Join(seq, " "),
			fmt.Sprintf("%d", machine.Busy()),
			Bar(machine, makespan, width),
		); err != nil {
			return fmt.Errorf("failed to add machine %d: %w", machine.ID, err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render chart of %s: %w", env.Name, err)
	}
	return nil
}

// Bar draws machine over [0, makespan] in width characters. Processing is
// drawn with the job symbol, setup with '~' and idle time with '.'.
func Bar(machine *models.Machine, makespan, width int) string {
	if makespan <= 0 || width <= 0 {
		return ""
	}
	cells := []rune(strings.Repeat(".", width))
	scale := func(t int) int {
		c := t * width / makespan
		if c > width {
			c = width
		}
		return c
	}
	fill := func(from, to int, symbol rune) {
		lo, hi := scale(from), scale(to)
		if hi == lo && to > from && lo < width {
			hi = lo + 1
		}
		for c := lo; c < hi; c++ {
			cells[c] = symbol
		}
	}
	for _, op := range machine.Operations {
		if op.SetupTime > 0 {
			fill(op.Start-op.SetupTime, op.Start, '~')
		}
		fill(op.Start, op.End, Symbol(op.Job))
	}
	return string(cells)
}

// Symbol returns the character used for a job
func Symbol(job int) rune {
	if job >= 0 && job < len(symbols) {
		return rune(symbols[job])
	}
	return '#'
}
