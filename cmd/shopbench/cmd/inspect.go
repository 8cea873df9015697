package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/shopbench/pkg/formulation"
)

var inspectFormat string

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <CP_results.json>",
	Short: "Show a persisted result record",
	Long:  `Print a result record as tables, indented JSON or YAML.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVarP(&inspectFormat, "output", "o", "table", "output format: table, json or yaml")
}

// resultFile reads both deterministic and stochastic records
type resultFile struct {
	formulation.Header
	Makespan *int                             `json:"makespan"`
	Solution []formulation.ScheduledOperation `json:"solution"`

	StochObj         string                          `json:"stoch_obj"`
	VaRAlpha         *float64                        `json:"VaR_alpha"`
	NumRealizations  int                             `json:"num_realizations"`
	ExpectedMakespan *float64                        `json:"expected_makespan"`
	VaR              *float64                        `json:"VaR"`
	Realizations     []formulation.RealizationResult `json:"realizations"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	out := cmd.OutOrStdout()

	switch inspectFormat {
	case "json":
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}
		buf.WriteByte('\n')
		_, err := buf.WriteTo(out)
		return err

	case "yaml":
		var doc map[string]interface{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()

	case "table":
		var res resultFile
		if err := json.Unmarshal(data, &res); err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}
		return renderResult(out, &res)

	default:
		return fmt.Errorf("unknown output format %q (table, json or yaml)", inspectFormat)
	}
}

func renderResult(out io.Writer, res *resultFile) error {
	table := tablewriter.NewWriter(out)
	table.Header("Field", "Value")
	table.Append("Status", res.Status.String())
	table.Append("Objective", optional(res.ObjValue))
	table.Append("Best bound", optional(res.BestBound))
	table.Append("Solutions", fmt.Sprintf("%d", res.SolutionCount))
	table.Append("Iterations", fmt.Sprintf("%d", res.Iterations))
	table.Append("Runtime", fmt.Sprintf("%.2fs / %gs", res.RunTime, res.TimeLimit))
	if res.StochObj != "" {
		table.Append("Objective kind", res.StochObj)
		if res.VaRAlpha != nil {
			table.Append("VaR alpha", fmt.Sprintf("%g", *res.VaRAlpha))
		}
		table.Append("Realizations", fmt.Sprintf("%d", res.NumRealizations))
		table.Append("Expected makespan", optional(res.ExpectedMakespan))
		table.Append("VaR", optional(res.VaR))
	} else if res.Makespan != nil {
		table.Append("Makespan", fmt.Sprintf("%d", *res.Makespan))
	}
	if err := table.Render(); err != nil {
		return err
	}

	if res.StochObj == "" {
		return renderSchedule(out, res.Solution)
	}
	for _, r := range res.Realizations {
		makespan := "none"
		if r.Makespan != nil {
			makespan = fmt.Sprintf("%d", *r.Makespan)
		}
		fmt.Fprintf(out, "\nrealization %d | makespan=%s\n", r.Realization, makespan)
		if err := renderSchedule(out, r.Solution); err != nil {
			return err
		}
	}
	return nil
}

func renderSchedule(out io.Writer, ops []formulation.ScheduledOperation) error {
	if len(ops) == 0 {
		return nil
	}
	table := tablewriter.NewWriter(out)
	table.Header("Job", "Op", "Machine", "Start", "End", "Setup")
	for _, op := range ops {
		table.Append(
			fmt.Sprintf("%d", op.Job),
			fmt.Sprintf("%d", op.Operation),
			fmt.Sprintf("%d", op.Machine),
			fmt.Sprintf("%d", op.Start),
			fmt.Sprintf("%d", op.End),
			fmt.Sprintf("%d", op.Setup),
		)
	}
	return table.Render()
}

func optional(v *float64) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%g", *v)
}
