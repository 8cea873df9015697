package cmd

import (
	"fmt"
	"runtime"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/shopbench/pkg/config"
	"github.com/psantana5/shopbench/pkg/logging"
)

var (
	batchParallel     int
	batchPrintMetrics bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <config> [config...]",
	Short: "Run several experiments",
	Long: `Run independent experiments concurrently. Every configuration must map to its
own experiment identifier. Logging, tracing, ledger and metrics settings are
taken from the first configuration.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().IntVar(&batchParallel, "parallel", runtime.NumCPU()/2, "maximum concurrent experiments")
	batchCmd.Flags().BoolVar(&batchPrintMetrics, "print-metrics", false, "print the run metrics after the summary table")
}

func runBatch(cmd *cobra.Command, args []string) error {
	logger := consoleLogger()
	cfgs := make([]*config.Config, 0, len(args))
	for _, path := range args {
		cfg, err := loadConfig(path, logger)
		if err != nil {
			return err
		}
		if cfg != nil {
			cfgs = append(cfgs, cfg)
		}
	}
	if len(cfgs) == 0 {
		return nil
	}

	ctx := commandContext(cmd)
	s, err := newSession(ctx, cfgs[0])
	if err != nil {
		return err
	}
	defer s.close()

	items, err := s.runner.RunBatch(ctx, cfgs, batchParallel)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Config", "Experiment", "Status", "Objective", "Error")
	failed := 0
	for _, item := range items {
		row := []string{item.Config.Source, "", "", "", ""}
		if item.Result != nil {
			row[1] = item.Result.ExperimentID
			row[2] = item.Result.Status.String()
			if item.Result.Objective != nil {
				row[3] = fmt.Sprintf("%g", *item.Result.Objective)
			}
		}
		if item.Err != nil {
			failed++
			row[4] = item.Err.Error()
			s.logger.Error("Experiment failed", logging.Fields{"config": item.Config.Source, "error": item.Err.Error()})
		}
		if err := table.Append(row[0], row[1], row[2], row[3], row[4]); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	if batchPrintMetrics {
		if err := s.metrics.Encode(cmd.OutOrStdout()); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d experiments failed", failed, len(items))
	}
	return nil
}
