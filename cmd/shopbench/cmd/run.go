package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one experiment",
	Long: `Run the experiment described by --config_file: classify the instance, build and
solve the model within solver.time_limit and write CP_results.json under
output.results_root/<experiment id>. A missing configuration file is reported
and the command exits cleanly.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgFile, consoleLogger())
	if err != nil || cfg == nil {
		return err
	}

	ctx := commandContext(cmd)
	s, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	res, err := s.runner.Run(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Path)
	return nil
}
