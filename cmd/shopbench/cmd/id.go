package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psantana5/shopbench/internal/experiment"
)

// idCmd represents the id command
var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Print the experiment identifier",
	Long:  `Print the output directory, relative to output.results_root, that run would write for --config_file.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cfgFile, consoleLogger())
		if err != nil || cfg == nil {
			return err
		}
		if _, err := experiment.Classify(cfg.Instance.ProblemInstance, cfg.Instance.Stoch); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), experiment.IDFromConfig(cfg))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(idCmd)
}
