package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/shopbench/pkg/config"
	"github.com/psantana5/shopbench/pkg/logging"
)

var (
	cfgFile  string
	logLevel string
	logJSON  bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "shopbench",
	Short: "Scheduling experiment orchestrator",
	Long: `shopbench runs job shop, flow shop and flexible job shop scheduling experiments
with a time-limited constraint solver and stores one result record per experiment.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. ctx is cancelled on SIGINT and SIGTERM.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initFlags)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config_file", config.DefaultFile, "experiment parameter file (toml, yaml or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log in JSON format")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
}

// initFlags lets SHOPBENCH_LOG_LEVEL and SHOPBENCH_LOG_JSON stand in for flags
func initFlags() {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
	logLevel = viper.GetString("log_level")
	logJSON = viper.GetBool("log_json")
}

// consoleLogger is used before a configuration is available
func consoleLogger() *logging.Logger {
	level := logLevel
	if level == "" {
		level = "info"
	}
	return logging.NewLogger(logging.ParseLevel(level), logJSON)
}

// runLogger follows the logging section of cfg; flags take precedence
func runLogger(cfg *config.Config) (*logging.Logger, error) {
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	jsonFormat := cfg.Logging.JSON || logJSON

	if cfg.Logging.Dir == "" {
		return logging.NewLogger(logging.ParseLevel(level), jsonFormat), nil
	}
	logger, err := logging.NewFileLogger(cfg.Logging.Dir, "shopbench", "runs", logging.ParseLevel(level), jsonFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logger, nil
}

// loadConfig reads path. A missing file is reported and yields (nil, nil) so
// that the command exits cleanly.
func loadConfig(path string, logger *logging.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, config.ErrMissingConfig) {
		logger.Error("Configuration file not found, nothing to run", logging.Fields{"path": path})
		return nil, nil
	}
	if err != nil {
		logger.Error("Invalid configuration", logging.Fields{"path": path, "error": err.Error()})
		return nil, err
	}
	return cfg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
