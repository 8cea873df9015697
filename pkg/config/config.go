// Package config loads and validates experiment parameter files.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/psantana5/shopbench/pkg/cp"
)

var (
	// ErrMissingConfig is returned when the parameter file does not exist
	ErrMissingConfig = errors.New("configuration file not found")
	// ErrInvalid is returned for malformed or inconsistent parameters
	ErrInvalid = errors.New("invalid configuration")
)

// EnvPrefix prefixes environment overrides, e.g. SHOPBENCH_SOLVER_TIME_LIMIT
const EnvPrefix = "SHOPBENCH"

// DefaultFile is read when no file is given on the command line
const DefaultFile = "configs/cpls.toml"

// Config is the full parameter set of one experiment
type Config struct {
	Instance InstanceConfig `mapstructure:"instance"`
	Solver   SolverConfig   `mapstructure:"solver"`
	Output   OutputConfig   `mapstructure:"output"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"`

	// Source is the file the configuration was read from
	Source string `mapstructure:"-"`
}

// InstanceConfig selects the problem instance and its stochastic setting
type InstanceConfig struct {
	ProblemInstance   string  `mapstructure:"problem_instance"`
	Stoch             bool    `mapstructure:"stoch"`
	NumRealizations   int     `mapstructure:"num_realizations"`
	StochObj          string  `mapstructure:"stoch_obj"`
	VaRAlpha          float64 `mapstructure:"var_alpha"`
	DataRoot          string  `mapstructure:"data_root"`
	RealizationSeed   int64   `mapstructure:"realization_seed"`
	RealizationSpread float64 `mapstructure:"realization_spread"`
}

// SolverConfig configures the solver run
type SolverConfig struct {
	TimeLimit     float64 `mapstructure:"time_limit"` // seconds
	Name          string  `mapstructure:"name"`
	Seed          int64   `mapstructure:"seed"`
	MaxIterations int64   `mapstructure:"max_iterations"`
}

// OutputConfig controls what a run leaves behind
type OutputConfig struct {
	Plotting     bool   `mapstructure:"plotting"`
	ResultsRoot  string `mapstructure:"results_root"`
	MetricsFile  string `mapstructure:"metrics_file"`
	LedgerDriver string `mapstructure:"ledger_driver"`
	LedgerDSN    string `mapstructure:"ledger_dsn"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	Dir   string `mapstructure:"dir"`
}

// TracingConfig configures OpenTelemetry export
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("instance.problem_instance", "")
	v.SetDefault("instance.stoch", false)
	v.SetDefault("instance.num_realizations", 0)
	v.SetDefault("instance.stoch_obj", "")
	v.SetDefault("instance.var_alpha", 0.0)
	v.SetDefault("instance.data_root", "./data")
	v.SetDefault("instance.realization_seed", 0)
	v.SetDefault("instance.realization_spread", 0.2)

	v.SetDefault("solver.time_limit", 0.0)
	v.SetDefault("solver.name", cp.SolverName)
	v.SetDefault("solver.seed", 1)
	v.SetDefault("solver.max_iterations", 0)

	v.SetDefault("output.plotting", false)
	v.SetDefault("output.results_root", "./results/"+cp.SolverName)
	v.SetDefault("output.metrics_file", "")
	v.SetDefault("output.ledger_driver", "")
	v.SetDefault("output.ledger_dsn", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)
	v.SetDefault("logging.dir", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "shopbench")
}

// Default returns a configuration holding only default values
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// defaults always decode
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads the parameter file at path (TOML, YAML or JSON by extension),
// applies SHOPBENCH_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrInvalid, path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s: %v", ErrInvalid, path, err)
	}
	cfg.Source = path
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	switch strings.ToLower(strings.TrimSpace(c.Instance.StochObj)) {
	case "expectation":
		c.Instance.StochObj = string(cp.Expectation)
	case "var":
		c.Instance.StochObj = string(cp.ValueAtRisk)
	}
	c.Output.LedgerDriver = strings.ToLower(strings.TrimSpace(c.Output.LedgerDriver))
}

// Validate checks every field once, including the requirements that only
// apply to stochastic runs
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Instance.ProblemInstance) == "" {
		problems = append(problems, "instance.problem_instance is required")
	}
	if t := c.Solver.TimeLimit; !(t > 0) || math.IsInf(t, 0) {
		problems = append(problems, fmt.Sprintf("solver.time_limit must be a positive finite number of seconds (got %v)", t))
	}
	if c.Solver.MaxIterations < 0 {
		problems = append(problems, "solver.max_iterations must be >= 0")
	}
	if strings.TrimSpace(c.Solver.Name) == "" || strings.ContainsAny(c.Solver.Name, `/\`) {
		problems = append(problems, fmt.Sprintf("solver.name %q is not a valid path segment", c.Solver.Name))
	}
	if s := c.Instance.RealizationSpread; s < 0 || s >= 1 {
		problems = append(problems, fmt.Sprintf("instance.realization_spread must be in [0,1) (got %v)", s))
	}

	if c.Instance.Stoch {
		if c.Instance.NumRealizations <= 0 {
			problems = append(problems, fmt.Sprintf("instance.num_realizations must be > 0 for stochastic runs (got %d)", c.Instance.NumRealizations))
		}
		switch cp.ObjectiveKind(c.Instance.StochObj) {
		case cp.Expectation:
		case cp.ValueAtRisk:
			if a := c.Instance.VaRAlpha; !(a > 0 && a < 1) {
				problems = append(problems, fmt.Sprintf("instance.VaR_alpha must be in (0,1) (got %v)", a))
			}
		case "":
			problems = append(problems, "instance.stoch_obj is required for stochastic runs")
		default:
			problems = append(problems, fmt.Sprintf("instance.stoch_obj must be expectation or VaR (got %q)", c.Instance.StochObj))
		}
	}

	switch c.Output.LedgerDriver {
	case "", "memory", "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("output.ledger_driver must be sqlite, postgres or memory (got %q)", c.Output.LedgerDriver))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Objective returns the stochastic objective of the run
func (c *Config) Objective() cp.Objective {
	obj := cp.Objective{Kind: cp.ObjectiveKind(c.Instance.StochObj)}
	if obj.Kind == cp.ValueAtRisk {
		obj.Alpha = c.Instance.VaRAlpha
	}
	return obj
}
