package experiment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/psantana5/shopbench/internal/report"
	"github.com/psantana5/shopbench/pkg/config"
	"github.com/psantana5/shopbench/pkg/cp"
	"github.com/psantana5/shopbench/pkg/formulation"
	"github.com/psantana5/shopbench/pkg/gantt"
	"github.com/psantana5/shopbench/pkg/instance"
	"github.com/psantana5/shopbench/pkg/logging"
	"github.com/psantana5/shopbench/pkg/models"
	"github.com/psantana5/shopbench/pkg/store"
	"github.com/psantana5/shopbench/pkg/tracing"
)

// Loader reads scheduling environments
type Loader interface {
	Load(id string) (*models.Environment, error)
	LoadStochastic(id string, n int) ([]*models.Environment, error)
}

// Plotter renders the schedule of one environment
type Plotter interface {
	Draw(env *models.Environment) error
}

// Deterministic builds and reads back a single-environment model
type Deterministic interface {
	Build(env *models.Environment) (*cp.Model, cp.VariableIndex, error)
	Update(env *models.Environment, idx cp.VariableIndex, out cp.Outcome) (*models.Environment, *formulation.Summary, error)
}

// Stochastic builds and reads back one joint model over all realizations
type Stochastic interface {
	Build(envs []*models.Environment, objective cp.Objective) (*cp.Model, cp.VariableIndex, error)
	Update(envs []*models.Environment, idx cp.VariableIndex, out cp.Outcome, objective cp.Objective) ([]*models.Environment, *formulation.StochasticSummary, error)
}

// Formulations maps every variant to its model builder
type Formulations struct {
	JSP   Deterministic
	FJSP  Deterministic
	SDST  Deterministic
	Stoch Stochastic
}

// DefaultFormulations returns the built-in formulations
func DefaultFormulations() Formulations {
	return Formulations{
		JSP:   formulation.JSP{},
		FJSP:  formulation.FJSP{},
		SDST:  formulation.FJSPSDST{},
		Stoch: formulation.FJSPStoch{},
	}
}

// Result is what one run produced
type Result struct {
	RunID        string
	ExperimentID string
	Variant      Variant
	Path         string
	Status       cp.Status
	Objective    *float64
	Summary      formulation.Report
	Environments []*models.Environment
}

// Runner executes experiments. Nil collaborators are derived from the
// configuration of each run.
type Runner struct {
	Loader       Loader
	Solver       SolverAdapter
	Formulations Formulations
	Plotter      Plotter
	Sink         Sink
	Ledger       store.Store
	Metrics      *report.Metrics
	Tracer       *tracing.Provider
	Logger       *logging.Logger

	// Host is recorded in the ledger; defaults to the hostname
	Host string
}

// NewRunner creates a runner with the built-in formulations
func NewRunner(logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		Formulations: DefaultFormulations(),
		Logger:       logger,
	}
}

// Run executes one experiment: classify, build, solve, update, plot and
// persist. Configuration and classification errors are returned before
// anything is loaded or written. A persistence failure returns the computed
// result together with the error.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no configuration", config.ErrInvalid)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id := IDFromConfig(cfg)
	ctx, span := r.startSpan(ctx, "experiment.run",
		attribute.String("experiment.id", id),
		attribute.String("experiment.instance", cfg.Instance.ProblemInstance),
		attribute.Float64("solver.time_limit", cfg.Solver.TimeLimit),
	)
	defer span.End()

	variant, err := r.classify(ctx, cfg)
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("experiment.variant", string(variant)))
	logger := r.logger().WithFields(logging.Fields{
		"experiment": id,
		"variant":    string(variant),
	})
	logger.Info("Instance classified", logging.Fields{"instance": cfg.Instance.ProblemInstance})

	started := time.Now()
	res := &Result{ExperimentID: id, Variant: variant}
	switch variant {
	case FJSPSDST:
		err = r.runDeterministic(ctx, cfg, r.Formulations.SDST, res, logger)
	case FJSPDet:
		err = r.runDeterministic(ctx, cfg, r.Formulations.FJSP, res, logger)
	case JSPOrFSP:
		err = r.runDeterministic(ctx, cfg, r.Formulations.JSP, res, logger)
	case FJSPStoch:
		err = r.runStochastic(ctx, cfg, r.Formulations.Stoch, res, logger)
	default:
		err = fmt.Errorf("%w: unhandled variant %q", ErrClassification, variant)
	}
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	header := res.Summary.Stats()
	res.Status = header.Status
	res.Objective = header.ObjValue

	persistCtx, persistSpan := r.startSpan(ctx, "experiment.persist")
	res.Path, err = r.sink(cfg).Write(id, res.Summary)
	if err != nil {
		tracing.SetError(persistCtx, err)
		persistSpan.End()
		tracing.SetError(ctx, err)
		logger.Error("Failed to persist results", logging.Fields{"error": err.Error()})
		return res, err
	}
	persistSpan.End()
	logger.Info("Results persisted", logging.Fields{"status": res.Status.String(), "path": res.Path})

	record := &report.Record{
		ExperimentID: id,
		Variant:      string(variant),
		Status:       res.Status.String(),
		Objective:    res.Objective,
		Solutions:    header.SolutionCount,
		TimeLimit:    cfg.Solver.TimeLimit,
		WallTime:     time.Since(started),
		ResultPath:   res.Path,
	}
	if variant.Stochastic() {
		record.Realizations = cfg.Instance.NumRealizations
	}
	res.RunID = r.recordRun(cfg, record, logger)
	record.RunID = res.RunID
	if r.Metrics != nil {
		r.Metrics.RecordResult(record)
	}
	span.SetAttributes(attribute.String("solver.status", record.Status))
	record.LogSummary(r.logger())
	return res, nil
}

func (r *Runner) runDeterministic(ctx context.Context, cfg *config.Config, f Deterministic, res *Result, logger *logging.Logger) error {
	if f == nil {
		return fmt.Errorf("no formulation registered for %s", res.Variant)
	}
	loadCtx, loadSpan := r.startSpan(ctx, "experiment.load")
	env, err := r.loader(cfg).Load(cfg.Instance.ProblemInstance)
	if err != nil {
		err = fmt.Errorf("failed to load instance: %w", err)
		tracing.SetError(loadCtx, err)
		loadSpan.End()
		return err
	}
	loadSpan.End()
	logger.Info("Instance loaded", logging.Fields{
		"jobs":       len(env.Jobs),
		"machines":   env.NumMachines,
		"operations": env.NumOperations(),
	})

	buildCtx, buildSpan := r.startSpan(ctx, "experiment.build")
	model, idx, err := f.Build(env)
	if err != nil {
		err = fmt.Errorf("failed to build model: %w", err)
		tracing.SetError(buildCtx, err)
		buildSpan.End()
		return err
	}
	buildSpan.End()
	logger.Info("Model built", logging.Fields{"tasks": model.NumTasks()})

	out, err := r.solve(ctx, cfg, model, logger)
	if err != nil {
		return err
	}

	updateCtx, updateSpan := r.startSpan(ctx, "experiment.update")
	env, summary, err := f.Update(env, idx, out)
	if err != nil {
		err = fmt.Errorf("failed to update environment: %w", err)
		tracing.SetError(updateCtx, err)
		updateSpan.End()
		return err
	}
	updateSpan.End()
	logger.Info("Environment updated", logging.Fields{"status": out.Status.String(), "makespan": env.Makespan()})
	res.Summary = summary
	res.Environments = []*models.Environment{env}

	if cfg.Output.Plotting {
		r.plot(ctx, []*models.Environment{env}, out.Status, logger)
	}
	return nil
}

func (r *Runner) runStochastic(ctx context.Context, cfg *config.Config, f Stochastic, res *Result, logger *logging.Logger) error {
	if f == nil {
		return fmt.Errorf("no formulation registered for %s", res.Variant)
	}
	loadCtx, loadSpan := r.startSpan(ctx, "experiment.load",
		attribute.Int("realizations", cfg.Instance.NumRealizations),
	)
	envs, err := r.loader(cfg).LoadStochastic(cfg.Instance.ProblemInstance, cfg.Instance.NumRealizations)
	if err == nil && len(envs) != cfg.Instance.NumRealizations {
		err = fmt.Errorf("loader returned %d realizations, expected %d", len(envs), cfg.Instance.NumRealizations)
	}
	if err != nil {
		err = fmt.Errorf("failed to load realizations: %w", err)
		tracing.SetError(loadCtx, err)
		loadSpan.End()
		return err
	}
	loadSpan.End()
	logger.Info("Realizations loaded", logging.Fields{"realizations": len(envs)})

	objective := cfg.Objective()
	buildCtx, buildSpan := r.startSpan(ctx, "experiment.build",
		attribute.Int("realizations", len(envs)),
		attribute.String("objective", string(objective.Kind)),
	)
	model, idx, err := f.Build(envs, objective)
	if err != nil {
		err = fmt.Errorf("failed to build model: %w", err)
		tracing.SetError(buildCtx, err)
		buildSpan.End()
		return err
	}
	buildSpan.End()
	logger.Info("Model built", logging.Fields{"tasks": model.NumTasks(), "scenarios": model.NumScenarios()})

	out, err := r.solve(ctx, cfg, model, logger)
	if err != nil {
		return err
	}

	updateCtx, updateSpan := r.startSpan(ctx, "experiment.update",
		attribute.Int("realizations", len(envs)),
	)
	envs, summary, err := f.Update(envs, idx, out, objective)
	if err != nil {
		err = fmt.Errorf("failed to update environments: %w", err)
		tracing.SetError(updateCtx, err)
		updateSpan.End()
		return err
	}
	updateSpan.End()
	logger.Info("Environments updated", logging.Fields{"status": out.Status.String(), "realizations": len(envs)})
	res.Summary = summary
	res.Environments = envs

	if cfg.Output.Plotting {
		r.plot(ctx, envs, out.Status, logger)
	}
	return nil
}

func (r *Runner) classify(ctx context.Context, cfg *config.Config) (Variant, error) {
	ctx, span := r.startSpan(ctx, "experiment.classify",
		attribute.Bool("instance.stoch", cfg.Instance.Stoch),
	)
	defer span.End()

	variant, err := Classify(cfg.Instance.ProblemInstance, cfg.Instance.Stoch)
	if err == nil && cfg.Instance.Stoch && !variant.Stochastic() {
		err = fmt.Errorf("%w: instance.stoch is only supported for flexible job shops (%s is %s)",
			config.ErrInvalid, cfg.Instance.ProblemInstance, variant)
	}
	if err != nil {
		tracing.SetError(ctx, err)
		return "", err
	}
	span.SetAttributes(attribute.String("experiment.variant", string(variant)))
	return variant, nil
}

func (r *Runner) solve(ctx context.Context, cfg *config.Config, model *cp.Model, logger *logging.Logger) (cp.Outcome, error) {
	ctx, span := r.startSpan(ctx, "experiment.solve",
		attribute.Int("model.tasks", model.NumTasks()),
		attribute.Int("model.scenarios", model.NumScenarios()),
	)
	defer span.End()

	out, err := Solve(ctx, r.solver(cfg), model, cfg.Solver.TimeLimit)
	if err != nil {
		tracing.SetError(ctx, err)
		return out, err
	}
	span.SetAttributes(
		attribute.String("solver.status", out.Status.String()),
		attribute.Int("solver.solutions", out.SolutionCount),
	)
	logger.Info("Model solved", logging.Fields{
		"status":    out.Status.String(),
		"solutions": out.SolutionCount,
	})
	return out, nil
}

// plot draws one chart per environment. Failures never fail the run.
func (r *Runner) plot(ctx context.Context, envs []*models.Environment, status cp.Status, logger *logging.Logger) {
	ctx, span := r.startSpan(ctx, "experiment.plot", attribute.Int("charts", len(envs)))
	defer span.End()

	plotter := r.Plotter
	if plotter == nil {
		plotter = gantt.NewTableRenderer(os.Stdout)
	}
	drawn := 0
	for _, env := range envs {
		if err := plotter.Draw(env); err != nil {
			tracing.SetError(ctx, err)
			logger.Warn("Failed to render schedule", logging.Fields{
				"environment": env.Name,
				"realization": env.Realization,
				"error":       err.Error(),
			})
			continue
		}
		drawn++
	}
	logger.Info("Schedules plotted", logging.Fields{"status": status.String(), "charts": drawn})
}

// recordRun appends the run to the ledger and returns its ID. Ledger failures
// are logged; the result file is already in place.
func (r *Runner) recordRun(cfg *config.Config, rec *report.Record, logger *logging.Logger) string {
	if r.Ledger == nil {
		return ""
	}
	host := r.Host
	if host == "" {
		host, _ = os.Hostname()
	}
	run := &store.Run{
		ExperimentID: rec.ExperimentID,
		Instance:     cfg.Instance.ProblemInstance,
		Variant:      rec.Variant,
		Status:       rec.Status,
		Objective:    rec.Objective,
		TimeLimit:    rec.TimeLimit,
		WallSeconds:  rec.WallTime.Seconds(),
		ResultPath:   rec.ResultPath,
		Host:         host,
	}
	if err := r.Ledger.RecordRun(run); err != nil {
		logger.Warn("Failed to record run in ledger", logging.Fields{"error": err.Error()})
		return ""
	}
	return run.ID
}

func (r *Runner) loader(cfg *config.Config) Loader {
	if r.Loader != nil {
		return r.Loader
	}
	return instance.NewFileLoader(cfg.Instance.DataRoot, cfg.Instance.RealizationSpread, cfg.Instance.RealizationSeed)
}

func (r *Runner) solver(cfg *config.Config) SolverAdapter {
	if r.Solver != nil {
		return r.Solver
	}
	return cp.NewSolver(cfg.Solver.Seed, cfg.Solver.MaxIterations)
}

func (r *Runner) sink(cfg *config.Config) Sink {
	if r.Sink != nil {
		return r.Sink
	}
	return NewMaterializer(cfg.Output.ResultsRoot)
}

func (r *Runner) logger() *logging.Logger {
	if r.Logger == nil {
		return logging.Discard()
	}
	return r.Logger
}

func (r *Runner) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if r.Tracer == nil {
		return ctx, noop.Span{}
	}
	return r.Tracer.StartSpan(ctx, name, attrs...)
}

// IsConfigError reports whether err was raised before any work started
func IsConfigError(err error) bool {
	return errors.Is(err, config.ErrInvalid) ||
		errors.Is(err, config.ErrMissingConfig) ||
		errors.Is(err, ErrClassification)
}
