package experiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/psantana5/shopbench/internal/report"
	"github.com/psantana5/shopbench/pkg/config"
	"github.com/psantana5/shopbench/pkg/cp"
	"github.com/psantana5/shopbench/pkg/instance"
	"github.com/psantana5/shopbench/pkg/logging"
	"github.com/psantana5/shopbench/pkg/models"
	"github.com/psantana5/shopbench/pkg/store"
	"github.com/psantana5/shopbench/pkg/tracing"
)

const jobShopInstance = `# 2 jobs, 2 machines
2 2
0 3 1 2
1 4 0 1
`

const flexibleInstance = `2 2 1.5
2 2 1 3 2 4 1 2 5
1 1 2 6
`

// countingLoader reads from disk and counts the environments it hands out
type countingLoader struct {
	inner *instance.FileLoader
	loads int
}

func (l *countingLoader) Load(id string) (*models.Environment, error) {
	env, err := l.inner.Load(id)
	if err == nil {
		l.loads++
	}
	return env, err
}

func (l *countingLoader) LoadStochastic(id string, n int) ([]*models.Environment, error) {
	envs, err := l.inner.LoadStochastic(id, n)
	l.loads += len(envs)
	return envs, err
}

type countingPlotter struct {
	drawn []*models.Environment
}

func (p *countingPlotter) Draw(env *models.Environment) error {
	p.drawn = append(p.drawn, env)
	return nil
}

type fixture struct {
	dataRoot    string
	resultsRoot string
	loader      *countingLoader
	plotter     *countingPlotter
	runner      *Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dataRoot:    filepath.Join(dir, "data"),
		resultsRoot: filepath.Join(dir, "results"),
		plotter:     &countingPlotter{},
	}
	f.writeInstance(t, "jsp/toy/ft02", jobShopInstance)
	f.writeInstance(t, "fjsp/toy/mk00.fjs", flexibleInstance)

	f.loader = &countingLoader{inner: instance.NewFileLoader(f.dataRoot, 0.3, 7)}
	f.runner = NewRunner(nil)
	f.runner.Loader = f.loader
	f.runner.Plotter = f.plotter
	return f
}

func (f *fixture) writeInstance(t *testing.T, id, content string) {
	t.Helper()
	path := filepath.Join(f.dataRoot, filepath.FromSlash(id))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func (f *fixture) config(id string, limit float64) *config.Config {
	cfg := config.Default()
	cfg.Instance.ProblemInstance = id
	cfg.Instance.DataRoot = f.dataRoot
	cfg.Solver.TimeLimit = limit
	cfg.Solver.MaxIterations = 5000
	cfg.Output.ResultsRoot = f.resultsRoot
	cfg.Output.Plotting = true
	return cfg
}

func stochastic(cfg *config.Config, n int, obj string, alpha float64) *config.Config {
	cfg.Instance.Stoch = true
	cfg.Instance.NumRealizations = n
	cfg.Instance.StochObj = obj
	cfg.Instance.VaRAlpha = alpha
	return cfg
}

func readResult(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestRunJobShopEndToEnd(t *testing.T) {
	f := newFixture(t)
	res, err := f.runner.Run(context.Background(), f.config("/jsp/toy/ft02", 5))
	require.NoError(t, err)

	assert.Equal(t, JSPOrFSP, res.Variant)
	assert.Equal(t, "cpls_5/jsp_toy_ft02", res.ExperimentID)
	assert.Equal(t, filepath.Join(f.resultsRoot, "cpls_5", "jsp_toy_ft02", ResultFile), res.Path)

	dirs, err := os.ReadDir(filepath.Join(f.resultsRoot, "cpls_5"))
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	assert.Equal(t, "jsp_toy_ft02", dirs[0].Name())

	doc := readResult(t, res.Path)
	assert.Equal(t, "OPTIMAL", doc["status"])
	assert.Equal(t, 6.0, doc["makespan"])
	assert.Equal(t, 5.0, doc["time_limit"])

	total := float64(res.Environments[0].TotalDuration())
	rows := doc["solution"].([]any)
	require.Len(t, rows, 4)
	for _, row := range rows {
		op := row.(map[string]any)
		for _, key := range []string{"start", "end"} {
			v := op[key].(float64)
			assert.GreaterOrEqual(t, v, 0.0, key)
			assert.LessOrEqual(t, v, total, key)
		}
	}
}

func TestRunFlexibleLoadsAndPlotsOnce(t *testing.T) {
	f := newFixture(t)
	res, err := f.runner.Run(context.Background(), f.config("/fjsp/toy/mk00.fjs", 0.3))
	require.NoError(t, err)

	assert.Equal(t, FJSPDet, res.Variant)
	assert.Equal(t, 1, f.loader.loads)
	assert.Len(t, f.plotter.drawn, 1)
}

func TestRunStochasticLoadsAndPlotsEveryRealization(t *testing.T) {
	f := newFixture(t)
	cfg := stochastic(f.config("/fjsp/toy/mk00.fjs", 0.3), 4, "VaR", 0.75)
	res, err := f.runner.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, FJSPStoch, res.Variant)
	assert.Equal(t, "cpls_0.3/stoch_4_VaR_75fjsp_toy_mk00.fjs", res.ExperimentID)
	assert.Equal(t, 4, f.loader.loads)
	require.Len(t, f.plotter.drawn, 4)

	realizations := make([]int, 0, 4)
	for _, env := range f.plotter.drawn {
		realizations = append(realizations, env.Realization)
	}
	sort.Ints(realizations)
	assert.Equal(t, []int{0, 1, 2, 3}, realizations)

	doc := readResult(t, res.Path)
	assert.Equal(t, "VaR", doc["stoch_obj"])
	assert.Equal(t, 0.75, doc["VaR_alpha"])
	assert.Len(t, doc["realizations"], 4)
}

func TestRunWithoutPlottingDrawsNothing(t *testing.T) {
	f := newFixture(t)
	cfg := stochastic(f.config("/fjsp/toy/mk00.fjs", 0.2), 3, "expectation", 0)
	cfg.Output.Plotting = false
	_, err := f.runner.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Empty(t, f.plotter.drawn)
}

func TestRunRejectsBadAlphaBeforeSolving(t *testing.T) {
	for _, alpha := range []float64{0, 1, 1.2, -0.1} {
		f := newFixture(t)
		solver := &stubSolver{status: cp.Optimal}
		f.runner.Solver = solver

		cfg := stochastic(f.config("/fjsp/toy/mk00.fjs", 5), 4, "VaR", alpha)
		_, err := f.runner.Run(context.Background(), cfg)
		assert.True(t, errors.Is(err, config.ErrInvalid), "alpha %v: got %v", alpha, err)
		assert.Zero(t, f.loader.loads)
		assert.Zero(t, solver.calls)
		assert.NoDirExists(t, f.resultsRoot)
	}
}

func TestRunRejectsBeforeLoading(t *testing.T) {
	f := newFixture(t)
	cases := map[string]*config.Config{
		"unclassifiable":   f.config("/openshop/x", 5),
		"stochastic jsp":   stochastic(f.config("/jsp/toy/ft02", 5), 3, "expectation", 0),
		"no time limit":    f.config("/jsp/toy/ft02", 0),
		"no realizations":  stochastic(f.config("/fjsp/toy/mk00.fjs", 5), 0, "expectation", 0),
		"missing instance": f.config("", 5),
	}
	for name, cfg := range cases {
		_, err := f.runner.Run(context.Background(), cfg)
		assert.True(t, IsConfigError(err), "%s: got %v", name, err)
	}
	_, err := f.runner.Run(context.Background(), nil)
	assert.True(t, IsConfigError(err))

	assert.Zero(t, f.loader.loads)
	assert.NoDirExists(t, f.resultsRoot)
}

func TestRunPersistsInfeasibleOutcome(t *testing.T) {
	f := newFixture(t)
	f.runner.Solver = &stubSolver{status: cp.Infeasible}

	res, err := f.runner.Run(context.Background(), f.config("/jsp/toy/ft02", 5))
	require.NoError(t, err)
	assert.Equal(t, cp.Infeasible, res.Status)
	assert.Nil(t, res.Objective)

	doc := readResult(t, res.Path)
	assert.Equal(t, "INFEASIBLE", doc["status"])
	assert.Nil(t, doc["objValue"])
	assert.Nil(t, doc["makespan"])
	assert.Empty(t, doc["solution"])
}

func TestRunSolverFaultIsFatal(t *testing.T) {
	f := newFixture(t)
	f.runner.Solver = &stubSolver{err: cp.ErrModelInvalid}

	_, err := f.runner.Run(context.Background(), f.config("/jsp/toy/ft02", 5))
	assert.True(t, errors.Is(err, ErrSolverFault), "got %v", err)
	assert.NoDirExists(t, f.resultsRoot)
}

func TestRerunOverwritesResult(t *testing.T) {
	f := newFixture(t)
	f.runner.Solver = &stubSolver{status: cp.Infeasible}
	cfg := f.config("/jsp/toy/ft02", 5)

	first, err := f.runner.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "INFEASIBLE", readResult(t, first.Path)["status"])

	f.runner.Solver = nil
	second, err := f.runner.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, "OPTIMAL", readResult(t, second.Path)["status"])

	entries, err := os.ReadDir(filepath.Dir(second.Path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunReturnsSummaryOnPersistFailure(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.resultsRoot, []byte("not a directory"), 0644))

	res, err := f.runner.Run(context.Background(), f.config("/jsp/toy/ft02", 5))
	assert.True(t, errors.Is(err, ErrPersist), "got %v", err)
	require.NotNil(t, res)
	require.NotNil(t, res.Summary)
	assert.Equal(t, cp.Optimal, res.Summary.Stats().Status)
	assert.Empty(t, res.Path)
}

func TestRunRecordsLedgerMetricsAndSpans(t *testing.T) {
	f := newFixture(t)
	ledger := store.NewMemoryStore()
	metrics := report.NewMetrics()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	f.runner.Ledger = ledger
	f.runner.Metrics = metrics
	f.runner.Tracer = tracing.NewProvider(tp, "test")

	res, err := f.runner.Run(context.Background(), f.config("/jsp/toy/ft02", 5))
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	run, err := ledger.GetRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.ExperimentID, run.ExperimentID)
	assert.Equal(t, "/jsp/toy/ft02", run.Instance)
	assert.Equal(t, "OPTIMAL", run.Status)
	assert.Equal(t, res.Path, run.ResultPath)

	count, err := testutil.GatherAndCount(metrics.Registry(), "shopbench_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Zero(t, metrics.Unsolved.Count())

	var names []string
	var root sdktrace.ReadOnlySpan
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
		if span.Name() == "experiment.run" {
			root = span
		}
	}
	assert.ElementsMatch(t, []string{
		"experiment.classify", "experiment.load", "experiment.build", "experiment.solve",
		"experiment.update", "experiment.plot", "experiment.persist", "experiment.run",
	}, names)
	require.NotNil(t, root)
	for _, span := range recorder.Ended() {
		if span != root && span.Parent().SpanID() != root.SpanContext().SpanID() {
			t.Errorf("span %s is not a child of experiment.run", span.Name())
		}
	}
}

func TestRunClassificationFailureEndsSpans(t *testing.T) {
	f := newFixture(t)
	recorder := tracetest.NewSpanRecorder()
	f.runner.Tracer = tracing.NewProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)), "test")

	_, err := f.runner.Run(context.Background(), f.config("/jsp/taillard/x.fjs", 5))
	if !errors.Is(err, ErrClassification) {
		t.Fatalf("expected ErrClassification, got %v", err)
	}

	ended := recorder.Ended()
	if len(ended) != 2 {
		t.Fatalf("expected classify and run spans, got %d spans", len(ended))
	}
	for _, span := range ended {
		if span.Status().Code != codes.Error {
			t.Errorf("span %s: expected error status, got %v", span.Name(), span.Status().Code)
		}
	}
	if f.loader.loads != 0 {
		t.Errorf("expected no load, got %d", f.loader.loads)
	}
}

func TestRunLogsEveryStep(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	f.runner.Logger = logging.NewLoggerTo(&buf, logging.INFO, true)

	res, err := f.runner.Run(context.Background(), f.config("/jsp/toy/ft02", 5))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	steps := map[string]bool{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry logging.LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		if entry.Fields["experiment"] == nil {
			continue
		}
		if entry.Fields["experiment"] != res.ExperimentID || entry.Fields["variant"] != string(JSPOrFSP) {
			t.Errorf("%s: unexpected fields %v", entry.Message, entry.Fields)
		}
		steps[entry.Message] = true
		switch entry.Message {
		case "Model solved", "Environment updated", "Schedules plotted", "Results persisted":
			if entry.Fields["status"] != "OPTIMAL" {
				t.Errorf("%s: expected status OPTIMAL, got %v", entry.Message, entry.Fields["status"])
			}
		}
	}
	for _, step := range []string{
		"Instance classified", "Instance loaded", "Model built", "Model solved",
		"Environment updated", "Schedules plotted", "Results persisted",
	} {
		if !steps[step] {
			t.Errorf("missing log line %q", step)
		}
	}
}
