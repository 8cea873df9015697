package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/psantana5/shopbench/internal/experiment"
	"github.com/psantana5/shopbench/internal/report"
	"github.com/psantana5/shopbench/pkg/config"
	"github.com/psantana5/shopbench/pkg/hardware"
	"github.com/psantana5/shopbench/pkg/logging"
	"github.com/psantana5/shopbench/pkg/shutdown"
	"github.com/psantana5/shopbench/pkg/store"
	"github.com/psantana5/shopbench/pkg/tracing"
)

const version = "0.3.0"

// session owns the long-lived collaborators of one command invocation
type session struct {
	cfg      *config.Config
	logger   *logging.Logger
	runner   *experiment.Runner
	metrics  *report.Metrics
	ledger   store.Store
	shutdown *shutdown.Manager
}

// newSession wires logging, tracing, the ledger and metrics around a runner
// according to cfg. close must be called when the command is done.
func newSession(ctx context.Context, cfg *config.Config) (*session, error) {
	logger, err := runLogger(cfg)
	if err != nil {
		return nil, err
	}
	s := &session{
		cfg:      cfg,
		logger:   logger,
		metrics:  report.NewMetrics(),
		shutdown: shutdown.New(10*time.Second, logger),
	}

	tracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    "experiment",
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		s.close()
		return nil, err
	}
	s.shutdown.Register(tracer.Shutdown)

	if cfg.Output.LedgerDriver != "" {
		s.ledger, err = store.NewStore(ctx, store.Config{
			Type: cfg.Output.LedgerDriver,
			DSN:  cfg.Output.LedgerDSN,
		})
		if err != nil {
			s.close()
			return nil, fmt.Errorf("failed to open %s ledger: %w", cfg.Output.LedgerDriver, err)
		}
		s.shutdown.Register(shutdown.CloseResource(s.ledger, "ledger"))
	}

	host := hardware.Detect()
	logger.Debug("Host detected", logging.Fields{
		"cpu":     host.CPUModel,
		"threads": host.CPUThreads,
		"ram_gb":  fmt.Sprintf("%.1f", host.RAMGB()),
	})

	s.runner = experiment.NewRunner(logger)
	s.runner.Metrics = s.metrics
	s.runner.Tracer = tracer
	s.runner.Ledger = s.ledger
	s.runner.Host = host.Hostname
	return s, nil
}

// close flushes metrics and releases resources in reverse order
func (s *session) close() {
	if s.cfg.Output.MetricsFile != "" {
		if err := s.metrics.WriteTextfile(s.cfg.Output.MetricsFile); err != nil {
			s.logger.Warn("Failed to write metrics file", logging.Fields{"error": err.Error()})
		}
	}
	s.shutdown.Shutdown()
	s.logger.Close()
}
