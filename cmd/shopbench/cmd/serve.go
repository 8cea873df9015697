package cmd

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/psantana5/shopbench/pkg/api"
	"github.com/psantana5/shopbench/pkg/auth"
	"github.com/psantana5/shopbench/pkg/logging"
	"github.com/psantana5/shopbench/pkg/ratelimit"
	"github.com/psantana5/shopbench/pkg/shutdown"
	tlsutil "github.com/psantana5/shopbench/pkg/tls"
	"github.com/psantana5/shopbench/pkg/tracing"
)

var (
	serveAddr       string
	serveCert       string
	serveKey        string
	serveCA         string
	serveSelfSigned string
	serveRate       float64
	serveBurst      int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run ledger over HTTP",
	Long: `Serve recorded runs, their result records and Prometheus metrics from the
ledger configured in --config_file. Requests other than /health require
"Authorization: Bearer <key>" when SHOPBENCH_API_KEY is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8090", "listen address")
	serveCmd.Flags().StringVar(&serveCert, "tls-cert", "", "TLS certificate file")
	serveCmd.Flags().StringVar(&serveKey, "tls-key", "", "TLS key file")
	serveCmd.Flags().StringVar(&serveCA, "tls-ca", "", "CA file; requires client certificates")
	serveCmd.Flags().StringVar(&serveSelfSigned, "self-signed", "", "generate a self-signed certificate into this directory")
	serveCmd.Flags().Float64Var(&serveRate, "rate", 20, "requests per second per client, 0 disables limiting")
	serveCmd.Flags().IntVar(&serveBurst, "burst", 40, "request burst per client")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgFile, consoleLogger())
	if err != nil || cfg == nil {
		return err
	}
	if cfg.Output.LedgerDriver == "" {
		cfg.Output.LedgerDriver = "memory"
	}

	ctx := commandContext(cmd)
	s, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	keys := auth.NewKeyring()
	if key := os.Getenv("SHOPBENCH_API_KEY"); key != "" {
		if err := keys.Add(key, "environment", 0); err != nil {
			return err
		}
	}

	router := mux.NewRouter()
	router.Use(tracing.HTTPMiddleware(s.runner.Tracer))
	router.Use(auth.Middleware(keys, "/health"))
	if serveRate > 0 {
		limiter := ratelimit.NewLimiter(serveRate, serveBurst)
		router.Use(limiter.Middleware(ratelimit.IPKeyFunc))
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					limiter.Cleanup(10 * time.Minute)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	api.NewResultsHandler(s.ledger, s.metrics, s.logger).RegisterRoutes(router)

	srv := &http.Server{
		Addr:         serveAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	files := tlsutil.Files{Cert: serveCert, Key: serveKey, CA: serveCA}
	if serveSelfSigned != "" {
		files.Cert = filepath.Join(serveSelfSigned, "server.crt")
		files.Key = filepath.Join(serveSelfSigned, "server.key")
		if err := tlsutil.GenerateSelfSignedCert(files.Cert, files.Key, "shopbench", 365*24*time.Hour); err != nil {
			return err
		}
		s.logger.Info("Generated self-signed certificate", logging.Fields{"cert": files.Cert})
	}
	if files.Enabled() {
		srv.TLSConfig, err = tlsutil.LoadServerConfig(files)
		if err != nil {
			return err
		}
	}

	stopped := shutdown.New(10*time.Second, s.logger)
	stopped.Register(shutdown.StopHTTPServer(srv, "results"))

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Results server listening", logging.Fields{
			"addr":   serveAddr,
			"tls":    files.Enabled(),
			"ledger": cfg.Output.LedgerDriver,
			"auth":   keys.Len() > 0,
		})
		var err error
		if files.Enabled() {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.logger.Error("Results server failed", logging.Fields{"error": err.Error()})
			return err
		}
		return nil
	case <-ctx.Done():
		stopped.Shutdown()
		return nil
	}
}
