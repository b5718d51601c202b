package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plansmith/internal/health"
	"github.com/felixgeelhaar/plansmith/internal/metrics"
	"github.com/felixgeelhaar/plansmith/internal/pipeline"
	"github.com/felixgeelhaar/plansmith/internal/server"
	"github.com/felixgeelhaar/plansmith/internal/store"
	"github.com/felixgeelhaar/plansmith/internal/version"
)

func newServeCmd() *cobra.Command {
	var (
		addr    string
		noStore bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the planning pipeline over HTTP",
		Long: `Start an HTTP server that runs the planning pipeline.

Endpoints:
  POST /v1/plans       - run the pipeline ({"input": "...", "stream": true} streams NDJSON events)
  GET  /v1/plans       - list saved plans
  GET  /v1/plans/{id}  - fetch a saved plan (?format=json|yaml|toml)
  /health/live         - Liveness probe (process alive and responsive)
  /health/ready        - Readiness probe (ready to accept traffic)
  /health/startup      - Startup probe (finished initialization)
  /healthz             - Backward-compatible readiness endpoint
  /metrics             - Prometheus metrics

On SIGTERM or SIGINT the server fails readiness, stops accepting new runs
and waits for in-flight runs up to server.shutdown_timeout.`,
		Example: `  plansmith serve
  plansmith serve --addr :9090 --backend llm --provider openai`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, addr, noStore)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr, :8080)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not persist generated plans")
	return cmd
}

func runServe(cmd *cobra.Command, addr string, noStore bool) error {
	cc, err := newCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cc.Config
	if addr != "" {
		cfg.Server.Addr = addr
	}

	b, err := newBackend(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	info := version.GetInfo()
	probes := health.NewProbeManager(info.Version)

	var plans server.PlanStore
	if !noStore {
		s, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer s.Close()
		plans = s
		probes.AddChecker(health.NewStoreChecker(s))
	} else {
		probes.AddChecker(health.NewStoreChecker(nil))
	}
	if len(b.providers) > 0 {
		probes.AddChecker(health.NewProviderChecker(b.providers...))
	}

	registry, m := metrics.NewRegistry()
	planner := pipeline.NewOrchestrator(b)
	planner.SetLogger(cc.Logger.With("backend", b.name))
	planner.SetMetrics(m)

	srv := server.NewServer(server.Config{
		Address:         cfg.Server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
	}, server.Dependencies{
		Probes:   probes,
		Planner:  planner,
		Options:  cfg.Pipeline,
		Store:    plans,
		Logger:   cc.Logger,
		Metrics:  m,
		Gatherer: registry,
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "plansmith %s (backend %s)\n", info.Short(), b.name)
	fmt.Fprintf(out, "Listening on: http://%s\n", cfg.Server.Addr)
	fmt.Fprintf(out, "  Plans:     POST http://%s/v1/plans\n", cfg.Server.Addr)
	fmt.Fprintf(out, "  Readiness: http://%s/health/ready\n", cfg.Server.Addr)
	fmt.Fprintf(out, "  Metrics:   http://%s/metrics\n", cfg.Server.Addr)
	fmt.Fprintf(out, "Press Ctrl+C to stop the server\n\n")

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-cmd.Context().Done():
		fmt.Fprintln(out, "Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), cfg.Server.ShutdownTimeout+5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		fmt.Fprintln(out, "Server stopped gracefully")
		return nil
	}
}
