// Package server exposes the planning pipeline over HTTP.
//
// Routes:
//   - POST /v1/plans runs the pipeline, optionally streaming NDJSON events
//   - GET /v1/plans lists stored plans, GET /v1/plans/{id} returns one
//   - GET /metrics serves Prometheus metrics
//   - GET /health/live, /health/ready, /health/startup and /healthz
//
// Shutdown fails readiness first and then drains in-flight runs.
package server

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/plansmith/internal/health"
	"github.com/felixgeelhaar/plansmith/internal/log"
	"github.com/felixgeelhaar/plansmith/internal/metrics"
	"github.com/felixgeelhaar/plansmith/internal/pipeline"
	"github.com/felixgeelhaar/plansmith/internal/plan"
	"github.com/felixgeelhaar/plansmith/internal/store"
)

// PlanStore is the subset of store.Store the API needs
type PlanStore interface {
	Save(ctx context.Context, p *plan.Plan) error
	Get(ctx context.Context, runID string) (*plan.Plan, error)
	List(ctx context.Context, limit int) ([]store.Summary, error)
}

// Server serves the plan API and health endpoints.
type Server struct {
	httpServer      *http.Server
	handler         http.Handler
	probeManager    *health.ProbeManager
	planner         *pipeline.Orchestrator
	store           PlanStore
	options         pipeline.Options
	logger          *log.Logger
	metrics         *metrics.Metrics
	inShutdown      atomic.Bool
	shutdownTimeout time.Duration
}

// Config holds server configuration.
type Config struct {
	// Address is the listen address (e.g., ":8080", "0.0.0.0:8080")
	Address string

	// ShutdownTimeout bounds connection draining. Defaults to 30 seconds.
	ShutdownTimeout time.Duration

	// ReadTimeout bounds reading a request. Defaults to 10 seconds.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a response and therefore a whole run.
	// Defaults to 10 minutes.
	WriteTimeout time.Duration

	// IdleTimeout defaults to 60 seconds.
	IdleTimeout time.Duration
}

// Dependencies are the collaborators of the server. Store, Logger, Metrics
// and Gatherer are optional.
type Dependencies struct {
	Probes  *health.ProbeManager
	Planner *pipeline.Orchestrator
	// Options are the defaults for every run; requests fill in the input
	Options  pipeline.Options
	Store    PlanStore
	Logger   *log.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// NewServer creates the HTTP server.
func NewServer(cfg Config, deps Dependencies) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.Probes == nil {
		deps.Probes = health.NewProbeManager("")
	}

	s := &Server{
		probeManager:    deps.Probes,
		planner:         deps.Planner,
		store:           deps.Store,
		options:         deps.Options,
		logger:          deps.Logger.With("component", "server"),
		metrics:         deps.Metrics,
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/plans", s.handleCreatePlan)
	mux.HandleFunc("GET /v1/plans", s.handleListPlans)
	mux.HandleFunc("GET /v1/plans/{id}", s.handleGetPlan)

	mux.HandleFunc("GET /health/live", s.handleLiveness)
	mux.HandleFunc("GET /health/ready", s.handleReadiness)
	mux.HandleFunc("GET /health/startup", s.handleStartup)
	mux.HandleFunc("GET /healthz", s.handleReadiness)

	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", metrics.HandlerFor(deps.Gatherer))
	} else {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	s.handler = s.instrument(mux)
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens and serves until the server is shut down. It returns
// http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	s.probeManager.MarkInitialized()
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown fails readiness, stops keep-alives and waits for in-flight runs
// up to the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.probeManager.MarkShutdown()
	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down", "timeout", s.shutdownTimeout)
	return s.httpServer.Shutdown(shutdownCtx)
}

// IsShuttingDown returns whether the server is shutting down.
func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}

// statusRecorder captures the response code for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps NDJSON streaming working through the recorder
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordHTTP(route, strconv.Itoa(rec.status))
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
