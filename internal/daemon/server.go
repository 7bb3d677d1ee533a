package daemon

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/replicode-ai/replicode/internal/analysis"
	"github.com/replicode-ai/replicode/internal/config"
	"github.com/replicode-ai/replicode/internal/llm/configbuilder"
	"github.com/replicode-ai/replicode/internal/observability"
	"github.com/replicode-ai/replicode/internal/replication"
	analysisrpc "github.com/replicode-ai/replicode/internal/rpc/analysis"
	replicationrpc "github.com/replicode-ai/replicode/internal/rpc/replication"
	"github.com/replicode-ai/replicode/internal/sandbox"
)

// Server hosts the replication daemon: health/metrics plus the replication
// and analysis RPC surfaces.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	runner   replicationrpc.Runner
	analyzer *analysis.Analyzer
	metrics  *observability.Metrics
}

// NewServer constructs a daemon instance from configuration.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	registry, err := configbuilder.BuildRegistryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	executor, err := sandbox.New(cfg.Sandbox)
	if err != nil {
		return nil, fmt.Errorf("build sandbox executor: %w", err)
	}

	metrics := observability.NewMetrics()
	generator := replication.NewGenerator(registry, cfg.Replication)
	judge := replication.NewJudge(registry, cfg.Replication)
	loop := replication.NewLoop(generator, &meteredExecutor{inner: executor, metrics: metrics}, judge, cfg.Replication, logger)
	strategy := replication.NewStrategyEngine(registry, cfg.Strategy)

	runner := &replicationrpc.LoopRunner{
		Loop:     loop,
		Strategy: strategy,
		Metrics:  metrics,
		Cfg:      cfg.Replication,
		Logger:   logger,
	}
	analyzer := analysis.NewAnalyzer(registry, strategy, cfg.Analysis)

	return &Server{cfg: cfg, logger: logger, runner: runner, analyzer: analyzer, metrics: metrics}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.Handle("/replication/schemas", replicationrpc.SchemaHandler{Cfg: s.cfg.Replication})

	analysisHandler := analysisrpc.NewHandler(s.analyzer, s.metrics)
	mux.HandleFunc("/analysis/feasibility", analysisHandler.Feasibility)
	mux.HandleFunc("/analysis/method", analysisHandler.Method)

	mux.Handle("/replication/run", replicationrpc.NewHandler(s.runner, s.metrics, s.logger))
	mux.Handle("/replication/run/stream", replicationrpc.NewStreamHandler(s.runner, s.metrics))

	transport := strings.ToLower(strings.TrimSpace(s.cfg.Server.Transport))
	handler := http.Handler(mux)
	if transport != "ndjson" {
		path, connectHandler := replicationrpc.NewConnectHandler(s.runner, s.metrics)
		mux.Handle(path, connectHandler)
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting replicode daemon", zap.String("addr", s.cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down replicode daemon")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.MetricsEnabled {
		http.NotFound(w, r)
		return
	}

	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// meteredExecutor wraps a sandbox executor with execution metrics.
type meteredExecutor struct {
	inner   sandbox.Executor
	metrics *observability.Metrics
}

func (m *meteredExecutor) Execute(ctx context.Context, code, language string) (sandbox.Result, error) {
	start := time.Now()
	res, err := m.inner.Execute(ctx, code, language)
	m.metrics.RecordSandboxExecution(err != nil || res.Failed(), time.Since(start))
	return res, err
}
