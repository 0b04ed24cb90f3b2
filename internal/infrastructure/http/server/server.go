// Package server provides the HTTP server hosting the plan API with
// HTTP/2 cleartext support and brotli response compression.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/internal/infrastructure/http/handlers"
	"github.com/macrocart/v2/internal/infrastructure/http/middleware"
	"github.com/macrocart/v2/internal/infrastructure/monitoring"
	"github.com/macrocart/v2/internal/ports/inbound"
	"github.com/macrocart/v2/pkg/healthcheck"
)

// Server represents the HTTP server
type Server struct {
	config  *config.Config
	logger  *zap.Logger
	router  *chi.Mux
	server  *http.Server
	mw      *middleware.Middleware
	planner inbound.PlannerService
	health  *healthcheck.HealthCheck
	metrics *monitoring.MetricsCollector

	cleanupCancel context.CancelFunc
}

// New creates the HTTP server with its full middleware chain and routes
func New(
	cfg *config.Config,
	plannerService inbound.PlannerService,
	health *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
	logger *zap.Logger,
) *Server {
	s := &Server{
		config:  cfg,
		logger:  logger.Named("http-server"),
		mw:      middleware.New(cfg, logger),
		planner: plannerService,
		health:  health,
		metrics: metrics,
	}

	s.router = s.buildRouter()

	var handler http.Handler = s.router
	if cfg.Server.EnableH2C {
		handler = h2c.NewHandler(s.router, &http2.Server{})
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.mw.RequestID())
	r.Use(chimiddleware.RealIP)
	if s.metrics != nil {
		r.Use(s.metrics.HTTPMiddleware())
	}
	r.Use(s.mw.Logger())
	r.Use(s.mw.Recovery())
	r.Use(s.mw.Security())
	r.Use(s.mw.RateLimit())
	if s.config.Server.EnableCompression {
		r.Use(newCompressor().Handler)
	}

	if s.health != nil {
		r.Get(s.config.Monitoring.HealthCheckPath, s.health.Handler())
		r.Get(s.config.Monitoring.LivenessPath, s.health.LivenessHandler())
		r.Get(s.config.Monitoring.ReadinessPath, s.health.ReadinessHandler())
	}
	if s.metrics != nil && s.config.Monitoring.EnableMetrics {
		r.Method(http.MethodGet, s.config.Monitoring.MetricsPath, s.metrics.Handler())
	}

	planHandlers := handlers.NewPlanHandlers(s.planner, s.metrics, s.logger)
	r.Route("/api/v2", func(r chi.Router) {
		r.Post("/plan", planHandlers.HandleGeneratePlan)
		r.Post("/plan/stream", planHandlers.HandleStreamPlan)
	})

	return r
}

// newCompressor builds the response compressor with brotli preferred
// over the stock gzip and deflate encoders. Only JSON responses are
// compressed; the NDJSON stream stays uncompressed so entries flush
// line by line.
func newCompressor() *chimiddleware.Compressor {
	compressor := chimiddleware.NewCompressor(5, "application/json")
	compressor.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})
	return compressor
}

// Router exposes the handler tree for tests and h2c wrapping
func (s *Server) Router() http.Handler {
	return s.router
}

// Addr reports the listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	cleanupCtx, cancel := context.WithCancel(context.Background())
	s.cleanupCancel = cancel
	s.mw.StartCleanup(cleanupCtx)

	s.logger.Info("Starting HTTP server",
		zap.String("address", s.server.Addr),
		zap.Bool("h2c", s.config.Server.EnableH2C),
		zap.Bool("compression", s.config.Server.EnableCompression),
	)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server within the configured timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if s.cleanupCancel != nil {
		s.cleanupCancel()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}
