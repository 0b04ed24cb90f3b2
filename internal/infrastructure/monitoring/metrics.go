// Package monitoring provides Prometheus metrics and OpenTelemetry tracing
// for the meal-plan pipeline.
package monitoring

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsCollector owns every collector the service exports. All collectors
// register against the injected registry, so tests can construct isolated
// instances without tripping duplicate-registration panics.
type MetricsCollector struct {
	registry *prometheus.Registry
	logger   *zap.Logger

	// HTTP surface
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpActiveRequests  prometheus.Gauge

	// Plan pipeline
	planRunsTotal      *prometheus.CounterVec
	planDuration       *prometheus.HistogramVec
	phaseDuration      *prometheus.HistogramVec
	ingredientOutcomes *prometheus.CounterVec
	solverRuns         *prometheus.CounterVec
	ledgerVerdicts     *prometheus.CounterVec

	// Upstream calls
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec

	// Cache and rate limiting
	cacheLookups   *prometheus.CounterVec
	bucketWaits    *prometheus.HistogramVec
	bucketRefusals *prometheus.CounterVec

	uptimeSeconds prometheus.Counter
}

// NewMetricsCollector creates a collector bound to reg. A nil registry gets
// a fresh private one, which keeps unit tests hermetic.
func NewMetricsCollector(reg *prometheus.Registry, logger *zap.Logger) *MetricsCollector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &MetricsCollector{
		registry: reg,
		logger:   logger,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpActiveRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_active_requests",
				Help: "Number of HTTP requests currently in flight",
			},
		),

		planRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plan_runs_total",
				Help: "Total number of plan generation runs by terminal status",
			},
			[]string{"status"},
		),
		planDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plan_run_duration_seconds",
				Help:    "End-to-end plan generation duration in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 90, 120, 180},
			},
			[]string{"status"},
		),
		phaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plan_phase_duration_seconds",
				Help:    "Duration of individual pipeline phases in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"phase"},
		),
		ingredientOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plan_ingredient_outcomes_total",
				Help: "Ingredient sourcing outcomes by kind",
			},
			[]string{"outcome"},
		),
		solverRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solver_runs_total",
				Help: "Solver completions by result label",
			},
			[]string{"label"},
		),
		ledgerVerdicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_verdicts_total",
				Help: "Ledger verification verdicts",
			},
			[]string{"verdict"},
		),

		upstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_requests_total",
				Help: "Upstream HTTP requests by source and status",
			},
			[]string{"source", "status"},
		),
		upstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_request_duration_seconds",
				Help:    "Upstream HTTP request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source"},
		),

		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_lookups_total",
				Help: "Cache lookups by cache name and freshness status",
			},
			[]string{"cache", "status"},
		),
		bucketWaits: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "market_bucket_wait_seconds",
				Help:    "Time spent waiting for a market token-bucket slot",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"store"},
		),
		bucketRefusals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_bucket_refusals_total",
				Help: "Admissions refused before a token could be taken",
			},
			[]string{"store"},
		),

		uptimeSeconds: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "uptime_seconds_total",
				Help: "Total uptime in seconds",
			},
		),
	}
}

// Registry exposes the backing registry so the container can attach the
// standard go and process collectors.
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the scrape endpoint for this collector's registry.
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware records request counts, durations, and in-flight gauge for
// every route. The path label uses the chi route pattern when one matched,
// so /api/v2/plan/123 and /api/v2/plan/456 share a series.
func (m *MetricsCollector) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.httpActiveRequests.Inc()
			defer m.httpActiveRequests.Dec()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}
			m.httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
			m.httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// statusRecorder captures the response status for the metrics labels.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.status = code
		r.written = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.written = true
	return r.ResponseWriter.Write(b)
}

// Flush lets streaming handlers keep flushing through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// RecordPlanRun records one terminal pipeline outcome.
func (m *MetricsCollector) RecordPlanRun(status string, duration time.Duration) {
	m.planRunsTotal.WithLabelValues(status).Inc()
	m.planDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordPhase records the duration of a single pipeline phase.
func (m *MetricsCollector) RecordPhase(phase string, duration time.Duration) {
	m.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordIngredientOutcome counts one sourcing outcome (discovery, hot hit,
// canonical fallback, and so on).
func (m *MetricsCollector) RecordIngredientOutcome(outcome string) {
	m.ingredientOutcomes.WithLabelValues(outcome).Inc()
}

// RecordSolverRun counts one solver completion under its result label.
func (m *MetricsCollector) RecordSolverRun(label string) {
	m.solverRuns.WithLabelValues(label).Inc()
}

// RecordLedgerVerdict counts one ledger verification result.
func (m *MetricsCollector) RecordLedgerVerdict(ok bool) {
	verdict := "ok"
	if !ok {
		verdict = "violated"
	}
	m.ledgerVerdicts.WithLabelValues(verdict).Inc()
}

// RecordUpstreamRequest records one call to an external API.
func (m *MetricsCollector) RecordUpstreamRequest(source, status string, duration time.Duration) {
	m.upstreamRequests.WithLabelValues(source, status).Inc()
	m.upstreamDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordCacheLookup records one cache lookup under its freshness status
// (fresh, stale, miss, refresh, error).
func (m *MetricsCollector) RecordCacheLookup(cache, status string) {
	m.cacheLookups.WithLabelValues(cache, status).Inc()
}

// RecordBucketWait records how long an admission waited for a token.
func (m *MetricsCollector) RecordBucketWait(store string, wait time.Duration) {
	m.bucketWaits.WithLabelValues(store).Observe(wait.Seconds())
}

// RecordBucketRefusal counts one admission refused at the deadline.
func (m *MetricsCollector) RecordBucketRefusal(store string) {
	m.bucketRefusals.WithLabelValues(store).Inc()
}

// Transport wraps base with upstream request metrics for the given source.
// A nil base falls back to http.DefaultTransport. The wrapper is safe to
// stack under otelhttp.NewTransport.
func (m *MetricsCollector) Transport(source string, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &metricsTransport{source: source, base: base, metrics: m}
}

// InstrumentTransport wraps base with upstream metrics when m is non-nil.
// Nil-safe on both arguments so fixtures can skip instrumentation.
func InstrumentTransport(m *MetricsCollector, source string, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if m == nil {
		return base
	}
	return m.Transport(source, base)
}

type metricsTransport struct {
	source  string
	base    http.RoundTripper
	metrics *MetricsCollector
}

func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	t.metrics.RecordUpstreamRequest(t.source, status, time.Since(start))
	return resp, err
}

// StartUptimeCounter ticks the uptime counter until ctx is cancelled.
func (m *MetricsCollector) StartUptimeCounter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.uptimeSeconds.Inc()
			}
		}
	}()
}
