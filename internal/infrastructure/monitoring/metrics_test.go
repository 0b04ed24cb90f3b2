package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/market"
	"github.com/macrocart/v2/internal/ports/inbound"
	apperrors "github.com/macrocart/v2/pkg/errors"
	"github.com/macrocart/v2/pkg/logger"
)

type MetricsTestSuite struct {
	suite.Suite
	collector *MetricsCollector
}

func (suite *MetricsTestSuite) SetupTest() {
	suite.collector = NewMetricsCollector(prometheus.NewRegistry(), zap.NewNop())
}

func (suite *MetricsTestSuite) TestHTTPMiddleware() {
	suite.Run("MatchedRoute_ShouldLabelWithRoutePattern", func() {
		collector := NewMetricsCollector(prometheus.NewRegistry(), zap.NewNop())
		router := chi.NewRouter()
		router.Use(collector.HTTPMiddleware())
		router.Get("/api/v2/plan/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/plan/abc123", nil))

		suite.Equal(http.StatusNoContent, rec.Code)
		count := testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues(
			http.MethodGet, "/api/v2/plan/{id}", "204"))
		suite.Equal(float64(1), count)
		suite.Equal(float64(0), testutil.ToFloat64(collector.httpActiveRequests))
	})

	suite.Run("ImplicitOK_ShouldRecordStatus200", func() {
		collector := NewMetricsCollector(prometheus.NewRegistry(), zap.NewNop())
		router := chi.NewRouter()
		router.Use(collector.HTTPMiddleware())
		router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		count := testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues(
			http.MethodGet, "/healthz", "200"))
		suite.Equal(float64(1), count)
	})
}

func (suite *MetricsTestSuite) TestTransport() {
	suite.Run("SuccessfulCall_ShouldRecordStatusCode", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		defer server.Close()

		client := &http.Client{Transport: suite.collector.Transport("market", nil)}
		resp, err := client.Get(server.URL)
		suite.Require().NoError(err)
		_ = resp.Body.Close()

		count := testutil.ToFloat64(suite.collector.upstreamRequests.WithLabelValues("market", "418"))
		suite.Equal(float64(1), count)
	})

	suite.Run("TransportError_ShouldRecordErrorStatus", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		client := &http.Client{Transport: suite.collector.Transport("barcode", nil)}
		_, err := client.Get(url)
		suite.Error(err)

		count := testutil.ToFloat64(suite.collector.upstreamRequests.WithLabelValues("barcode", "error"))
		suite.Equal(float64(1), count)
	})
}

func (suite *MetricsTestSuite) TestObservePlan() {
	suite.Run("SuccessfulRun_ShouldRecordOutcomesAndPhases", func() {
		base := time.Now()
		resp := &inbound.PlanResponse{
			Results: map[catalog.CID]market.ResolvedIngredient{
				"chicken_breast": {Outcome: market.OutcomeDiscovery},
				"rice_white":     {Outcome: market.OutcomeCanonicalFallback},
				"broccoli":       {Outcome: market.OutcomeCanonicalFallback},
			},
			ContractSatisfied: inbound.ContractVerdictDTO{OK: true},
			Logs: []logger.Entry{
				planEntry(base, "contract", "Contract built", nil),
				planEntry(base.Add(2*time.Second), "blueprint", "Blueprint validated", nil),
				planEntry(base.Add(5*time.Second), "market_run", "Market run complete", nil),
				planEntry(base.Add(6*time.Second), "solver", "Plan solved", map[string]interface{}{"label": "exact"}),
			},
		}

		suite.collector.ObservePlan(resp, 6*time.Second)

		suite.Equal(float64(1), testutil.ToFloat64(suite.collector.planRunsTotal.WithLabelValues("ok")))
		suite.Equal(float64(1), testutil.ToFloat64(suite.collector.solverRuns.WithLabelValues("exact")))
		suite.Equal(float64(1), testutil.ToFloat64(suite.collector.ledgerVerdicts.WithLabelValues("ok")))
		suite.Equal(float64(1), testutil.ToFloat64(suite.collector.ingredientOutcomes.WithLabelValues("discovery")))
		suite.Equal(float64(2), testutil.ToFloat64(suite.collector.ingredientOutcomes.WithLabelValues("canonical_fallback")))
		// Three gaps between four stamped events.
		suite.Equal(3, testutil.CollectAndCount(suite.collector.phaseDuration))
	})

	suite.Run("NilResponse_ShouldOnlyRecordRun", func() {
		collector := NewMetricsCollector(prometheus.NewRegistry(), zap.NewNop())
		collector.ObservePlan(nil, time.Second)

		suite.Equal(float64(1), testutil.ToFloat64(collector.planRunsTotal.WithLabelValues("ok")))
		suite.Equal(0, testutil.CollectAndCount(collector.phaseDuration))
	})
}

func (suite *MetricsTestSuite) TestObservePlanFailure() {
	suite.Run("LedgerFailure_ShouldRecordViolatedVerdict", func() {
		base := time.Now()
		entries := []logger.Entry{
			planEntry(base, "contract", "Contract built", nil),
			planEntry(base.Add(time.Second), "ledger", "Pipeline phase failed", nil),
		}

		suite.collector.ObservePlanFailure(apperrors.CodeMacroInfeasible, entries, 4*time.Second)

		suite.Equal(float64(1), testutil.ToFloat64(suite.collector.planRunsTotal.WithLabelValues("macro_infeasible")))
		suite.Equal(float64(1), testutil.ToFloat64(suite.collector.ledgerVerdicts.WithLabelValues("violated")))
		suite.Equal(1, testutil.CollectAndCount(suite.collector.phaseDuration))
	})

	suite.Run("ValidationFailure_ShouldNotTouchLedgerVerdicts", func() {
		collector := NewMetricsCollector(prometheus.NewRegistry(), zap.NewNop())
		collector.ObservePlanFailure(apperrors.CodeValidationFailed, nil, time.Millisecond)

		suite.Equal(float64(1), testutil.ToFloat64(collector.planRunsTotal.WithLabelValues("validation_failed")))
		suite.Equal(0, testutil.CollectAndCount(collector.ledgerVerdicts))
	})
}

func (suite *MetricsTestSuite) TestDomainRecorders() {
	suite.collector.RecordCacheLookup("search", "stale")
	suite.collector.RecordCacheLookup("search", "stale")
	suite.collector.RecordBucketWait("metro", 120*time.Millisecond)
	suite.collector.RecordBucketRefusal("metro")
	suite.collector.RecordLedgerVerdict(false)

	suite.Equal(float64(2), testutil.ToFloat64(suite.collector.cacheLookups.WithLabelValues("search", "stale")))
	suite.Equal(1, testutil.CollectAndCount(suite.collector.bucketWaits))
	suite.Equal(float64(1), testutil.ToFloat64(suite.collector.bucketRefusals.WithLabelValues("metro")))
	suite.Equal(float64(1), testutil.ToFloat64(suite.collector.ledgerVerdicts.WithLabelValues("violated")))
}

func (suite *MetricsTestSuite) TestHandler() {
	suite.collector.RecordPlanRun("ok", time.Second)

	rec := httptest.NewRecorder()
	suite.collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	suite.Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Body.String(), "plan_runs_total")
}

// planEntry builds a captured entry the way the pipeline logger stamps them.
func planEntry(ts time.Time, phase, message string, extra map[string]interface{}) logger.Entry {
	data := map[string]interface{}{"phase": phase}
	for k, v := range extra {
		data[k] = v
	}
	return logger.Entry{TS: ts, Level: "info", Tag: "planner", Message: message, Data: data}
}

func TestMetricsTestSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}
