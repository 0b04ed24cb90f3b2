package monitoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/macrocart/v2/internal/infrastructure/config"
)

type TracingTestSuite struct {
	suite.Suite
}

func (suite *TracingTestSuite) TestDisabledProvider() {
	cfg := &config.Config{}
	cfg.Monitoring.EnableTracing = false

	tp, err := NewTracingProvider(context.Background(), cfg, zap.NewNop())
	suite.Require().NoError(err)

	ctx, span := tp.StartSpan(context.Background(), "planner.sketch")
	suite.NotNil(span)
	suite.False(span.SpanContext().IsValid())
	suite.Empty(TraceIDFromContext(ctx))
	suite.Empty(SpanIDFromContext(ctx))

	tp.RecordError(span, errors.New("upstream timeout"))
	tp.RecordError(span, nil)

	suite.NoError(tp.Shutdown(context.Background()))
}

func (suite *TracingTestSuite) TestEnabledProvider() {
	cfg := &config.Config{}
	cfg.App.Name = "MacroCart"
	cfg.App.Version = "2.0.0"
	cfg.App.Environment = "test"
	cfg.Monitoring.EnableTracing = true
	cfg.Monitoring.OTLPEndpoint = "localhost:4318"
	cfg.Monitoring.SamplingRate = 1.0

	tp, err := NewTracingProvider(context.Background(), cfg, zap.NewNop())
	suite.Require().NoError(err)

	ctx, span := tp.StartSpan(context.Background(), "planner.market_run")
	suite.True(span.SpanContext().IsValid())
	suite.Len(TraceIDFromContext(ctx), 32)
	suite.Len(SpanIDFromContext(ctx), 16)

	// The span is never ended, so shutdown has nothing to flush and does
	// not need a collector listening.
	suite.NoError(tp.Shutdown(context.Background()))
}

func (suite *TracingTestSuite) TestExporterOptions() {
	suite.Len(exporterOptions("localhost:4318"), 2)
	suite.Len(exporterOptions("https://otel.example.com/v1/traces"), 1)
	suite.Len(exporterOptions(""), 2)
}

func TestTracingTestSuite(t *testing.T) {
	suite.Run(t, new(TracingTestSuite))
}
