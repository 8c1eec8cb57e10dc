package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verigrade/verigrade/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom("fraud-service", "production", config.TracingConfig{
		Enabled:        true,
		ServiceVersion: "1.2.3",
		OTLPEndpoint:   "collector:4317",
		SampleRate:     0.2,
	})
	assert.Equal(t, "fraud-service", cfg.ServiceName)
	assert.Equal(t, "collector:4317", cfg.Endpoint)
	assert.True(t, cfg.Enabled)
}

func TestTraceDBQueryRecordsError(t *testing.T) {
	recorder := withRecorder(t)

	err := TraceDBQuery(context.Background(), "test", "select", "SELECT 1", func(context.Context) error {
		return errors.New("db down")
	})
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.select", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTraceRedisCommandMissIsNotAnError(t *testing.T) {
	recorder := withRecorder(t)

	err := TraceRedisCommand(context.Background(), "test", "get", "fraud:pattern:x", func(context.Context) error {
		return redis.Nil
	})
	assert.ErrorIs(t, err, redis.Nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
}

func TestSampleRate(t *testing.T) {
	assert.Equal(t, 0.25, sampleRate(Config{SampleRate: 0.25, Environment: "production"}))
	assert.Equal(t, 0.1, sampleRate(Config{Environment: "production"}))
	assert.Equal(t, 0.5, sampleRate(Config{Environment: "staging"}))
	assert.Equal(t, 1.0, sampleRate(Config{Environment: "development"}))
}

func TestTraceID(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))

	withRecorder(t)
	ctx, span := StartSpan(context.Background(), "test", "op")
	defer span.End()
	assert.Len(t, TraceID(ctx), 32)
}
