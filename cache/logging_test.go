package cache

import (
	"context"
	"testing"

	"github.com/agentuity/go-cache/logger"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	require.NotNil(t, m, "metric %s not found", name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)
	require.Len(t, sum.DataPoints, 1)
	id, ok := sum.DataPoints[0].Attributes.Value("cache.id")
	require.True(t, ok)
	assert.Equal(t, "users", id.AsString())
	return sum.DataPoints[0].Value
}

func TestLoggingHitRatio(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	c := NewLogging(NewPerpetual("users"), WithLogger(log), WithMeterProvider(mp))
	assert.Equal(t, float64(0), c.HitRatio())

	assertMiss(t, c, "k")
	require.NoError(t, c.Put(ctx, "k", "v"))
	assertHit(t, c, "k", "v")

	assert.Equal(t, int64(2), c.Requests())
	assert.Equal(t, int64(1), c.Hits())
	assert.Equal(t, 0.5, c.HitRatio())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	assert.Equal(t, int64(2), counterValue(t, rm, "cache.requests"))
	assert.Equal(t, int64(1), counterValue(t, rm, "cache.hits"))

	debug := log.Filter("DEBUG")
	require.Len(t, debug, 2)
	assert.Equal(t, "Cache Hit Ratio [users]: 0", debug[0].Formatted())
	assert.Equal(t, "Cache Hit Ratio [users]: 0.5", debug[1].Formatted())
}

func TestLoggingSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	spy := newSpy("users")
	c := NewLogging(spy, quiet(), WithTracerProvider(tp))

	assertMiss(t, c, "k")
	spy.PerpetualCache.Put(context.Background(), "k", "v")
	assertHit(t, c, "k", "v")

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	for i, hit := range []bool{false, true} {
		assert.Equal(t, "cache.get", spans[i].Name())
		attrs := attribute.NewSet(spans[i].Attributes()...)
		v, ok := attrs.Value("cache.hit")
		require.True(t, ok)
		assert.Equal(t, hit, v.AsBool())
		v, ok = attrs.Value("cache.id")
		require.True(t, ok)
		assert.Equal(t, "users", v.AsString())
	}
}

func TestLoggingSpanRecordsErrors(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	bc := NewBlocking(NewPerpetual("users"), quiet())
	c := NewLogging(bc, quiet(), WithTracerProvider(tp))

	ctx, cancel := context.WithCancel(WithOwner(context.Background(), "t2"))
	_, _, err := bc.Get(WithOwner(context.Background(), "t1"), "K")
	require.NoError(t, err)
	cancel()

	_, _, err = c.Get(ctx, "K")
	assert.True(t, errors.Is(err, ErrLockInterrupted))
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, int64(0), c.Hits())
}

func TestLoggingPassesThrough(t *testing.T) {
	ctx := context.Background()
	base := NewPerpetual("users")
	c := NewLogging(base, quiet())

	require.NoError(t, c.Put(ctx, "k", "v"))
	assert.Equal(t, 1, c.Size())
	found, val, err := c.Remove(ctx, "k")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", val)
	require.NoError(t, c.Put(ctx, "k", "v"))
	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, base.Size())
	assert.Equal(t, int64(0), c.Requests())
}
