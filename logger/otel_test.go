package logger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/noop"
)

type recordingOtelLogger struct {
	noop.Logger
	mu      sync.Mutex
	records []log.Record
}

func (r *recordingOtelLogger) Emit(_ context.Context, record log.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
}

func attributesOf(record log.Record) map[string]log.Value {
	out := make(map[string]log.Value)
	record.WalkAttributes(func(kv log.KeyValue) bool {
		out[kv.Key] = kv.Value
		return true
	})
	return out
}

func TestOtelLoggerEmitsRecords(t *testing.T) {
	sink := &recordingOtelLogger{}
	l := NewOtelLogger(sink, LevelDebug).
		WithPrefix("[cache]").
		With(map[string]interface{}{"cache": "users", "size": 3})

	l.Trace("dropped")
	l.Debug("hit ratio %v", 0.5)
	l.Error("failed")

	require.Len(t, sink.records, 2)
	first := sink.records[0]
	assert.Equal(t, "[cache] hit ratio 0.5", first.Body().AsString())
	assert.Equal(t, log.SeverityDebug, first.Severity())
	assert.Equal(t, "DEBUG", first.SeverityText())
	attrs := attributesOf(first)
	assert.Equal(t, "users", attrs["cache"].AsString())
	assert.Equal(t, int64(3), attrs["size"].AsInt64())
	assert.Equal(t, log.SeverityError, sink.records[1].Severity())
}

func TestOtelLoggerWithMergesMetadata(t *testing.T) {
	base := NewOtelLogger(noop.NewLoggerProvider().Logger("test"), LevelTrace).With(map[string]interface{}{
		"base_key": "base_value",
		"shared":   "from_base",
	}).(*otelLogger)

	extended := base.With(map[string]interface{}{
		"extra_key": "extra_value",
		"shared":    "from_extended",
	}).(*otelLogger)

	assert.Equal(t, 3, len(extended.metadata))
	assert.Equal(t, "base_value", extended.metadata["base_key"].AsString())
	assert.Equal(t, "extra_value", extended.metadata["extra_key"].AsString())
	assert.Equal(t, "from_extended", extended.metadata["shared"].AsString())
	assert.Equal(t, "from_base", base.metadata["shared"].AsString())
}

func TestTeeLogger(t *testing.T) {
	a := NewTestLogger()
	b := NewTestLogger()
	l := NewTeeLogger(a, b, NewNoopLogger()).WithPrefix("[tx]")

	assert.True(t, l.IsLevelEnabled(LevelTrace))
	l.Warn("rollback failed for %s", "k")
	l.With(map[string]interface{}{"owner": "o"}).Info("done")

	for _, tl := range []*TestLogger{a, b} {
		logs := tl.Logs()
		require.Len(t, logs, 2)
		assert.Equal(t, "WARNING", logs[0].Severity)
		assert.Equal(t, "rollback failed for k", logs[0].Formatted())
		assert.Equal(t, "[tx]", logs[1].Metadata["prefix"])
		assert.Equal(t, "o", logs[1].Metadata["owner"])
	}
	assert.False(t, NewTeeLogger(NewNoopLogger()).IsLevelEnabled(LevelError))
}
