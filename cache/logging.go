package cache

import (
	"context"
	"sync/atomic"

	"github.com/agentuity/go-cache/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// LoggingCache tracks the hit ratio of Get, logs it at debug level and
// records it as OpenTelemetry counters. Every Get is also a "cache.get" span.
type LoggingCache struct {
	delegate Cache
	logger   logger.Logger
	requests atomic.Int64
	hits     atomic.Int64
	requestC metric.Int64Counter
	hitC     metric.Int64Counter
	attrs    metric.MeasurementOption
	tracer   trace.Tracer
}

var _ Cache = (*LoggingCache)(nil)

// NewLogging wraps delegate. Instrument creation failures fall back to the
// global meter's no-op behaviour and are logged.
func NewLogging(delegate Cache, opts ...Option) *LoggingCache {
	cfg := applyOptions(opts)
	c := &LoggingCache{
		delegate: delegate,
		logger:   cfg.logger.WithPrefix("[cache]").With(map[string]interface{}{"cache": delegate.ID()}),
		attrs:    metric.WithAttributes(attribute.String("cache.id", delegate.ID())),
		tracer:   cfg.tracer,
	}
	var err error
	if c.requestC, err = cfg.meter.Int64Counter(
		"cache.requests",
		metric.WithDescription("Number of cache lookups"),
		metric.WithUnit("{request}"),
	); err != nil {
		c.logger.Warn("failed to create cache.requests counter: %v", err)
	}
	if c.hitC, err = cfg.meter.Int64Counter(
		"cache.hits",
		metric.WithDescription("Number of cache lookups that found a value"),
		metric.WithUnit("{hit}"),
	); err != nil {
		c.logger.Warn("failed to create cache.hits counter: %v", err)
	}
	return c
}

func (c *LoggingCache) Delegate() Cache { return c.delegate }
func (c *LoggingCache) ID() string      { return c.delegate.ID() }
func (c *LoggingCache) Size() int       { return c.delegate.Size() }

func (c *LoggingCache) Get(ctx context.Context, key any) (bool, any, error) {
	ctx, span := c.tracer.Start(ctx, "cache.get", trace.WithAttributes(attribute.String("cache.id", c.ID())))
	defer span.End()

	requests := c.requests.Add(1)
	if c.requestC != nil {
		c.requestC.Add(ctx, 1, c.attrs)
	}
	found, val, err := c.delegate.Get(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, nil, err
	}
	span.SetAttributes(attribute.Bool("cache.hit", found))
	hits := c.hits.Load()
	if found {
		hits = c.hits.Add(1)
		if c.hitC != nil {
			c.hitC.Add(ctx, 1, c.attrs)
		}
	}
	if c.logger.IsLevelEnabled(logger.LevelDebug) {
		c.logger.Debug("Cache Hit Ratio [%s]: %v", c.ID(), float64(hits)/float64(requests))
	}
	return found, val, nil
}

func (c *LoggingCache) Put(ctx context.Context, key any, value any) error {
	return c.delegate.Put(ctx, key, value)
}

func (c *LoggingCache) Remove(ctx context.Context, key any) (bool, any, error) {
	return c.delegate.Remove(ctx, key)
}

func (c *LoggingCache) Clear(ctx context.Context) error {
	return c.delegate.Clear(ctx)
}

// Requests returns the number of Get calls.
func (c *LoggingCache) Requests() int64 {
	return c.requests.Load()
}

// Hits returns the number of Get calls that found a value.
func (c *LoggingCache) Hits() int64 {
	return c.hits.Load()
}

// HitRatio returns hits divided by requests, or 0 before the first Get.
func (c *LoggingCache) HitRatio() float64 {
	requests := c.requests.Load()
	if requests == 0 {
		return 0
	}
	return float64(c.hits.Load()) / float64(requests)
}
