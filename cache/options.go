package cache

import (
	"time"

	"github.com/agentuity/go-cache/logger"
	"github.com/agentuity/go-cache/sys"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultSize is the capacity of LruCache and FifoCache.
	DefaultSize = 1024
	// DefaultHardLinks is the number of values WeakCache keeps strongly reachable.
	DefaultHardLinks = 256
	// DefaultClearInterval is the staleness interval of ScheduledCache.
	DefaultClearInterval = time.Hour
	// DefaultMemoryPressure is the host memory usage percentage at which
	// WeakCache drops its hard links when pressure tracking is enabled.
	DefaultMemoryPressure = 90.0

	instrumentationName = "github.com/agentuity/go-cache"
)

// config holds the resolved configuration shared by the decorators. Each
// decorator reads only the fields that apply to it.
type config struct {
	logger            logger.Logger
	timeout           time.Duration
	now               func() time.Time
	hardLinks         int
	pressureThreshold float64
	pressureProbe     func() float64
	meter             metric.Meter
	tracer            trace.Tracer
}

// Option configures a cache layer.
type Option func(*config)

func defaultConfig() config {
	return config{
		now:       time.Now,
		hardLinks: DefaultHardLinks,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.NewConsoleLogger()
	}
	if cfg.meter == nil {
		cfg.meter = otel.Meter(instrumentationName)
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(instrumentationName)
	}
	return cfg
}

// WithLogger sets the logger. Defaults to a console logger at the level
// given by CACHE_LOG_LEVEL.
func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithTimeout sets how long BlockingCache waits for a per-key lock.
// Zero waits until the lock is free or the context is done.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithClock replaces time.Now. Applies to ScheduledCache.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithHardLinks sets how many recently read values WeakCache keeps strongly
// reachable. Defaults to DefaultHardLinks.
func WithHardLinks(n int) Option {
	return func(c *config) { c.hardLinks = n }
}

// WithMemoryPressure makes WeakCache release every hard link on Put whenever
// probe reports host memory usage at or above threshold percent. A nil probe
// uses sys.MemoryUsedPercent.
func WithMemoryPressure(threshold float64, probe func() float64) Option {
	return func(c *config) {
		if probe == nil {
			probe = sys.MemoryUsedPercent
		}
		c.pressureThreshold = threshold
		c.pressureProbe = probe
	}
}

// WithMeter sets the OpenTelemetry meter used by LoggingCache. Defaults to the
// global meter provider.
func WithMeter(m metric.Meter) Option {
	return func(c *config) { c.meter = m }
}

// WithMeterProvider sets the meter from provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *config) { c.meter = provider.Meter(instrumentationName) }
}

// WithTracerProvider sets the tracer LoggingCache uses for lookup spans.
// Defaults to the global tracer provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *config) { c.tracer = provider.Tracer(instrumentationName) }
}
