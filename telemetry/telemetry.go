// Package telemetry wires OpenTelemetry providers for the cache tooling:
// OTLP/HTTP traces and logs when a collector URL is given, and an optional
// stdout metrics exporter.
package telemetry

import (
	"context"
	"io"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/agentuity/go-cache/logger"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const exportTimeout = 10 * time.Second

// Options configures New.
type Options struct {
	// URL is the OTLP/HTTP collector base URL. Empty disables trace and log export.
	URL string
	// SharedSecret signs a bearer token sent to the collector. Optional.
	SharedSecret string
	// Metrics selects the metrics exporter: "stdout", "none" or "".
	Metrics string
	// MetricsWriter receives stdout metrics. Defaults to os.Stdout.
	MetricsWriter io.Writer
	// Logger is the local logger. Exported logs are teed to it.
	Logger logger.Logger
	// LogLevel is the minimum level exported to the collector.
	LogLevel logger.LogLevel
}

// Telemetry holds the configured providers. Providers that were not enabled
// are no-ops.
type Telemetry struct {
	Logger         logger.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	shutdowns      []func(context.Context) error
}

// New creates the providers for serviceName.
func New(ctx context.Context, serviceName string, opts Options) (*Telemetry, error) {
	t := &Telemetry{
		Logger:         opts.Logger,
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  metricnoop.NewMeterProvider(),
	}
	if t.Logger == nil {
		t.Logger = logger.NewConsoleLogger()
	}
	if opts.URL == "" && (opts.Metrics == "" || opts.Metrics == "none") {
		return t, nil
	}

	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if errors.Is(err, resource.ErrPartialResource) || errors.Is(err, resource.ErrSchemaURLConflict) {
		t.Logger.Warn("incomplete telemetry resource: %v", err)
	} else if err != nil {
		return nil, errors.Wrap(err, "error creating resource")
	}

	if opts.URL != "" {
		if err := t.withCollector(ctx, serviceName, opts, res); err != nil {
			return nil, err
		}
	}

	switch opts.Metrics {
	case "", "none":
	case "stdout":
		w := opts.MetricsWriter
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create stdout metrics exporter")
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		)
		t.MeterProvider = mp
		t.shutdowns = append(t.shutdowns, mp.Shutdown)
	default:
		return nil, errors.Newf("unknown metrics exporter: %q", opts.Metrics)
	}
	return t, nil
}

func (t *Telemetry) withCollector(ctx context.Context, serviceName string, opts Options, res *resource.Resource) error {
	base, err := url.Parse(opts.URL)
	if err != nil {
		return errors.Wrap(err, "error parsing otlp url")
	}
	headers := make(map[string]string)
	if opts.SharedSecret != "" {
		token, err := GenerateOTLPBearerTokenWithExpiration(opts.SharedSecret, time.Now().Add(time.Hour))
		if err != nil {
			return err
		}
		headers["Authorization"] = "Bearer " + token
	}
	endpoint := func(path string) string {
		u := *base
		u.Path = path
		return u.String()
	}

	traceOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(endpoint("/v1/traces")),
		otlptracehttp.WithHeaders(headers),
		otlptracehttp.WithTimeout(exportTimeout),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	logOpts := []otlploghttp.Option{
		otlploghttp.WithEndpointURL(endpoint("/v1/logs")),
		otlploghttp.WithHeaders(headers),
		otlploghttp.WithTimeout(exportTimeout),
		otlploghttp.WithCompression(otlploghttp.GzipCompression),
	}
	if base.Scheme == "http" {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		logOpts = append(logOpts, otlploghttp.WithInsecure())
	}

	traceExporter, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return errors.Wrap(err, "error creating trace exporter")
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
	)
	t.TracerProvider = tp
	t.shutdowns = append(t.shutdowns, tp.Shutdown)

	logExporter, err := otlploghttp.New(ctx, logOpts...)
	if err != nil {
		return errors.Wrap(err, "error creating log exporter")
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
	)
	t.shutdowns = append(t.shutdowns, lp.Shutdown)
	t.Logger = logger.NewTeeLogger(t.Logger, logger.NewOtelLogger(lp.Logger(serviceName), opts.LogLevel))
	return nil
}

// Shutdown flushes and stops every provider, most recently created first.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()
	var errs error
	for _, shutdown := range slices.Backward(t.shutdowns) {
		errs = errors.CombineErrors(errs, shutdown(ctx))
	}
	t.shutdowns = nil
	return errs
}
