package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/agentuity/go-cache/cache"
	"github.com/agentuity/go-cache/env"
	"github.com/agentuity/go-cache/logger"
	"github.com/agentuity/go-cache/resilience"
	"github.com/agentuity/go-cache/telemetry"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "cache-cli",
		Short:         "Assemble cache chains from YAML and exercise them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "cache chain YAML file (defaults to a blocking LRU chain)")
	root.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error")
	root.PersistentFlags().String("log-format", "", "log format: console or json")
	root.PersistentFlags().String("otlp-url", "", "OTLP/HTTP collector URL for traces and logs (or CACHE_OTLP_URL)")
	root.PersistentFlags().String("otlp-secret", "", "shared secret used to sign the collector bearer token (or CACHE_OTLP_SECRET)")
	root.PersistentFlags().String("metrics", "", "metrics exporter: stdout or none")
	root.AddCommand(newDescribeCommand(), newStampedeCommand())
	return root
}

func newDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Print the layers of the configured chain, outermost first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tel, err := newTelemetry(cmd)
			if err != nil {
				return err
			}
			defer tel.Shutdown(context.Background())
			c, err := buildCache(cmd, tel)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cache %s\n", c.ID())
			for depth, layer := range cache.Layers(c) {
				fmt.Fprintf(out, "%*s%s\n", depth*2+2, "", describeLayer(layer))
			}
			return nil
		},
	}
}

func describeLayer(c cache.Cache) string {
	switch layer := c.(type) {
	case *cache.LruCache:
		return fmt.Sprintf("lru (capacity %d)", layer.Capacity())
	case *cache.BlockingCache:
		if layer.Timeout() > 0 {
			return fmt.Sprintf("blocking (timeout %s)", layer.Timeout())
		}
		return "blocking (no timeout)"
	case *cache.ScheduledCache:
		return fmt.Sprintf("scheduled (clear every %s)", layer.ClearInterval())
	case *cache.FifoCache:
		return "fifo"
	case *cache.WeakCache:
		return "weak"
	case *cache.SerializedCache:
		return "serialized"
	case *cache.LoggingCache:
		return "logging"
	case *cache.SynchronizedCache:
		return "synchronized"
	case *cache.PerpetualCache:
		return "perpetual"
	default:
		return fmt.Sprintf("%T", c)
	}
}

func newStampedeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stampede",
		Short: "Run concurrent get-or-populate workers against the configured chain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tel, err := newTelemetry(cmd)
			if err != nil {
				return err
			}
			defer tel.Shutdown(context.Background())
			c, err := buildCache(cmd, tel)
			if err != nil {
				return err
			}
			workers, _ := cmd.Flags().GetInt("workers")
			keys, _ := cmd.Flags().GetInt("keys")
			iterations, _ := cmd.Flags().GetInt("iterations")
			populate, _ := cmd.Flags().GetDuration("populate")
			retries, _ := cmd.Flags().GetInt("retries")
			if workers < 1 || keys < 1 || iterations < 1 {
				return errors.New("workers, keys and iterations must be positive")
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			started := time.Now()
			retry := resilience.DefaultRetryConfig()
			retry.MaxRetries = retries
			stats, err := runStampede(ctx, c, tel.Logger, stampedeConfig{
				workers:    workers,
				keys:       keys,
				iterations: iterations,
				populate:   populate,
				retry:      retry,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "requests:     %d\n", stats.requests.Load())
			fmt.Fprintf(out, "populations:  %d\n", stats.populations.Load())
			fmt.Fprintf(out, "lock retries: %d\n", stats.timeouts.Load())
			fmt.Fprintf(out, "entries:      %d\n", c.Size())
			if lc, ok := cache.Unwrap[*cache.LoggingCache](c); ok {
				fmt.Fprintf(out, "hit ratio:    %.3f\n", lc.HitRatio())
			}
			fmt.Fprintf(out, "elapsed:      %s\n", time.Since(started).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().Int("workers", 8, "number of concurrent workers, each with its own lock owner")
	cmd.Flags().Int("keys", 16, "number of distinct keys")
	cmd.Flags().Int("iterations", 100, "lookups per worker")
	cmd.Flags().Duration("populate", 5*time.Millisecond, "simulated time to compute a missing value")
	cmd.Flags().Int("retries", 20, "lock timeout retries per lookup")
	return cmd
}

type stampedeConfig struct {
	workers    int
	keys       int
	iterations int
	populate   time.Duration
	retry      resilience.RetryConfig
}

type stampedeStats struct {
	requests    atomic.Int64
	populations atomic.Int64
	timeouts    atomic.Int64
}

// runStampede drives workers against c. Lock timeouts are retried here, the
// cache never retries on its own.
func runStampede(ctx context.Context, c cache.Cache, log logger.Logger, cfg stampedeConfig) (*stampedeStats, error) {
	stats := &stampedeStats{}
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.workers; w++ {
		g.Go(func() error {
			wctx, owner := cache.NewOwner(ctx)
			wlog := log.With(map[string]interface{}{"worker": w, "owner": owner})
			for i := 0; i < cfg.iterations; i++ {
				key := fmt.Sprintf("key-%d", rand.IntN(cfg.keys))
				if err := lookup(wctx, c, wlog, stats, key, cfg); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func lookup(ctx context.Context, c cache.Cache, log logger.Logger, stats *stampedeStats, key string, cfg stampedeConfig) error {
	return resilience.Retry(ctx, cfg.retry, func() error {
		stats.requests.Add(1)
		_, _, err := cache.Exec(ctx, c, key, func(ctx context.Context) (string, bool, error) {
			stats.populations.Add(1)
			select {
			case <-time.After(cfg.populate):
			case <-ctx.Done():
				return "", false, ctx.Err()
			}
			return "value of " + key, true, nil
		})
		if errors.Is(err, cache.ErrLockTimeout) {
			stats.timeouts.Add(1)
			log.Debug("lock wait for %s timed out, retrying", key)
		}
		return err
	})
}

func newTelemetry(cmd *cobra.Command) (*telemetry.Telemetry, error) {
	metrics, _ := cmd.Flags().GetString("metrics")
	return telemetry.New(cmd.Context(), "cache-cli", telemetry.Options{
		URL:           env.FlagOrEnv(cmd, "otlp-url", "CACHE_OTLP_URL", ""),
		SharedSecret:  env.FlagOrEnv(cmd, "otlp-secret", "CACHE_OTLP_SECRET", ""),
		Metrics:       metrics,
		MetricsWriter: cmd.OutOrStdout(),
		Logger:        env.NewLogger(cmd),
		LogLevel:      env.LogLevel(cmd),
	})
}

func buildCache(cmd *cobra.Command, tel *telemetry.Telemetry) (cache.Cache, error) {
	opts := []cache.Option{
		cache.WithLogger(tel.Logger),
		cache.WithMeterProvider(tel.MeterProvider),
		cache.WithTracerProvider(tel.TracerProvider),
	}
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return cache.NewBuilder("stampede").
			Blocking(true).
			Properties(cache.Properties{"timeout": "100"}).
			Options(opts...).
			Build()
	}
	cfg, err := cache.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	tel.Logger.Debug("building cache %s from %s", cfg.ID, path)
	return cfg.Build(cache.NewRegistry(), opts...)
}
