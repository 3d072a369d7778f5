// Package resilience retries operations that fail with transient errors,
// such as a BlockingCache lock wait that timed out.
package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/agentuity/go-cache/cache"
	"github.com/cockroachdb/errors"
)

// RetryConfig configures retries with exponential backoff.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration
	// BackoffMultiplier grows the wait after every retry.
	BackoffMultiplier float64
	// Jitter randomizes each wait between half and all of its value.
	Jitter bool
	// RetryableErrors decides whether err is worth another attempt.
	RetryableErrors func(err error) bool
}

// DefaultRetryConfig retries lock timeouts up to five times, starting at 10ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        5,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		RetryableErrors:   DefaultRetryableErrors,
	}
}

// DefaultRetryableErrors retries cache lock timeouts. A cancelled lock wait,
// a cancelled context and every other error are final.
func DefaultRetryableErrors(err error) bool {
	return err != nil && errors.Is(err, cache.ErrLockTimeout)
}

// RetryStats describes one Retry run.
type RetryStats struct {
	Attempts   int
	Retries    int
	TotalDelay time.Duration
	LastError  error
}

// Retry calls fn until it succeeds, fails with a non-retryable error, the
// retries are exhausted or ctx is done.
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	_, err := RetryWithStats(ctx, config, fn)
	return err
}

// RetryWithStats is Retry that also reports what happened.
func RetryWithStats(ctx context.Context, config RetryConfig, fn func() error) (RetryStats, error) {
	retryable := config.RetryableErrors
	if retryable == nil {
		retryable = DefaultRetryableErrors
	}
	var stats RetryStats
	for {
		stats.Attempts++
		err := fn()
		stats.LastError = err
		if err == nil {
			return stats, nil
		}
		if !retryable(err) {
			return stats, err
		}
		if stats.Retries >= config.MaxRetries {
			return stats, errors.Wrapf(err, "giving up after %d attempts", stats.Attempts)
		}
		wait := calculateBackoff(config, stats.Retries)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return stats, errors.WithSecondaryError(ctx.Err(), err)
		case <-timer.C:
		}
		stats.Retries++
		stats.TotalDelay += wait
	}
}

func calculateBackoff(config RetryConfig, retry int) time.Duration {
	backoff := float64(config.InitialBackoff)
	for i := 0; i < retry; i++ {
		backoff *= config.BackoffMultiplier
		if config.MaxBackoff > 0 && backoff >= float64(config.MaxBackoff) {
			backoff = float64(config.MaxBackoff)
			break
		}
	}
	if config.MaxBackoff > 0 && backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}
	if config.Jitter {
		backoff = backoff/2 + rand.Float64()*backoff/2
	}
	return time.Duration(backoff)
}
