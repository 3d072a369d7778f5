package cache

import (
	"context"
	"time"

	"github.com/agentuity/go-cache/logger"
)

// ScheduledCache clears its delegate once the clear interval has elapsed.
// There is no timer: staleness is checked at the start of every Size, Get,
// Put and Remove, and a Get that triggers the clear reports a miss.
type ScheduledCache struct {
	delegate      Cache
	clearInterval time.Duration
	lastClear     time.Time
	now           func() time.Time
	logger        logger.Logger
}

var (
	_ Cache        = (*ScheduledCache)(nil)
	_ Configurable = (*ScheduledCache)(nil)
)

// NewScheduled wraps delegate with a DefaultClearInterval. WithClock replaces
// the time source.
func NewScheduled(delegate Cache, opts ...Option) *ScheduledCache {
	cfg := applyOptions(opts)
	return &ScheduledCache{
		delegate:      delegate,
		clearInterval: DefaultClearInterval,
		lastClear:     cfg.now(),
		now:           cfg.now,
		logger:        cfg.logger.WithPrefix("[scheduled]"),
	}
}

func (c *ScheduledCache) SetClearInterval(d time.Duration) {
	c.clearInterval = d
}

func (c *ScheduledCache) ClearInterval() time.Duration {
	return c.clearInterval
}

// LastClear returns when the delegate was last cleared.
func (c *ScheduledCache) LastClear() time.Time {
	return c.lastClear
}

func (c *ScheduledCache) Setters() map[string]Setter {
	return map[string]Setter{"clearInterval": Bind(c.SetClearInterval)}
}

func (c *ScheduledCache) Delegate() Cache { return c.delegate }
func (c *ScheduledCache) ID() string      { return c.delegate.ID() }

// Size has no error return, so a failed stale clear is only logged.
func (c *ScheduledCache) Size() int {
	if _, err := c.clearWhenStale(context.Background()); err != nil {
		c.logger.Warn("unexpected error while clearing stale cache %s: %v", c.ID(), err)
	}
	return c.delegate.Size()
}

func (c *ScheduledCache) Get(ctx context.Context, key any) (bool, any, error) {
	stale, err := c.clearWhenStale(ctx)
	if err != nil || stale {
		return false, nil, err
	}
	return c.delegate.Get(ctx, key)
}

func (c *ScheduledCache) Put(ctx context.Context, key any, value any) error {
	if _, err := c.clearWhenStale(ctx); err != nil {
		return err
	}
	return c.delegate.Put(ctx, key, value)
}

func (c *ScheduledCache) Remove(ctx context.Context, key any) (bool, any, error) {
	if _, err := c.clearWhenStale(ctx); err != nil {
		return false, nil, err
	}
	return c.delegate.Remove(ctx, key)
}

func (c *ScheduledCache) Clear(ctx context.Context) error {
	c.lastClear = c.now()
	return c.delegate.Clear(ctx)
}

func (c *ScheduledCache) clearWhenStale(ctx context.Context) (bool, error) {
	if c.now().Sub(c.lastClear) <= c.clearInterval {
		return false, nil
	}
	return true, c.Clear(ctx)
}
