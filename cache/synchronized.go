package cache

import (
	"context"
	"sync"
)

// SynchronizedCache guards its delegate with a single mutex.
type SynchronizedCache struct {
	delegate Cache
	mu       sync.Mutex
}

var _ Cache = (*SynchronizedCache)(nil)

func NewSynchronized(delegate Cache) *SynchronizedCache {
	return &SynchronizedCache{delegate: delegate}
}

func (c *SynchronizedCache) Delegate() Cache { return c.delegate }
func (c *SynchronizedCache) ID() string      { return c.delegate.ID() }

func (c *SynchronizedCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Size()
}

func (c *SynchronizedCache) Get(ctx context.Context, key any) (bool, any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Get(ctx, key)
}

func (c *SynchronizedCache) Put(ctx context.Context, key any, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Put(ctx, key, value)
}

func (c *SynchronizedCache) Remove(ctx context.Context, key any) (bool, any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Remove(ctx, key)
}

func (c *SynchronizedCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Clear(ctx)
}
