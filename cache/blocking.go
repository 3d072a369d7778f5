package cache

import (
	"context"
	"sync"
	"time"

	"github.com/agentuity/go-cache/logger"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/semaphore"
)

// keyLock is a mutual exclusion lock owned by a context owner. It is
// reentrant for named owners; the anonymous owner cannot re-enter.
type keyLock struct {
	sem   *semaphore.Weighted
	mu    sync.Mutex
	owner string
	holds int
}

func (l *keyLock) reenter(owner string) bool {
	if owner == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holds > 0 && l.owner == owner {
		l.holds++
		return true
	}
	return false
}

func (l *keyLock) acquired(owner string) {
	l.mu.Lock()
	l.owner = owner
	l.holds = 1
	l.mu.Unlock()
}

// release drops one hold if owner holds the lock. Otherwise it is a no-op.
func (l *keyLock) release(owner string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holds == 0 || l.owner != owner {
		return false
	}
	l.holds--
	if l.holds == 0 {
		l.owner = ""
		l.sem.Release(1)
	}
	return true
}

func (l *keyLock) heldBy() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner, l.holds > 0
}

// BlockingCache serializes population of each key. A Get that misses keeps
// the key's lock, so concurrent callers for the same key wait until the first
// caller stores the value with Put or gives up with Remove.
//
// Remove never deletes anything here: it only releases the caller's lock.
// Locks are created on first use and kept for the lifetime of the cache.
// Lock ownership comes from the context (see WithOwner).
type BlockingCache struct {
	delegate Cache
	timeout  time.Duration
	logger   logger.Logger
	mu       sync.Mutex
	locks    map[any]*keyLock
}

var (
	_ Cache        = (*BlockingCache)(nil)
	_ Configurable = (*BlockingCache)(nil)
)

// NewBlocking wraps delegate. Use WithTimeout to bound lock waits.
func NewBlocking(delegate Cache, opts ...Option) *BlockingCache {
	cfg := applyOptions(opts)
	return &BlockingCache{
		delegate: delegate,
		timeout:  cfg.timeout,
		logger:   cfg.logger.WithPrefix("[blocking]"),
		locks:    make(map[any]*keyLock),
	}
}

// SetTimeout sets the lock wait bound. Zero waits indefinitely.
func (c *BlockingCache) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

func (c *BlockingCache) Timeout() time.Duration {
	return c.timeout
}

func (c *BlockingCache) Setters() map[string]Setter {
	return map[string]Setter{"timeout": Bind(c.SetTimeout)}
}

func (c *BlockingCache) Delegate() Cache { return c.delegate }
func (c *BlockingCache) ID() string      { return c.delegate.ID() }
func (c *BlockingCache) Size() int       { return c.delegate.Size() }

func (c *BlockingCache) Get(ctx context.Context, key any) (bool, any, error) {
	id, err := Identity(key)
	if err != nil {
		return false, nil, err
	}
	if err := c.acquire(ctx, id, key); err != nil {
		return false, nil, err
	}
	found, val, err := c.delegate.Get(ctx, key)
	if err != nil || found {
		c.release(ctx, id)
	}
	return found, val, err
}

func (c *BlockingCache) Put(ctx context.Context, key any, value any) error {
	id, err := Identity(key)
	if err != nil {
		return err
	}
	defer c.release(ctx, id)
	return c.delegate.Put(ctx, key, value)
}

// Remove releases the caller's lock on key. Nothing is deleted.
func (c *BlockingCache) Remove(ctx context.Context, key any) (bool, any, error) {
	id, err := Identity(key)
	if err != nil {
		return false, nil, err
	}
	c.release(ctx, id)
	return false, nil, nil
}

// Clear clears the delegate. Held locks are not affected.
func (c *BlockingCache) Clear(ctx context.Context) error {
	return c.delegate.Clear(ctx)
}

// LockCount returns the number of per-key locks created so far.
func (c *BlockingCache) LockCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}

// HeldBy returns the owner currently holding the lock for key.
func (c *BlockingCache) HeldBy(key any) (string, bool) {
	id, err := Identity(key)
	if err != nil {
		return "", false
	}
	c.mu.Lock()
	lock, ok := c.locks[id]
	c.mu.Unlock()
	if !ok {
		return "", false
	}
	return lock.heldBy()
}

func (c *BlockingCache) lockFor(id any) *keyLock {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[id]
	if !ok {
		lock = &keyLock{sem: semaphore.NewWeighted(1)}
		c.locks[id] = lock
	}
	return lock
}

func (c *BlockingCache) acquire(ctx context.Context, id, key any) error {
	owner := OwnerFromContext(ctx)
	lock := c.lockFor(id)
	if lock.reenter(owner) {
		return nil
	}
	waitCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := lock.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return errors.Wrapf(ErrLockInterrupted, "key %v at cache %s: %v", key, c.ID(), ctx.Err())
		}
		c.logger.Debug("lock wait for key %v timed out after %s", key, c.timeout)
		return errors.Wrapf(ErrLockTimeout, "couldn't get a lock in %s for the key %v at the cache %s", c.timeout, key, c.ID())
	}
	lock.acquired(owner)
	return nil
}

func (c *BlockingCache) release(ctx context.Context, id any) {
	c.mu.Lock()
	lock, ok := c.locks[id]
	c.mu.Unlock()
	if ok {
		lock.release(OwnerFromContext(ctx))
	}
}
