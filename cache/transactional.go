package cache

import (
	"context"

	"github.com/agentuity/go-cache/logger"
	"github.com/cockroachdb/errors"
)

type stagedEntry struct {
	key   any
	value any
}

// TransactionalCache buffers the writes of one unit of work until Commit.
// Reads go straight to the delegate, so staged writes are not visible before
// Commit. Keys that missed are remembered so that Commit or Rollback can hand
// them back to the delegate, which releases any BlockingCache lock taken by
// the miss.
//
// A TransactionalCache belongs to a single unit of work and is not safe for
// concurrent use.
type TransactionalCache struct {
	delegate      Cache
	logger        logger.Logger
	clearOnCommit bool
	pending       map[any]stagedEntry
	pendingOrder  []any
	missed        map[any]any
	missedOrder   []any
}

var _ Cache = (*TransactionalCache)(nil)

// NewTransactional wraps delegate.
func NewTransactional(delegate Cache, opts ...Option) *TransactionalCache {
	cfg := applyOptions(opts)
	return &TransactionalCache{
		delegate: delegate,
		logger:   cfg.logger.WithPrefix("[transactional]"),
		pending:  make(map[any]stagedEntry),
		missed:   make(map[any]any),
	}
}

func (c *TransactionalCache) Delegate() Cache { return c.delegate }
func (c *TransactionalCache) ID() string      { return c.delegate.ID() }
func (c *TransactionalCache) Size() int       { return c.delegate.Size() }

// Get reads from the delegate and records a miss. After Clear it always
// reports a miss until the unit of work ends.
func (c *TransactionalCache) Get(ctx context.Context, key any) (bool, any, error) {
	id, err := Identity(key)
	if err != nil {
		return false, nil, err
	}
	found, val, err := c.delegate.Get(ctx, key)
	if err != nil {
		return false, nil, err
	}
	if !found {
		if _, ok := c.missed[id]; !ok {
			c.missed[id] = key
			c.missedOrder = append(c.missedOrder, id)
		}
	}
	if c.clearOnCommit {
		return false, nil, nil
	}
	return found, val, nil
}

// Put stages the value; the delegate is written on Commit.
func (c *TransactionalCache) Put(_ context.Context, key any, value any) error {
	id, err := Identity(key)
	if err != nil {
		return err
	}
	if _, ok := c.pending[id]; !ok {
		c.pendingOrder = append(c.pendingOrder, id)
	}
	c.pending[id] = stagedEntry{key: key, value: value}
	return nil
}

// Remove is not supported at this layer and always reports a miss.
func (c *TransactionalCache) Remove(context.Context, any) (bool, any, error) {
	return false, nil, nil
}

// Clear discards staged writes and marks the delegate to be cleared on Commit.
func (c *TransactionalCache) Clear(context.Context) error {
	c.clearOnCommit = true
	c.clearPending()
	return nil
}

// Commit clears the delegate if Clear was called, writes every staged entry,
// then writes nil for every missed key that was not staged. The buffer is
// reset whether or not the commit succeeds. If a delegate write fails, the
// remaining missed keys are released as on Rollback and the error is returned.
func (c *TransactionalCache) Commit(ctx context.Context) error {
	defer c.reset()
	if err := c.flush(ctx); err != nil {
		return errors.CombineErrors(err, c.unlockMissed(ctx))
	}
	return nil
}

// Rollback hands every missed key back to the delegate with Remove, then
// resets the buffer. A failing Remove is logged and does not stop the
// remaining releases; all failures are returned together.
func (c *TransactionalCache) Rollback(ctx context.Context) error {
	defer c.reset()
	return c.unlockMissed(ctx)
}

// Pending returns the number of staged writes.
func (c *TransactionalCache) Pending() int {
	return len(c.pending)
}

// Missed returns the number of keys recorded as misses.
func (c *TransactionalCache) Missed() int {
	return len(c.missed)
}

// ClearOnCommit reports whether Clear was called in this unit of work.
func (c *TransactionalCache) ClearOnCommit() bool {
	return c.clearOnCommit
}

func (c *TransactionalCache) flush(ctx context.Context) error {
	if c.clearOnCommit {
		if err := c.delegate.Clear(ctx); err != nil {
			return err
		}
	}
	for _, id := range c.pendingOrder {
		entry := c.pending[id]
		if err := c.delegate.Put(ctx, entry.key, entry.value); err != nil {
			return err
		}
		delete(c.missed, id)
	}
	// Whatever is still in missed was never staged.
	for _, id := range c.missedOrder {
		key, ok := c.missed[id]
		if !ok {
			continue
		}
		if err := c.delegate.Put(ctx, key, nil); err != nil {
			return err
		}
		delete(c.missed, id)
	}
	return nil
}

func (c *TransactionalCache) unlockMissed(ctx context.Context) error {
	var errs error
	for _, id := range c.missedOrder {
		key, ok := c.missed[id]
		if !ok {
			continue
		}
		if _, _, err := c.delegate.Remove(ctx, key); err != nil {
			c.logger.Warn("unexpected error while releasing key %v of cache %s on rollback: %v", key, c.ID(), err)
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

func (c *TransactionalCache) clearPending() {
	clear(c.pending)
	c.pendingOrder = c.pendingOrder[:0]
}

func (c *TransactionalCache) reset() {
	c.clearOnCommit = false
	c.clearPending()
	clear(c.missed)
	c.missedOrder = c.missedOrder[:0]
}
