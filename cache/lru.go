package cache

import (
	"container/list"
	"context"
)

type trackedKey struct {
	id  any
	key any
}

// LruCache bounds the number of entries by evicting the least recently used
// key. The recency index is kept separately from the store and eviction is
// only checked on Put.
//
// LruCache is not safe for concurrent use; the Builder wraps it in a
// SynchronizedCache.
type LruCache struct {
	delegate Cache
	size     int
	order    *list.List // front is most recently used
	index    map[any]*list.Element
}

var (
	_ Cache        = (*LruCache)(nil)
	_ Sizer        = (*LruCache)(nil)
	_ Configurable = (*LruCache)(nil)
)

// NewLru wraps delegate with a capacity of DefaultSize.
func NewLru(delegate Cache) *LruCache {
	return &LruCache{
		delegate: delegate,
		size:     DefaultSize,
		order:    list.New(),
		index:    make(map[any]*list.Element),
	}
}

// SetSize sets the capacity. Keys already tracked beyond a smaller capacity
// are shed one per Put.
func (c *LruCache) SetSize(size int) {
	c.size = size
}

// Capacity returns the configured capacity.
func (c *LruCache) Capacity() int {
	return c.size
}

func (c *LruCache) Setters() map[string]Setter {
	return map[string]Setter{"size": Bind(c.SetSize)}
}

func (c *LruCache) Delegate() Cache { return c.delegate }
func (c *LruCache) ID() string      { return c.delegate.ID() }
func (c *LruCache) Size() int       { return c.delegate.Size() }

func (c *LruCache) Get(ctx context.Context, key any) (bool, any, error) {
	id, err := Identity(key)
	if err != nil {
		return false, nil, err
	}
	if el, ok := c.index[id]; ok {
		c.order.MoveToFront(el)
	}
	return c.delegate.Get(ctx, key)
}

func (c *LruCache) Put(ctx context.Context, key any, value any) error {
	id, err := Identity(key)
	if err != nil {
		return err
	}
	if err := c.delegate.Put(ctx, key, value); err != nil {
		return err
	}
	return c.cycle(ctx, id, key)
}

// cycle records key as most recently used and evicts the eldest key once the
// index grows past capacity.
func (c *LruCache) cycle(ctx context.Context, id, key any) error {
	if el, ok := c.index[id]; ok {
		c.order.MoveToFront(el)
	} else {
		c.index[id] = c.order.PushFront(trackedKey{id: id, key: key})
	}
	if c.order.Len() <= c.size {
		return nil
	}
	eldest := c.order.Remove(c.order.Back()).(trackedKey)
	delete(c.index, eldest.id)
	_, _, err := c.delegate.Remove(ctx, eldest.key)
	return err
}

func (c *LruCache) Remove(ctx context.Context, key any) (bool, any, error) {
	return c.delegate.Remove(ctx, key)
}

func (c *LruCache) Clear(ctx context.Context) error {
	c.order.Init()
	clear(c.index)
	return c.delegate.Clear(ctx)
}
