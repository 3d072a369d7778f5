package cache

import (
	"container/list"
	"context"
)

// FifoCache bounds the number of entries by evicting the oldest inserted key.
// Reads do not affect eviction order and re-putting a key keeps its position.
// Not safe for concurrent use.
type FifoCache struct {
	delegate Cache
	size     int
	queue    *list.List // front is oldest
	index    map[any]*list.Element
}

var (
	_ Cache        = (*FifoCache)(nil)
	_ Sizer        = (*FifoCache)(nil)
	_ Configurable = (*FifoCache)(nil)
)

// NewFifo wraps delegate with a capacity of DefaultSize.
func NewFifo(delegate Cache) *FifoCache {
	return &FifoCache{
		delegate: delegate,
		size:     DefaultSize,
		queue:    list.New(),
		index:    make(map[any]*list.Element),
	}
}

func (c *FifoCache) SetSize(size int) {
	c.size = size
}

func (c *FifoCache) Setters() map[string]Setter {
	return map[string]Setter{"size": Bind(c.SetSize)}
}

func (c *FifoCache) Delegate() Cache { return c.delegate }
func (c *FifoCache) ID() string      { return c.delegate.ID() }
func (c *FifoCache) Size() int       { return c.delegate.Size() }

func (c *FifoCache) Get(ctx context.Context, key any) (bool, any, error) {
	return c.delegate.Get(ctx, key)
}

func (c *FifoCache) Put(ctx context.Context, key any, value any) error {
	id, err := Identity(key)
	if err != nil {
		return err
	}
	if _, ok := c.index[id]; !ok {
		c.index[id] = c.queue.PushBack(trackedKey{id: id, key: key})
		if c.queue.Len() > c.size {
			oldest := c.queue.Remove(c.queue.Front()).(trackedKey)
			delete(c.index, oldest.id)
			if _, _, err := c.delegate.Remove(ctx, oldest.key); err != nil {
				return err
			}
		}
	}
	return c.delegate.Put(ctx, key, value)
}

func (c *FifoCache) Remove(ctx context.Context, key any) (bool, any, error) {
	id, err := Identity(key)
	if err != nil {
		return false, nil, err
	}
	if el, ok := c.index[id]; ok {
		c.queue.Remove(el)
		delete(c.index, id)
	}
	return c.delegate.Remove(ctx, key)
}

func (c *FifoCache) Clear(ctx context.Context) error {
	c.queue.Init()
	clear(c.index)
	return c.delegate.Clear(ctx)
}
