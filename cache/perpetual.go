package cache

import (
	"context"
)

// PerpetualCache is the base store: an unbounded map with no eviction and no
// locking. It is the only store the Builder layers the standard decorators on.
type PerpetualCache struct {
	id      string
	entries map[any]any
}

var _ Cache = (*PerpetualCache)(nil)

// NewPerpetual returns an empty store identified by id.
func NewPerpetual(id string) *PerpetualCache {
	return &PerpetualCache{id: id, entries: make(map[any]any)}
}

func (c *PerpetualCache) ID() string {
	return c.id
}

func (c *PerpetualCache) Size() int {
	return len(c.entries)
}

func (c *PerpetualCache) Get(_ context.Context, key any) (bool, any, error) {
	id, err := Identity(key)
	if err != nil {
		return false, nil, err
	}
	val, ok := c.entries[id]
	if !ok || val == nil {
		return false, nil, nil
	}
	return true, val, nil
}

func (c *PerpetualCache) Put(_ context.Context, key any, value any) error {
	id, err := Identity(key)
	if err != nil {
		return err
	}
	c.entries[id] = value
	return nil
}

func (c *PerpetualCache) Remove(_ context.Context, key any) (bool, any, error) {
	id, err := Identity(key)
	if err != nil {
		return false, nil, err
	}
	val, ok := c.entries[id]
	if !ok {
		return false, nil, nil
	}
	delete(c.entries, id)
	return val != nil, val, nil
}

func (c *PerpetualCache) Clear(_ context.Context) error {
	clear(c.entries)
	return nil
}

// Contains reports whether key has an entry, including one holding nil.
func (c *PerpetualCache) Contains(key any) bool {
	id, err := Identity(key)
	if err != nil {
		return false
	}
	_, ok := c.entries[id]
	return ok
}
