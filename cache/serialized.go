package cache

import (
	"context"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

type serializedValue struct {
	typ  reflect.Type
	data []byte
}

// SerializedCache stores msgpack encoded copies of values and decodes a fresh
// copy, of the same Go type, on every Get. Callers can mutate what they read
// or wrote without affecting the cached entry.
//
// Only exported struct fields survive the copy.
type SerializedCache struct {
	delegate Cache
}

var _ Cache = (*SerializedCache)(nil)

func NewSerialized(delegate Cache) *SerializedCache {
	return &SerializedCache{delegate: delegate}
}

func (c *SerializedCache) Delegate() Cache { return c.delegate }
func (c *SerializedCache) ID() string      { return c.delegate.ID() }
func (c *SerializedCache) Size() int       { return c.delegate.Size() }

func (c *SerializedCache) Put(ctx context.Context, key any, value any) error {
	if value == nil {
		return c.delegate.Put(ctx, key, nil)
	}
	data, err := msgpack.Marshal(value)
	if err != nil {
		return errors.Wrapf(ErrSerialization, "cache %s failed to make a copy of %T: %v", c.ID(), value, err)
	}
	return c.delegate.Put(ctx, key, &serializedValue{typ: reflect.TypeOf(value), data: data})
}

func (c *SerializedCache) Get(ctx context.Context, key any) (bool, any, error) {
	found, val, err := c.delegate.Get(ctx, key)
	if err != nil || !found {
		return false, nil, err
	}
	copied, err := c.decode(val)
	if err != nil {
		return false, nil, err
	}
	return true, copied, nil
}

func (c *SerializedCache) Remove(ctx context.Context, key any) (bool, any, error) {
	found, val, err := c.delegate.Remove(ctx, key)
	if err != nil || !found {
		return false, nil, err
	}
	copied, err := c.decode(val)
	if err != nil {
		return false, nil, err
	}
	return true, copied, nil
}

func (c *SerializedCache) Clear(ctx context.Context) error {
	return c.delegate.Clear(ctx)
}

func (c *SerializedCache) decode(val any) (any, error) {
	sv, ok := val.(*serializedValue)
	if !ok {
		return val, nil
	}
	ptr := reflect.New(sv.typ)
	if err := msgpack.Unmarshal(sv.data, ptr.Interface()); err != nil {
		return nil, errors.Wrapf(ErrSerialization, "cache %s failed to decode %s: %v", c.ID(), sv.typ, err)
	}
	return ptr.Elem().Interface(), nil
}
