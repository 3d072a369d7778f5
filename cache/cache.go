package cache

import (
	"context"
	"reflect"

	"github.com/cockroachdb/errors"
)

// Cache is the contract every layer of a cache chain implements. The innermost
// layer is a store (usually PerpetualCache); every other layer is a decorator
// that exclusively owns the Cache it wraps.
//
// Get and Remove never fail for a missing key, they report found=false.
// A nil value may be stored and is counted by Size, but reads as a miss.
type Cache interface {
	// ID returns the immutable identifier of the cache.
	ID() string
	// Size returns the number of entries held by the innermost store.
	Size() int
	// Get retrieves a value. Returns (false, nil, nil) on miss.
	Get(ctx context.Context, key any) (bool, any, error)
	// Put stores a value.
	Put(ctx context.Context, key any, value any) error
	// Remove deletes a value and returns it. Some decorators give Remove a
	// different meaning (see BlockingCache).
	Remove(ctx context.Context, key any) (bool, any, error)
	// Clear drops every entry.
	Clear(ctx context.Context) error
}

// Decorated is implemented by every layer that wraps another Cache.
type Decorated interface {
	Delegate() Cache
}

// Identifier is implemented by keys that supply their own map identity
// instead of being compared with ==.
type Identifier interface {
	Identity() any
}

// Identity returns the comparable value used to index key in maps.
func Identity(key any) (any, error) {
	if id, ok := key.(Identifier); ok {
		return id.Identity(), nil
	}
	if key == nil {
		return nil, nil
	}
	if !reflect.ValueOf(key).Comparable() {
		return nil, errors.Wrapf(ErrUnhashableKey, "key of type %T", key)
	}
	return key, nil
}

// Layers returns the chain from the outermost layer inwards.
func Layers(c Cache) []Cache {
	var out []Cache
	for c != nil {
		out = append(out, c)
		d, ok := c.(Decorated)
		if !ok {
			break
		}
		c = d.Delegate()
	}
	return out
}

// Unwrap walks the chain and returns the first layer of type T.
func Unwrap[T Cache](c Cache) (T, bool) {
	for _, layer := range Layers(c) {
		if t, ok := layer.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}

// Get retrieves a typed value from the cache.
func Get[T any](ctx context.Context, c Cache, key any) (bool, T, error) {
	found, val, err := c.Get(ctx, key)
	if !found || err != nil {
		var zero T
		return false, zero, err
	}
	if typed, ok := val.(T); ok {
		return true, typed, nil
	}
	var zero T
	return false, zero, errors.Newf("cache: cannot convert value of type %T to %T", val, zero)
}

// Invoker is a function that produces a value of type T.
// The bool return indicates whether a value was found. Return false to signal
// "not found"; a nil is then written so that any lock held on the key is released.
type Invoker[T any] func(ctx context.Context) (T, bool, error)

// Exec is a cache-aside helper. It checks the cache for key first. On a miss
// it calls invoke and stores the result with Put. If invoke fails, the key is
// handed back with Remove, which releases a BlockingCache lock without
// deleting anything, and the invoke error is returned.
func Exec[T any](ctx context.Context, c Cache, key any, invoke Invoker[T]) (bool, T, error) {
	var zero T
	found, val, err := Get[T](ctx, c, key)
	if err != nil {
		return false, zero, err
	}
	if found {
		return true, val, nil
	}

	result, ok, err := invoke(ctx)
	if err != nil {
		if _, _, rerr := c.Remove(ctx, key); rerr != nil {
			return false, zero, errors.CombineErrors(err, rerr)
		}
		return false, zero, err
	}
	if !ok {
		return false, zero, c.Put(ctx, key, nil)
	}
	if err := c.Put(ctx, key, result); err != nil {
		return false, zero, err
	}
	return true, result, nil
}
