package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerpetualGetPutRemove(t *testing.T) {
	ctx := context.Background()
	c := NewPerpetual("test")
	assert.Equal(t, "test", c.ID())

	found, val, err := c.Get(ctx, "missing")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)

	assert.NoError(t, c.Put(ctx, "a", 1))
	found, val, err = c.Get(ctx, "a")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, val)
	assert.Equal(t, 1, c.Size())

	found, val, err = c.Remove(ctx, "a")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, val)

	found, _, err = c.Remove(ctx, "a")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, c.Size())
}

func TestPerpetualNilValueReadsAsMiss(t *testing.T) {
	ctx := context.Background()
	c := NewPerpetual("test")
	assert.NoError(t, c.Put(ctx, "k", nil))
	assert.True(t, c.Contains("k"))
	assert.Equal(t, 1, c.Size())
	found, _, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, c.Clear(ctx))
	assert.False(t, c.Contains("k"))
}

func TestUnhashableKey(t *testing.T) {
	ctx := context.Background()
	c := NewPerpetual("test")
	err := c.Put(ctx, []string{"a"}, 1)
	assert.ErrorIs(t, err, ErrUnhashableKey)
	_, _, err = c.Get(ctx, map[string]int{})
	assert.ErrorIs(t, err, ErrUnhashableKey)
}

func TestCacheKeyDoesNotAliasStringKeys(t *testing.T) {
	ctx := context.Background()
	c := NewPerpetual("mixed")
	require.NoError(t, c.Put(ctx, "", "plain"))

	found, _, err := c.Get(ctx, mustKey(t))
	assert.NoError(t, err)
	assert.False(t, found)

	k := mustKey(t, "stmt", 1)
	require.NoError(t, c.Put(ctx, k, "row"))
	found, _, err = c.Get(ctx, k.identity.String())
	assert.NoError(t, err)
	assert.False(t, found)

	found, val, err := c.Get(ctx, mustKey(t, "stmt", 1))
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "row", val)
	found, val, err = c.Get(ctx, "")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "plain", val)
	assert.Equal(t, 2, c.Size())
}

func TestLayersAndUnwrap(t *testing.T) {
	base := NewPerpetual("chain")
	lru := NewLru(base)
	sync := NewSynchronized(lru)

	layers := Layers(sync)
	require.Len(t, layers, 3)
	assert.Same(t, sync, layers[0])
	assert.Same(t, lru, layers[1])
	assert.Same(t, base, layers[2])

	found, ok := Unwrap[*LruCache](sync)
	assert.True(t, ok)
	assert.Same(t, lru, found)

	_, ok = Unwrap[*BlockingCache](sync)
	assert.False(t, ok)
}

func TestTypedGet(t *testing.T) {
	ctx := context.Background()
	c := NewPerpetual("typed")
	require.NoError(t, c.Put(ctx, "n", 42))

	found, n, err := Get[int](ctx, c, "n")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 42, n)

	found, s, err := Get[string](ctx, c, "n")
	assert.Error(t, err)
	assert.False(t, found)
	assert.Equal(t, "", s)

	found, _, err = Get[int](ctx, c, "missing")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestExecCacheMiss(t *testing.T) {
	ctx := context.Background()
	c := NewPerpetual("exec")

	invoked := false
	found, val, err := Exec(ctx, c, "key", func(ctx context.Context) (string, bool, error) {
		invoked = true
		return "fresh-value", true, nil
	})
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "fresh-value", val)
	assert.True(t, invoked)

	cachedFound, cached, err := Get[string](ctx, c, "key")
	assert.NoError(t, err)
	assert.True(t, cachedFound)
	assert.Equal(t, "fresh-value", cached)
}

func TestExecCacheHit(t *testing.T) {
	ctx := context.Background()
	c := NewPerpetual("exec")
	require.NoError(t, c.Put(ctx, "key", "cached-value"))

	invoked := false
	found, val, err := Exec(ctx, c, "key", func(ctx context.Context) (string, bool, error) {
		invoked = true
		return "fresh-value", true, nil
	})
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "cached-value", val)
	assert.False(t, invoked)
}

func TestExecInvokerErrorReleasesLock(t *testing.T) {
	ctx := WithOwner(context.Background(), "owner")
	bc := NewBlocking(NewPerpetual("exec"), WithTimeout(50*time.Millisecond), quiet())

	expectedErr := errors.New("invoke failed")
	found, val, err := Exec(ctx, bc, "key", func(ctx context.Context) (string, bool, error) {
		return "", false, expectedErr
	})
	assert.ErrorIs(t, err, expectedErr)
	assert.False(t, found)
	assert.Equal(t, "", val)

	_, held := bc.HeldBy("key")
	assert.False(t, held)
}

func TestExecNotFoundStoresNil(t *testing.T) {
	ctx := context.Background()
	base := NewPerpetual("exec")
	bc := NewBlocking(base, quiet())

	found, _, err := Exec(ctx, bc, "key", func(ctx context.Context) (int, bool, error) {
		return 0, false, nil
	})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.True(t, base.Contains("key"))
	_, held := bc.HeldBy("key")
	assert.False(t, held)
}

func TestExecCollapsesStampede(t *testing.T) {
	bc := NewBlocking(NewSynchronized(NewPerpetual("stampede")), quiet())
	var invocations atomic.Int32
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := WithOwner(context.Background(), fmt.Sprintf("worker-%d", i))
			_, val, err := Exec(ctx, bc, "key", func(ctx context.Context) (string, bool, error) {
				invocations.Add(1)
				time.Sleep(10 * time.Millisecond)
				return "value", true, nil
			})
			if err == nil && val != "value" {
				err = errors.Newf("unexpected value %q", val)
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), invocations.Load())
}
