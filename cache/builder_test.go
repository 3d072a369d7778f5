package cache

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingInit struct {
	*PerpetualCache
}

func (failingInit) Initialize() error {
	return errors.New("cannot connect")
}

func TestBuilderDefaults(t *testing.T) {
	c, err := NewBuilder("users").Options(quiet()).Build()
	require.NoError(t, err)
	assert.Equal(t, "users", c.ID())

	layers := Layers(c)
	require.Len(t, layers, 4)
	assert.IsType(t, &SynchronizedCache{}, layers[0])
	assert.IsType(t, &LoggingCache{}, layers[1])
	assert.IsType(t, &LruCache{}, layers[2])
	assert.IsType(t, &PerpetualCache{}, layers[3])
	assert.Equal(t, DefaultSize, layers[2].(*LruCache).Capacity())
}

func TestBuilderFullChain(t *testing.T) {
	c, err := NewBuilder("users").
		AddDecorator(FifoDecorator).
		AddDecorator(nil).
		Size(10).
		ClearInterval(time.Minute).
		ReadWrite(true).
		Blocking(true).
		Properties(Properties{"timeout": "250"}).
		Options(quiet()).
		Build()
	require.NoError(t, err)

	layers := Layers(c)
	require.Len(t, layers, 7)
	assert.IsType(t, &BlockingCache{}, layers[0])
	assert.IsType(t, &SynchronizedCache{}, layers[1])
	assert.IsType(t, &LoggingCache{}, layers[2])
	assert.IsType(t, &SerializedCache{}, layers[3])
	assert.IsType(t, &ScheduledCache{}, layers[4])
	assert.IsType(t, &FifoCache{}, layers[5])
	assert.IsType(t, &PerpetualCache{}, layers[6])

	assert.Equal(t, 250*time.Millisecond, layers[0].(*BlockingCache).Timeout())
	assert.Equal(t, time.Minute, layers[4].(*ScheduledCache).ClearInterval())
	assert.Equal(t, 10, layers[5].(*FifoCache).size)
}

func TestBuilderCustomDecoratorsInOrder(t *testing.T) {
	c, err := NewBuilder("chain").
		AddDecorator(LruDecorator).
		AddDecorator(WeakDecorator).
		Properties(Properties{"size": "8"}).
		Options(quiet()).
		Build()
	require.NoError(t, err)

	weak, ok := Unwrap[*WeakCache](c)
	require.True(t, ok)
	lru, ok := Unwrap[*LruCache](c)
	require.True(t, ok)
	assert.Same(t, lru, weak.Delegate())
	assert.Equal(t, 8, weak.hardLinks)
	assert.Equal(t, 8, lru.Capacity())

	c, err = NewBuilder("chain").
		AddDecorator(LruDecorator).
		AddDecorator(WeakDecorator).
		Properties(Properties{"size": "8"}).
		Size(16).
		Options(quiet()).
		Build()
	require.NoError(t, err)
	weak, _ = Unwrap[*WeakCache](c)
	lru, _ = Unwrap[*LruCache](c)
	assert.Equal(t, 16, weak.hardLinks)
	assert.Equal(t, 8, lru.Capacity())
}

func TestBuilderCustomImplementation(t *testing.T) {
	var built *spyCache
	c, err := NewBuilder("custom").
		Implementation(func(id string, _ ...Option) (Cache, error) {
			built = newSpy(id)
			return built, nil
		}).
		AddDecorator(LruDecorator).
		Blocking(true).
		Options(quiet()).
		Build()
	require.NoError(t, err)

	layers := Layers(c)
	require.Len(t, layers, 2)
	assert.IsType(t, &LoggingCache{}, layers[0])
	assert.Same(t, built, layers[1])
	assert.Equal(t, "custom", c.ID())
}

func TestBuilderCustomImplementationAlreadyLogging(t *testing.T) {
	c, err := NewBuilder("custom").
		Implementation(func(id string, opts ...Option) (Cache, error) {
			return NewLogging(NewPerpetual(id), opts...), nil
		}).
		Options(quiet()).
		Build()
	require.NoError(t, err)
	assert.Len(t, Layers(c), 2)
}

func TestBuilderErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
	}{
		{"implementation fails", NewBuilder("broken").Implementation(func(string, ...Option) (Cache, error) {
			return nil, errors.New("no backend")
		})},
		{"implementation returns nil", NewBuilder("broken").Implementation(func(string, ...Option) (Cache, error) {
			return nil, nil
		})},
		{"decorator fails", NewBuilder("broken").AddDecorator(func(Cache, ...Option) (Cache, error) {
			return nil, errors.New("no decorator")
		})},
		{"bad property", NewBuilder("broken").Properties(Properties{"size": "large"})},
		{"bad blocking property", NewBuilder("broken").Blocking(true).Properties(Properties{"timeout": "eventually"})},
		{"initializer fails", NewBuilder("broken").Implementation(func(id string, _ ...Option) (Cache, error) {
			return failingInit{NewPerpetual(id)}, nil
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tt.builder.Options(quiet()).Build()
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.Nil(t, c)
		})
	}
}

func TestBuiltCacheBehaves(t *testing.T) {
	ctx := WithOwner(context.Background(), "owner")
	c, err := NewBuilder("behaviour").Size(2).Blocking(true).Options(quiet(), WithTimeout(time.Second)).Build()
	require.NoError(t, err)

	for _, k := range []string{"a", "b", "c"} {
		found, _, err := c.Get(ctx, k)
		require.NoError(t, err)
		require.False(t, found)
		require.NoError(t, c.Put(ctx, k, k+"!"))
	}
	assert.Equal(t, 2, c.Size())
	assertMissCtx(t, c, ctx, "a")
	require.NoError(t, c.Put(ctx, "a", "a!"))
	found, val, err := c.Get(ctx, "c")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "c!", val)
}
