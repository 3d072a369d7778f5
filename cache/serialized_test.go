package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	Name string
	Tags []string
}

func TestSerializedReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewSerialized(NewPerpetual("rw"))

	original := account{Name: "alice", Tags: []string{"admin"}}
	require.NoError(t, c.Put(ctx, "alice", original))
	original.Tags[0] = "mutated"

	found, val, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	require.IsType(t, account{}, val)
	read := val.(account)
	assert.Equal(t, []string{"admin"}, read.Tags)

	read.Tags[0] = "changed by reader"
	assertHit(t, c, "alice", account{Name: "alice", Tags: []string{"admin"}})
}

func TestSerializedPointerValues(t *testing.T) {
	ctx := context.Background()
	c := NewSerialized(NewPerpetual("rw"))

	original := &account{Name: "bob"}
	require.NoError(t, c.Put(ctx, "bob", original))

	found, val, err := c.Get(ctx, "bob")
	require.NoError(t, err)
	require.True(t, found)
	copied, ok := val.(*account)
	require.True(t, ok)
	assert.NotSame(t, original, copied)
	assert.Equal(t, "bob", copied.Name)

	found, val, err = c.Remove(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "bob", val.(*account).Name)
	assert.Equal(t, 0, c.Size())
}

func TestSerializedNilAndUnencodable(t *testing.T) {
	ctx := context.Background()
	base := NewPerpetual("rw")
	c := NewSerialized(base)

	require.NoError(t, c.Put(ctx, "nil", nil))
	assert.True(t, base.Contains("nil"))
	assertMiss(t, c, "nil")

	err := c.Put(ctx, "chan", make(chan int))
	assert.ErrorIs(t, err, ErrSerialization)
	assert.False(t, base.Contains("chan"))
}
