package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *LocalCache {
	c, err := NewCache(Config{GCInterval: time.Minute})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestGetSet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	err := c.Set(ctx, "key1", "value1", 0)
	require.NoError(t, err)

	v, err := c.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, "value1", v)
}

func TestGetMissing(t *testing.T) {
	c := newTestCache(t)

	_, err := c.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetTTLExpires(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Millisecond))

	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	time.Sleep(20 * time.Millisecond)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDel(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	require.NoError(t, c.Set(ctx, "b", "2", 0))
	require.NoError(t, c.Del(ctx, "a", "b"))

	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelClearsCollections(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SAdd(ctx, "set", "m1"))
	require.NoError(t, c.LPush(ctx, "list", "v1"))
	require.NoError(t, c.Del(ctx, "set", "list"))

	members, err := c.SMembers(ctx, "set")
	require.NoError(t, err)
	assert.Empty(t, members)

	vals, err := c.LRange(ctx, "list", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, vals)
}

func TestSetOps(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SAdd(ctx, "s", "a", "b", "a"))

	members, err := c.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	require.NoError(t, c.SRem(ctx, "s", "a"))
	members, err = c.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)
}

func TestListOps(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.LPush(ctx, "l", "first"))
	require.NoError(t, c.LPush(ctx, "l", "second"))
	require.NoError(t, c.LPush(ctx, "l", "third"))

	vals, err := c.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, vals)

	vals, err = c.LRange(ctx, "l", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second"}, vals)

	require.NoError(t, c.LTrim(ctx, "l", 0, 1))
	vals, err = c.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second"}, vals)
}

func TestLRangeOutOfBounds(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	vals, err := c.LRange(ctx, "empty", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, vals)

	require.NoError(t, c.LPush(ctx, "l", "only"))
	vals, err = c.LRange(ctx, "l", 5, 10)
	require.NoError(t, err)
	assert.Empty(t, vals)
}
