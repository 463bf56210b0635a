package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(10)

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_ExpiredEntriesMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(10)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_DeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(10)

	require.NoError(t, c.Set(ctx, "answer:1", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "answer:2", []byte("b"), time.Minute))
	require.NoError(t, c.Set(ctx, "other:1", []byte("c"), time.Minute))

	require.NoError(t, c.DeleteByPrefix(ctx, "answer:"))

	_, err := c.Get(ctx, "answer:1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "answer:2")
	assert.ErrorIs(t, err, ErrCacheMiss)

	got, err := c.Get(ctx, "other:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), got)
}

func TestMemoryClient_EvictsWhenFull(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(2)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 2*time.Minute))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 3*time.Minute))

	// "a" expires soonest, so it is the one evicted.
	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "b")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "c")
	assert.NoError(t, err)
}
