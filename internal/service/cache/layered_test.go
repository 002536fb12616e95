package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCache struct {
	*TTLCache
	gets int
	err  error
}

func (c *countingCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	c.gets++
	if c.err != nil {
		return nil, false, c.err
	}
	return c.TTLCache.GetBytes(ctx, key)
}

func (c *countingCache) SetBytes(ctx context.Context, key string, v []byte, ttl time.Duration) error {
	if c.err != nil {
		return c.err
	}
	return c.TTLCache.SetBytes(ctx, key, v, ttl)
}

func TestLayeredServesFromMemory(t *testing.T) {
	ctx := context.Background()
	l2 := &countingCache{TTLCache: NewTTLCache()}
	c := NewLayered(l2, time.Minute)

	require.NoError(t, c.SetBytes(ctx, "k", []byte("report"), time.Hour))
	b, ok, err := c.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("report"), b)
	assert.Zero(t, l2.gets)
}

func TestLayeredFillsMemoryFromShared(t *testing.T) {
	ctx := context.Background()
	l2 := &countingCache{TTLCache: NewTTLCache()}
	require.NoError(t, l2.TTLCache.SetBytes(ctx, "k", []byte("v"), 0))
	c := NewLayered(l2, time.Minute)

	for i := 0; i < 3; i++ {
		_, ok, err := c.GetBytes(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, l2.gets)
}

func TestLayeredSharedErrors(t *testing.T) {
	ctx := context.Background()
	c := NewLayered(&countingCache{TTLCache: NewTTLCache(), err: errors.New("redis down")}, time.Minute)

	assert.Error(t, c.SetBytes(ctx, "k", []byte("v"), time.Minute))
	_, ok, err := c.GetBytes(ctx, "k")
	assert.Error(t, err)
	assert.False(t, ok)
}
