package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyNormalizes(t *testing.T) {
	assert.Equal(t, "backtest:bitcoin:0.05", Key("backtest", " Bitcoin ", "0.05"))
}

func TestTTLCacheExpiry(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache()
	c.now = func() time.Time { return clock }

	require.NoError(t, c.SetBytes(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.SetBytes(ctx, "forever", []byte("x"), 0))

	b, ok, err := c.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), b)

	clock = clock.Add(2 * time.Minute)
	_, ok, _ = c.GetBytes(ctx, "k")
	assert.False(t, ok)
	_, ok, _ = c.GetBytes(ctx, "forever")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestTTLCacheCopiesValue(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache()
	buf := []byte("abc")
	require.NoError(t, c.SetBytes(ctx, "k", buf, 0))
	buf[0] = 'z'

	b, _, _ := c.GetBytes(ctx, "k")
	assert.Equal(t, "abc", string(b))
}

func TestRedisCacheHitMissSet(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, "signalbot:")

	mock.ExpectGet("signalbot:hit").SetVal("payload")
	mock.ExpectGet("signalbot:miss").RedisNil()
	mock.ExpectSet("signalbot:k", []byte("v"), time.Minute).SetVal("OK")

	b, ok, err := c.GetBytes(ctx, "hit")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", string(b))

	_, ok, err = c.GetBytes(ctx, "miss")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetBytes(ctx, "k", []byte("v"), time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}
