package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisStore on top of it
func setupTestRedis(t *testing.T, opts RedisOptions) (*RedisStore, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := NewRedisStore(client, opts)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return store, mr, cleanup
}

func TestRedisStore_GetMissing(t *testing.T) {
	store, _, cleanup := setupTestRedis(t, RedisOptions{})
	defer cleanup()

	_, err := store.Get(context.Background(), "cart:nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_SetUsesPrefixAndTTL(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, RedisOptions{Prefix: "storefront:", TTL: 24 * time.Hour})
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "cart:s1", `{"lines":[]}`))

	stored, err := mr.Get("storefront:cart:s1")
	require.NoError(t, err)
	assert.Equal(t, `{"lines":[]}`, stored)

	ttl := mr.TTL("storefront:cart:s1")
	assert.True(t, ttl >= 24*time.Hour, "TTL should be at least base TTL")
	assert.True(t, ttl < 25*time.Hour, "TTL should be base + max jitter")

	v, err := store.Get(ctx, "cart:s1")
	require.NoError(t, err)
	assert.Equal(t, `{"lines":[]}`, v)
}

func TestRedisStore_RejectsOversizedValue(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, RedisOptions{MaxValueBytes: 16})
	defer cleanup()

	err := store.Set(context.Background(), "cart", strings.Repeat("x", 17))
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.False(t, mr.Exists("cart"))
}

func TestRedisStore_OOMMapsToQuota(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, RedisOptions{})
	defer cleanup()

	ctx := context.Background()
	// establish the pooled connection before the server starts failing
	require.NoError(t, store.Set(ctx, "warmup", "v"))

	mr.SetError("OOM command not allowed when used memory > 'maxmemory'.")
	err := store.Set(ctx, "cart", "v")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestRedisStore_OtherErrorsAreNotQuota(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, RedisOptions{})
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "warmup", "v"))

	mr.SetError("ERR write failed")
	err := store.Set(ctx, "cart", "v")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrQuotaExceeded)
	assert.ErrorContains(t, err, "redis set failed")
}

func TestRedisStore_Remove(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, RedisOptions{})
	defer cleanup()

	mr.Set("cart", "v")
	require.NoError(t, store.Remove(context.Background(), "cart"))
	assert.False(t, mr.Exists("cart"))

	// Deleting non-existent key should not error
	assert.NoError(t, store.Remove(context.Background(), "cart"))
}
