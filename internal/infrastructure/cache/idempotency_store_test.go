package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	won, err := store.MarkProcessed(ctx, "event-1:handler-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, won, "first mark should win")

	won, err = store.MarkProcessed(ctx, "event-1:handler-a", time.Minute)
	require.NoError(t, err)
	assert.False(t, won, "second mark should lose")

	processed, err := store.IsProcessed(ctx, "event-1:handler-a")
	require.NoError(t, err)
	assert.True(t, processed)

	processed, err = store.IsProcessed(ctx, "event-2:handler-a")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestInMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	won, err := store.MarkProcessed(ctx, "short-lived", time.Millisecond)
	require.NoError(t, err)
	assert.True(t, won)

	time.Sleep(5 * time.Millisecond)

	processed, err := store.IsProcessed(ctx, "short-lived")
	require.NoError(t, err)
	assert.False(t, processed, "expired entry should read as unprocessed")

	won, err = store.MarkProcessed(ctx, "short-lived", time.Minute)
	require.NoError(t, err)
	assert.True(t, won, "expired entry should be claimable again")
}

func TestRedisIdempotencyStore_MarkProcessed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisIdempotencyStoreWithClient(client, "")
	defer store.Close()

	ctx := context.Background()

	won, err := store.MarkProcessed(ctx, "event-1:handler-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = store.MarkProcessed(ctx, "event-1:handler-a", time.Minute)
	require.NoError(t, err)
	assert.False(t, won)

	processed, err := store.IsProcessed(ctx, "event-1:handler-a")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestRedisIdempotencyStore_TTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisIdempotencyStoreWithClient(client, "test:")
	defer store.Close()

	ctx := context.Background()

	won, err := store.MarkProcessed(ctx, "event-1", time.Second)
	require.NoError(t, err)
	assert.True(t, won)

	mr.FastForward(2 * time.Second)

	processed, err := store.IsProcessed(ctx, "event-1")
	require.NoError(t, err)
	assert.False(t, processed)
}
