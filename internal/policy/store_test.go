package policy

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/pair-detector/internal/constants"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
)

func setupTestRedis(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   1, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return client
}

func TestNewRedisStore_NilClient(t *testing.T) {
	_, err := NewRedisStore(nil)
	assert.Error(t, err)
}

func TestRedisStore_EmptyLoadsDefaults(t *testing.T) {
	store, err := NewRedisStore(setupTestRedis(t))
	require.NoError(t, err)

	p, locked, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultFilterPolicy(), p)
	assert.False(t, locked)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewRedisStore(client)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.SaveToggle(ctx, ToggleUnverifiedContracts, false))
	require.NoError(t, store.SaveToggle(ctx, ToggleNoSocialChannel, false))
	require.NoError(t, store.SaveLocked(ctx, true))

	// garbage entries are ignored
	require.NoError(t, client.HSet(ctx, constants.RedisKeyPolicyFilters, "nonsense", "false").Err())
	require.NoError(t, client.HSet(ctx, constants.RedisKeyPolicyFilters, string(ToggleFailedTx), "maybe").Err())

	p, locked, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, p.AllowUnverifiedContracts)
	assert.False(t, p.AllowNoSocialChannel)
	assert.True(t, p.AllowFailedTx)
	assert.True(t, locked)

	require.NoError(t, store.Reset(ctx))
	p, locked, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultFilterPolicy(), p)
	assert.False(t, locked)
}

func TestRedisStore_BacksState(t *testing.T) {
	store, err := NewRedisStore(setupTestRedis(t))
	require.NoError(t, err)
	ctx := context.Background()

	s := NewState(store, nil)
	_, err = s.Set(ctx, ToggleLowLiquidity, false)
	require.NoError(t, err)
	_, err = s.ToggleLocked(ctx)
	require.NoError(t, err)

	restarted := NewState(store, nil)
	require.NoError(t, restarted.Load(ctx))
	assert.False(t, restarted.Snapshot().AllowLowLiquidity)
	assert.True(t, restarted.Locked())
}

func TestRedisStore_RejectsUnknownToggle(t *testing.T) {
	store, err := NewRedisStore(setupTestRedis(t))
	require.NoError(t, err)
	assert.ErrorIs(t, store.SaveToggle(context.Background(), Toggle("x"), true), ErrUnknownToggle)
}
