package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/testutil"
)

func newTestGuard(t *testing.T) *RedisGuard {
	if !testutil.EnableIntegrationTest() {
		t.Skip("set RUN_INTEGRATION_TEST to run against Redis")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return NewRedisGuard(rdb, "test-inflight-"+uuid.NewString())
}

func TestRedisGuard_ExclusiveUntilReleased(t *testing.T) {
	g := newTestGuard(t)
	ctx := context.Background()

	release, ok, err := g.Acquire(ctx, "checkin-list_guest-7-42", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = g.Acquire(ctx, "checkin-list_guest-7-42", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "second holder must be refused")

	release()
	release()

	again, ok, err := g.Acquire(ctx, "checkin-list_guest-7-42", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	again()
}

func TestRedisGuard_ExpiredLeaseIsNotFreedByOldHolder(t *testing.T) {
	g := newTestGuard(t)
	ctx := context.Background()

	stale, ok, err := g.Acquire(ctx, "checkout-owner-7", 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	time.Sleep(120 * time.Millisecond)

	fresh, ok, err := g.Acquire(ctx, "checkout-owner-7", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer fresh()

	stale()
	_, ok, err = g.Acquire(ctx, "checkout-owner-7", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "the stale release must not free the new lease")
}
