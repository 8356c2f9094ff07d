// Package lock provides the Redis-backed in-flight guard used when several
// replicas serve the same event.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/checkin"
)

// releaseScript deletes the key only while it still holds our token, so a
// holder whose lease expired cannot free someone else's.
var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// RedisGuard implements checkin.Guard with SET NX PX leases.
type RedisGuard struct {
	rdb    *redis.Client
	prefix string
}

var _ checkin.Guard = (*RedisGuard)(nil)

// NewRedisGuard returns a guard storing keys under prefix.
func NewRedisGuard(rdb *redis.Client, prefix string) *RedisGuard {
	if prefix == "" {
		prefix = "inflight"
	}
	return &RedisGuard{rdb: rdb, prefix: prefix}
}

func (g *RedisGuard) key(k string) string { return g.prefix + ":" + k }

// Acquire leases key for ttl. It reports false when another holder, on any
// replica, has it.
func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (checkin.ReleaseFunc, bool, error) {
	token := uuid.NewString()
	ok, err := g.rdb.SetNX(ctx, g.key(key), token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		// The caller's context may already be cancelled; release anyway.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, g.rdb, []string{g.key(key)}, token).Err()
	}, true, nil
}
