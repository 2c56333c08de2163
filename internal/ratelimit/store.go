package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore is the injected seam for a shared counter backend in
// horizontally scaled deployments. Incr atomically increments the
// counter for the key's current window and returns the new count; the
// counter must expire at resetAt.
type CounterStore interface {
	Incr(ctx context.Context, key string, resetAt time.Time) (int64, error)
}

// RedisCounterStore backs window counters with Redis so all replicas
// share one count per key.
type RedisCounterStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCounterStore creates a Redis-backed counter store.
func NewRedisCounterStore(client *redis.Client, keyPrefix string) *RedisCounterStore {
	if keyPrefix == "" {
		keyPrefix = "flynnai:ratelimit:"
	}
	return &RedisCounterStore{client: client, keyPrefix: keyPrefix}
}

// Incr increments the counter and aligns its expiry with the window's
// reset time in a single pipeline round trip.
func (r *RedisCounterStore) Incr(ctx context.Context, key string, resetAt time.Time) (int64, error) {
	fullKey := r.keyPrefix + key

	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, fullKey)
	pipe.PExpireAt(ctx, fullKey, resetAt)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis pipeline failed: %w", err)
	}
	return incrCmd.Val(), nil
}
