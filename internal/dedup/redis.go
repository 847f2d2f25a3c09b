// Package dedup provides an optional Redis-backed duplicate fast path.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Gate answers whether a transaction ID has been seen before. The store's
// uniqueness constraint remains the authority; a gate is only a fast path
// that lets redeliveries skip the database.
type Gate interface {
	// Seen reports whether the transaction ID was already marked. Errors
	// must fail open: the caller proceeds to the store.
	Seen(ctx context.Context, transactionID string) (bool, error)

	// Mark records the transaction ID. Callers mark only after the store
	// holds a terminal entry for the ID; an aborted unit stays unmarked so
	// a redelivery reaches the store again.
	Mark(ctx context.Context, transactionID string) error
}

// RedisGate tracks seen transaction IDs in a Redis set, one set per
// product, the same shape as a flash-sale already-purchased set.
type RedisGate struct {
	client *redis.Client
	key    string
}

// NewRedisGate connects to Redis and verifies the connection.
func NewRedisGate(ctx context.Context, addr string, productID int64) (*RedisGate, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("dedup: ping redis: %w", err)
	}
	return &RedisGate{
		client: client,
		key:    fmt.Sprintf("orders:seen:{%d}", productID),
	}, nil
}

// Seen checks set membership without mutating the set.
func (g *RedisGate) Seen(ctx context.Context, transactionID string) (bool, error) {
	seen, err := g.client.SIsMember(ctx, g.key, transactionID).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: sismember: %w", err)
	}
	return seen, nil
}

// Mark adds the transaction ID to the set.
func (g *RedisGate) Mark(ctx context.Context, transactionID string) error {
	if err := g.client.SAdd(ctx, g.key, transactionID).Err(); err != nil {
		return fmt.Errorf("dedup: sadd: %w", err)
	}
	return nil
}

// Reset clears the seen set, for reruns against the same Redis.
func (g *RedisGate) Reset(ctx context.Context) error {
	return g.client.Del(ctx, g.key).Err()
}

// Close releases the Redis connection.
func (g *RedisGate) Close() error { return g.client.Close() }
