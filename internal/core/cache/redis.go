package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/markdave123-py/newsdesk/internal/core"
)

const keyPrefix = "cache:response:"

// RedisCache keeps answers in Redis so several API replicas share them.
// Expiry is delegated to the key TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, hash string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, keyPrefix+hash).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (c *RedisCache) Put(ctx context.Context, hash string, answer string) error {
	if err := c.rdb.Set(ctx, keyPrefix+hash, answer, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

var (
	_ core.ResponseCache = (*RedisCache)(nil)
	_ core.Pinger        = (*RedisCache)(nil)
)
