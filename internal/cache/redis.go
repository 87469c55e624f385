package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// redisClient is the subset of redis.UniversalClient used by RedisCache.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client redisClient
}

// NewRedis wraps an existing Redis client.
func NewRedis(client redisClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, eris.Wrapf(err, "cache: redis get %s", key)
	}
	return val, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return eris.Wrapf(c.client.Set(ctx, key, val, ttl).Err(), "cache: redis set %s", key)
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return eris.Wrapf(c.client.Del(ctx, key).Err(), "cache: redis del %s", key)
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return eris.Wrap(c.client.Ping(ctx).Err(), "cache: redis ping")
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
