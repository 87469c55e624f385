// Package cache holds serialized care plan responses keyed by plant.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/plantcare/internal/config"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = eris.New("cache: miss")

// Cache stores opaque byte values with a TTL. Implementations must return
// exactly the bytes that were stored.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// New builds the cache selected by cfg.Driver.
func New(ctx context.Context, cfg config.CacheConfig, redisCfg config.RedisConfig) (Cache, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		opts, err := redis.ParseURL(redisCfg.URL)
		if err != nil {
			return nil, eris.Wrap(err, "cache: parse redis url")
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "cache: ping redis")
		}
		return NewRedis(client), nil
	default:
		return nil, eris.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}

// PlanKey returns the cache key for a plant's current plan response.
func PlanKey(prefix, plantID string) string {
	return prefix + plantID
}
