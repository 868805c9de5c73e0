// Package store persists small key-value records: user settings and the
// exchange-rate cache.
package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/gunta/skypilot/internal/config"
)

// KV is a durable string key-value store
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Open builds the backend selected by cfg.Store.Driver.
func Open(cfg *config.Config, redisClient *redis.Client) (KV, error) {
	switch cfg.Store.Driver {
	case "", "file":
		return NewFileStore(cfg.Store.Path), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("store driver redis requires a redis client")
		}
		return NewRedisStore(redisClient, "skypilot:"), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
