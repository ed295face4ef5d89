package redis

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shrinkray-io/shrinkray/config"
)

const defaultDialTimeout = 5 * time.Second

// NewClient builds a redis client from app config. Connectivity is not
// verified here: the cache facade owns probing and gracefully runs without
// Redis, so construction must never fail on an unreachable server. Returns
// nil when Redis is disabled by config.
func NewClient(cfg config.RedisConfig) *redis.Client {
	if !cfg.Enabled {
		return nil
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 6379
	}

	return redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", host, port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: defaultDialTimeout,
	})
}
