// Package cache wraps an optional Redis client behind a fail-soft facade.
// Every operation degrades to a miss or a no-op when Redis is absent or
// unreachable; callers never observe an error from this package.
package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	opTimeout = 5 * time.Second

	// Connectivity probing is bounded: after maxConnectAttempts the facade
	// disables itself for the rest of the process lifetime.
	maxConnectAttempts = 4
	backoffStep        = 100 * time.Millisecond
)

// Cache is the process-wide cache facade. A facade built without a client
// behaves exactly like one whose probe exhausted its retries.
type Cache struct {
	client  *redis.Client
	logger  *zap.Logger
	enabled atomic.Bool
}

// New builds a facade around client and starts the background connectivity
// probe. A nil client yields a permanently disabled facade.
func New(client *redis.Client, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{client: client, logger: logger}
	if client != nil {
		go c.probe()
	}
	return c
}

// probe pings Redis with increasing backoff. Startup never blocks on it, and
// the service behaves identically while it runs or after it gives up.
func (c *Cache) probe() {
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		err := c.client.Ping(ctx).Err()
		cancel()
		if err == nil {
			c.enabled.Store(true)
			c.logger.Info("cache connected")
			return
		}
		c.logger.Warn("cache ping failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
		time.Sleep(time.Duration(attempt) * backoffStep)
	}
	c.logger.Warn("cache unavailable, continuing without caching",
		zap.Int("attempts", maxConnectAttempts))
}

// Available reports current connectivity. Observability only: no caller may
// gate correctness on it.
func (c *Cache) Available() bool {
	return c.enabled.Load()
}

// Get loads the JSON value stored under key into dest. Returns false on miss,
// on any Redis or decode error, and whenever the cache is disabled.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if !c.enabled.Load() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("cache entry undecodable", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set stores value as JSON under key with the given TTL. Errors are logged
// and swallowed.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !c.enabled.Load() {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache value unencodable", zap.String("key", key), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes key. Errors are logged and swallowed.
func (c *Cache) Delete(ctx context.Context, key string) {
	if !c.enabled.Load() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
	}
}
