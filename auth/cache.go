package auth

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// TokenCache persists the most recent token outside the process so a restart
// can resume with a still-valid token. Both operations fail soft: a cache
// miss or backend error reads as "no cached token" and a failed save is
// dropped silently, matching the secure-store semantics the token cache had
// on device.
type TokenCache interface {
	Get(ctx context.Context, key string) string
	Save(ctx context.Context, key, value string)
}

// InitCache selects a cache from the environment: "redis" uses REDIS_ADDR /
// REDIS_PASSWORD, anything else is in-memory.
func InitCache() TokenCache {
	if os.Getenv("TOKEN_CACHE") == "redis" {
		addr := os.Getenv("REDIS_ADDR")
		logrus.WithField("addr", addr).Info("Using redis token cache")
		return newRedisCache(addr, os.Getenv("REDIS_PASSWORD"))
	}
	return newMemoryCache()
}

type memoryCache struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{tokens: make(map[string]string)}
}

func (c *memoryCache) Get(_ context.Context, key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens[key]
}

func (c *memoryCache) Save(_ context.Context, key, value string) {
	c.mu.Lock()
	c.tokens[key] = value
	c.mu.Unlock()
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisCache(addr, password string) *redisCache {
	return &redisCache{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		// Tokens are short-lived; anything older than a few refresh cycles is
		// dead weight.
		ttl: 5 * time.Minute,
	}
}

func (c *redisCache) Get(ctx context.Context, key string) string {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return ""
	}
	if err != nil {
		logrus.WithError(err).Debug("token cache read failed")
		return ""
	}
	return val
}

func (c *redisCache) Save(ctx context.Context, key, value string) {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		logrus.WithError(err).Debug("token cache write failed")
	}
}
