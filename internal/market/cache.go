package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// staleFactor is how far past its TTL an entry may still be served
// after a full chain failure.
const staleFactor = 10

// cacheEntry wraps a cached payload with its fetch time so freshness can
// be judged independently of the redis expiry, which is set to the stale
// window rather than the TTL.
type cacheEntry struct {
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetched_at"`
	Source    string          `json:"source"`
}

// Cache is a write-through redis cache for provider responses, keyed by
// (operation, ticker, source).
type Cache struct {
	redis *redis.Client
	log   zerolog.Logger
}

// NewCache creates a provider response cache
func NewCache(redisClient *redis.Client, logger zerolog.Logger) *Cache {
	return &Cache{redis: redisClient, log: logger}
}

func cacheKey(op, ticker, source string) string {
	return fmt.Sprintf("market:%s:%s:%s", op, ticker, source)
}

// Get returns the cached payload if it is younger than maxAge. Redis
// errors are logged and treated as a miss.
func (c *Cache) Get(ctx context.Context, op, ticker, source string, maxAge time.Duration, target interface{}) bool {
	key := cacheKey(op, ticker, source)

	cached, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("Redis error during cache lookup")
		}
		return false
	}

	var entry cacheEntry
	if err := json.Unmarshal([]byte(cached), &entry); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to unmarshal cache entry")
		return false
	}
	if time.Since(entry.FetchedAt) > maxAge {
		return false
	}
	if err := json.Unmarshal(entry.Payload, target); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to unmarshal cached payload")
		return false
	}

	c.log.Debug().Str("key", key).Msg("Cache hit")
	return true
}

// GetStale returns a payload within the stale window (10x TTL). Used only
// after every provider in the chain has failed.
func (c *Cache) GetStale(ctx context.Context, op, ticker, source string, ttl time.Duration, target interface{}) bool {
	return c.Get(ctx, op, ticker, source, ttl*staleFactor, target)
}

// Put stores a successful provider response. The redis expiry is the
// stale window so the entry survives long enough to back a degraded
// read; failures are logged and never fatal.
func (c *Cache) Put(ctx context.Context, op, ticker, source string, ttl time.Duration, payload interface{}) {
	key := cacheKey(op, ticker, source)

	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to marshal payload for cache")
		return
	}
	entry, err := json.Marshal(cacheEntry{
		Payload:   data,
		FetchedAt: time.Now().UTC(),
		Source:    source,
	})
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to marshal cache entry")
		return
	}

	if err := c.redis.Set(ctx, key, entry, ttl*staleFactor).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to write cache entry")
		return
	}
	c.log.Debug().Str("key", key).Dur("ttl", ttl).Msg("Cached provider response")
}
