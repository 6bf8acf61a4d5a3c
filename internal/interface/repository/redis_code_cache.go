package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kiosk-flight-service/internal/domain/repository"

	"github.com/redis/go-redis/v9"
)

// RedisCodeCache stores short code -> flight id mappings in Redis
type RedisCodeCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCodeCache creates a code cache with the given key prefix and TTL
func NewRedisCodeCache(client *redis.Client, prefix string, ttl time.Duration) repository.CodeCache {
	if prefix == "" {
		prefix = "shortcode"
	}
	return &RedisCodeCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisCodeCache) key(code string) string {
	return fmt.Sprintf("%s:%s", c.prefix, code)
}

// Get returns the cached flight id for code
func (c *RedisCodeCache) Get(ctx context.Context, code string) (string, bool, error) {
	id, err := c.client.Get(ctx, c.key(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return id, true, nil
}

// Set caches the mapping for the configured TTL
func (c *RedisCodeCache) Set(ctx context.Context, code string, flightID string) error {
	return c.client.Set(ctx, c.key(code), flightID, c.ttl).Err()
}

// Delete evicts a code
func (c *RedisCodeCache) Delete(ctx context.Context, code string) error {
	return c.client.Del(ctx, c.key(code)).Err()
}
