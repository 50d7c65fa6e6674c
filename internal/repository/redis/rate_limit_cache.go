package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"identity-service/internal/client"
	"identity-service/internal/util"
)

const (
	rateLimitPrefix      = "rate_limit:"
	emailRateLimitPrefix = "email_rate_limit:"
	ipRateLimitPrefix    = "ip_rate_limit:"
)

// RateLimitCache throttles credential operations per hashed email and per
// source IP. Counters live in Redis with the window as their TTL, so a quiet
// key simply ages out.
type RateLimitCache struct {
	client *client.RedisClient
}

func NewRateLimitCache(client *client.RedisClient) *RateLimitCache {
	return &RateLimitCache{client: client}
}

func (c *RateLimitCache) IncrementCounter(key string, ttl time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := c.client.IncrWithExpire(ctx, rateLimitPrefix+key, ttl)
	if err != nil {
		util.Error("Failed to increment rate limit counter",
			zap.String("key", key),
			zap.Error(err))
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return int(count), nil
}

func (c *RateLimitCache) ResetCounter(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.client.Del(ctx, rateLimitPrefix+key); err != nil {
		return fmt.Errorf("failed to reset rate limit counter: %w", err)
	}
	return nil
}

// Email-scoped limits key on the hashed email so raw addresses never reach
// Redis.

func (c *RateLimitCache) IncrementEmailCounter(emailHash, operation string, ttl time.Duration) (int, error) {
	key := fmt.Sprintf("%s%s:%s", emailRateLimitPrefix, emailHash, operation)
	return c.IncrementCounter(key, ttl)
}

func (c *RateLimitCache) ResetEmailCounter(emailHash, operation string) error {
	key := fmt.Sprintf("%s%s:%s", emailRateLimitPrefix, emailHash, operation)
	return c.ResetCounter(key)
}

// IP-scoped limits guard the HTTP boundary ahead of any per-email check, so
// one source cannot spray attempts across many addresses.

func (c *RateLimitCache) IncrementIPCounter(ipAddress string, ttl time.Duration) (int, error) {
	return c.IncrementCounter(ipRateLimitPrefix+ipAddress, ttl)
}
