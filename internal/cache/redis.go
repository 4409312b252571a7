// Package cache keeps each customer's request list in Redis between
// mutations.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/uara/dashboard/internal/model"
	"github.com/uara/dashboard/pkg/logger"
)

const (
	requestsKeyPrefix = "dashboard:requests:"
	// DefaultTTL bounds how long a list may outlive a missed invalidation.
	DefaultTTL = 30 * time.Second
)

// Config holds Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RequestCache caches request lists per customer. Redis failures are logged
// and treated as misses.
type RequestCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewRequestCache creates a new RequestCache.
func NewRequestCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *RequestCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RequestCache{client: client, ttl: ttl, logger: log}
}

func requestsKey(userID string) string {
	return requestsKeyPrefix + userID
}

// GetRequests returns the cached list for userID.
func (c *RequestCache) GetRequests(ctx context.Context, userID string) ([]model.Request, bool) {
	data, err := c.client.Get(ctx, requestsKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("request cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil, false
	}

	var reqs []model.Request
	if err := json.Unmarshal(data, &reqs); err != nil {
		c.logger.Warn("request cache entry unreadable", zap.String("user_id", userID), zap.Error(err))
		c.Invalidate(ctx, userID)
		return nil, false
	}
	return reqs, true
}

// SetRequests stores the list for userID.
func (c *RequestCache) SetRequests(ctx context.Context, userID string, reqs []model.Request) {
	data, err := json.Marshal(reqs)
	if err != nil {
		c.logger.Warn("request cache encode failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, requestsKey(userID), data, c.jitteredTTL()).Err(); err != nil {
		c.logger.Warn("request cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Invalidate drops the cached list for userID.
func (c *RequestCache) Invalidate(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, requestsKey(userID)).Err(); err != nil {
		c.logger.Warn("request cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Ping checks the Redis connection.
func (c *RequestCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// jitteredTTL spreads expiry over ttl to ttl*1.2.
func (c *RequestCache) jitteredTTL() time.Duration {
	return c.ttl + time.Duration(rand.Int64N(int64(c.ttl)/5+1))
}
