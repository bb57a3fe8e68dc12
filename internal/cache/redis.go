package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/biomarker-insight-server/internal/domain"
)

// keyPrefix namespaces evaluation entries in a shared Redis instance.
const keyPrefix = "biomarker:eval:"

// RedisCache is an evaluation cache backed by Redis, for deployments where
// multiple server instances should share results.
type RedisCache struct {
	logger *logrus.Logger
	client *redis.Client
}

// NewRedisCache connects to Redis at the given URL and verifies the
// connection.
func NewRedisCache(ctx context.Context, logger *logrus.Logger, redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.WithField("addr", opts.Addr).Info("Connected to Redis evaluation cache")
	return &RedisCache{logger: logger, client: client}, nil
}

// Get returns the cached evaluation for key, if present.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.ReportEvaluation, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var eval domain.ReportEvaluation
	if err := json.Unmarshal(data, &eval); err != nil {
		// A corrupt entry is treated as a miss; it will be overwritten.
		c.logger.WithError(err).WithField("key", key).Warn("Dropping undecodable cache entry")
		return nil, false, nil
	}
	return &eval, true, nil
}

// Set stores an evaluation under key with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, eval *domain.ReportEvaluation, ttl time.Duration) error {
	data, err := json.Marshal(eval)
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ domain.EvaluationCache = (*RedisCache)(nil)
