// Package cache provides evaluation-result caches behind a single interface:
// an in-process LRU for single-node deployments and a Redis backend for
// shared deployments. Caching is an optimization only; a miss or backend
// failure never fails an evaluation.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/biomarker-insight-server/internal/domain"
)

// MemoryCache is an in-process LRU evaluation cache with entry expiry.
type MemoryCache struct {
	logger *logrus.Logger
	lru    *expirable.LRU[string, *domain.ReportEvaluation]
}

// NewMemoryCache creates a memory cache holding up to size entries, each
// expiring after ttl. The per-call ttl on Set is ignored by this backend;
// the cache-wide ttl governs.
func NewMemoryCache(logger *logrus.Logger, size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 1024
	}
	return &MemoryCache{
		logger: logger,
		lru:    expirable.NewLRU[string, *domain.ReportEvaluation](size, nil, ttl),
	}
}

// Get returns the cached evaluation for key, if present and unexpired.
func (c *MemoryCache) Get(_ context.Context, key string) (*domain.ReportEvaluation, bool, error) {
	eval, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return eval, true, nil
}

// Set stores an evaluation under key.
func (c *MemoryCache) Set(_ context.Context, key string, eval *domain.ReportEvaluation, _ time.Duration) error {
	evicted := c.lru.Add(key, eval)
	if evicted {
		c.logger.WithField("key", key).Debug("Memory cache evicted oldest entry")
	}
	return nil
}

var _ domain.EvaluationCache = (*MemoryCache)(nil)
