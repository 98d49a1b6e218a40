package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/user/content-crawler/internal/entity"
	"github.com/user/content-crawler/internal/repository"
	"github.com/user/content-crawler/pkg/utils"
)

const (
	dedupKeyPrefix  = "dedup:"
	defaultDedupTTL = time.Hour
)

// DuplicateCacheImpl memoizes duplicate hits of another checker in Redis.
// Misses are never cached, so a newly imported record is seen immediately.
// A hit whose record is removed elsewhere keeps matching until it expires.
type DuplicateCacheImpl struct {
	client *redis.Client
	next   repository.DuplicateChecker
	ttl    time.Duration
	logger *zap.Logger
}

// NewDuplicateCache wraps next with a Redis cache of positive lookups.
// Hits always expire; a non-positive ttl falls back to one hour.
func NewDuplicateCache(client *redis.Client, next repository.DuplicateChecker, ttl time.Duration, logger *zap.Logger) *DuplicateCacheImpl {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &DuplicateCacheImpl{client: client, next: next, ttl: ttl, logger: logger}
}

// generateKey creates a consistent Redis key for a URL and kind by hashing the URL.
func (c *DuplicateCacheImpl) generateKey(normalizedURL string, kind entity.ContentKind) string {
	return fmt.Sprintf("%s%s:%s", dedupKeyPrefix, kind, utils.HashURL(normalizedURL))
}

// FindDuplicate serves cached hits and falls through to the wrapped checker.
// Cache failures are logged and never fail the lookup.
func (c *DuplicateCacheImpl) FindDuplicate(ctx context.Context, normalizedURL string, kind entity.ContentKind, excludeJobID string) (string, bool, error) {
	key := c.generateKey(normalizedURL, kind)

	ref, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil && ref != entity.JobRef(excludeJobID):
		return ref, true, nil
	case err != nil && !errors.Is(err, redis.Nil):
		c.logger.Warn("Dedup cache read failed", zap.String("url", normalizedURL), zap.Error(err))
	}

	ref, found, err := c.next.FindDuplicate(ctx, normalizedURL, kind, excludeJobID)
	if err != nil || !found {
		return ref, found, err
	}

	if err := c.client.Set(ctx, key, ref, c.ttl).Err(); err != nil {
		// Not a critical error, just log it.
		c.logger.Warn("Dedup cache write failed", zap.String("url", normalizedURL), zap.Error(err))
	}
	return ref, true, nil
}

// Forget removes a memoized hit, used when a job is re-crawled.
func (c *DuplicateCacheImpl) Forget(ctx context.Context, normalizedURL string, kind entity.ContentKind) error {
	return c.client.Del(ctx, c.generateKey(normalizedURL, kind)).Err()
}
