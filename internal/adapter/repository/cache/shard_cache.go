package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/metrics"
)

// ShardSize caps how many permalinks a shard holds. Shards only ever know the
// ShardSize most recent matches of their keyword.
const ShardSize = 30

const shardKeyPrefix = "shard:"

// HomeShard is the shard of all published listings.
const HomeShard = ""

// ShardKey is the cache key of the shard for a normalized keyword.
func ShardKey(keyword string) string {
	return shardKeyPrefix + keyword
}

// ShardCache memoizes, per normalized keyword, the permalinks of the newest
// listings carrying that keyword.
type ShardCache struct {
	backend domain.CacheBackend
	repo    domain.ListingRepository
	ttl     time.Duration
	logger  *logger.Logger
	metrics *metrics.MetricsManager
}

func NewShardCache(backend domain.CacheBackend, repo domain.ListingRepository, ttl time.Duration, log *logger.Logger, m *metrics.MetricsManager) *ShardCache {
	return &ShardCache{
		backend: backend,
		repo:    repo,
		ttl:     ttl,
		logger:  log,
		metrics: m,
	}
}

// Get returns the permalinks of shard, newest first.
func (c *ShardCache) Get(ctx context.Context, shard string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "ShardCache.Get")
	defer span.End()
	span.SetAttributes(attribute.String("shard", shard))

	key := ShardKey(shard)
	cached, err := c.backend.Get(ctx, key)
	switch {
	case err == nil:
		var permalinks []string
		uerr := json.Unmarshal(cached, &permalinks)
		if uerr == nil {
			c.metrics.CacheHit(metrics.CacheShard)
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return permalinks, nil
		}
		c.logger.Error("ShardCache.Get: corrupted cache entry, dropping it", "key", key, "error", uerr)
		if derr := c.backend.Delete(ctx, key); derr != nil {
			c.logger.Warn("ShardCache.Get: failed to delete corrupted entry", "key", key, "error", derr)
		}
	case errors.Is(err, domain.ErrCacheMiss):
	default:
		c.metrics.CacheError(metrics.CacheShard, "get")
		c.logger.Warn("ShardCache.Get: cache unavailable, reading storage", "key", key, "error", err)
	}

	c.metrics.CacheMiss(metrics.CacheShard)
	span.SetAttributes(attribute.Bool("cache.hit", false))

	permalinks, err := c.repo.QueryPermalinks(ctx, shard, ShardSize)
	if err != nil {
		return nil, fmt.Errorf("ShardCache.Get %q: %w", shard, err)
	}
	if permalinks == nil {
		permalinks = []string{}
	}

	data, err := json.Marshal(permalinks)
	if err != nil {
		c.logger.Warn("ShardCache.Get: failed to marshal shard", "key", key, "error", err)
		return permalinks, nil
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.metrics.CacheError(metrics.CacheShard, "set")
		c.logger.Warn("ShardCache.Get: failed to cache shard", "key", key, "error", err)
	}
	return permalinks, nil
}

// Invalidate evicts the cached permalinks of shard.
func (c *ShardCache) Invalidate(ctx context.Context, shard string) error {
	if err := c.backend.Delete(ctx, ShardKey(shard)); err != nil {
		c.metrics.CacheError(metrics.CacheShard, "delete")
		return fmt.Errorf("ShardCache.Invalidate %q: %w", shard, err)
	}
	c.metrics.Invalidated(metrics.CacheShard)
	return nil
}
