package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/metrics"
)

const listingKeyPrefix = "listing:"

var tracer = otel.Tracer("classifieds-service/cache")

// ListingKey is the cache key of a single listing.
func ListingKey(permalink string) string {
	return listingKeyPrefix + permalink
}

// ListingCache memoizes listing lookups by permalink. Absent listings are
// cached too (as JSON null) and are invalidated the same way as hits.
type ListingCache struct {
	backend domain.CacheBackend
	repo    domain.ListingRepository
	ttl     time.Duration
	logger  *logger.Logger
	metrics *metrics.MetricsManager
}

func NewListingCache(backend domain.CacheBackend, repo domain.ListingRepository, ttl time.Duration, log *logger.Logger, m *metrics.MetricsManager) *ListingCache {
	return &ListingCache{
		backend: backend,
		repo:    repo,
		ttl:     ttl,
		logger:  log,
		metrics: m,
	}
}

// Get returns the listing at the current schema version, or nil when no
// listing is stored under permalink. A failing cache backend is bypassed.
func (c *ListingCache) Get(ctx context.Context, permalink string) (*domain.Listing, error) {
	ctx, span := tracer.Start(ctx, "ListingCache.Get")
	defer span.End()
	span.SetAttributes(attribute.String("listing.permalink", permalink))

	key := ListingKey(permalink)
	cached, err := c.backend.Get(ctx, key)
	switch {
	case err == nil:
		var listing *domain.Listing
		uerr := json.Unmarshal(cached, &listing)
		if uerr == nil {
			c.metrics.CacheHit(metrics.CacheListing)
			span.SetAttributes(attribute.Bool("cache.hit", true))
			// Entries written before a schema bump are still at the old version.
			if listing != nil {
				if err := c.migrate(listing); err != nil {
					return nil, err
				}
			}
			return listing, nil
		}
		c.logger.Error("ListingCache.Get: corrupted cache entry, dropping it", "key", key, "error", uerr)
		if derr := c.backend.Delete(ctx, key); derr != nil {
			c.logger.Warn("ListingCache.Get: failed to delete corrupted entry", "key", key, "error", derr)
		}
	case errors.Is(err, domain.ErrCacheMiss):
	default:
		c.metrics.CacheError(metrics.CacheListing, "get")
		c.logger.Warn("ListingCache.Get: cache unavailable, reading storage", "key", key, "error", err)
	}

	c.metrics.CacheMiss(metrics.CacheListing)
	span.SetAttributes(attribute.Bool("cache.hit", false))

	listing, err := c.load(ctx, permalink)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, listing)
	return listing, nil
}

// Invalidate evicts the entry for permalink, present or not.
func (c *ListingCache) Invalidate(ctx context.Context, permalink string) error {
	key := ListingKey(permalink)
	if err := c.backend.Delete(ctx, key); err != nil {
		c.metrics.CacheError(metrics.CacheListing, "delete")
		return fmt.Errorf("ListingCache.Invalidate %q: %w", permalink, err)
	}
	c.metrics.Invalidated(metrics.CacheListing)
	return nil
}

func (c *ListingCache) load(ctx context.Context, permalink string) (*domain.Listing, error) {
	listing, err := c.repo.FindByPermalink(ctx, permalink)
	if err != nil {
		if errors.Is(err, domain.ErrListingNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("ListingCache.load %q: %w", permalink, err)
	}

	if err := c.migrate(listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (c *ListingCache) migrate(listing *domain.Listing) error {
	applied, err := domain.ListingMigrations.Migrate(listing)
	if err != nil {
		c.logger.Error("ListingCache.migrate: migration failed", "permalink", listing.Permalink, "version", listing.Version, "error", err)
		return fmt.Errorf("ListingCache.migrate %q: %w", listing.Permalink, err)
	}
	if applied > 0 {
		c.metrics.MigrationApplied()
		c.logger.Debug("ListingCache.migrate: migrated listing", "permalink", listing.Permalink, "steps", applied, "version", listing.Version)
	}
	return nil
}

func (c *ListingCache) store(ctx context.Context, key string, listing *domain.Listing) {
	data, err := json.Marshal(listing)
	if err != nil {
		c.logger.Warn("ListingCache.store: failed to marshal listing", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.metrics.CacheError(metrics.CacheListing, "set")
		c.logger.Warn("ListingCache.store: failed to cache listing", "key", key, "error", err)
	}
}
