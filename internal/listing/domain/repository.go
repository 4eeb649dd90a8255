package domain

import (
	"context"
	"time"
)

// ListingRepository is the storage backend.
type ListingRepository interface {
	// FindByPermalink returns ErrListingNotFound when nothing is stored.
	// The listing is returned as stored, possibly at an older schema version.
	FindByPermalink(ctx context.Context, permalink string) (*Listing, error)
	// Save upserts the listing together with its derived keyword set.
	Save(ctx context.Context, listing *Listing) error
	Delete(ctx context.Context, permalink string) error
	// QueryPermalinks returns up to limit permalinks of published listings
	// whose keyword set contains keyword (all published listings when keyword
	// is empty), newest posting time first.
	QueryPermalinks(ctx context.Context, keyword string, limit int) ([]string, error)
}

// CacheBackend is the shared key/value cache. Get returns ErrCacheMiss for an
// absent key. A ttl of zero means no expiry.
type CacheBackend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
