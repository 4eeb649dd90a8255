package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/keyword"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/logger"
)

// EventPublisher announces completed writes to other services.
type EventPublisher interface {
	PublishSaved(ctx context.Context, permalink string, keywords []string) error
	PublishDeleted(ctx context.Context, permalink string, keywords []string) error
}

type ListingUsecase struct {
	repo        domain.ListingRepository
	records     RecordCache
	invalidator *Invalidator
	normalizer  *keyword.Normalizer
	events      EventPublisher
	logger      *logger.Logger
	now         func() time.Time
}

// NewListingUsecase wires the write path. events may be nil.
func NewListingUsecase(
	repo domain.ListingRepository,
	records RecordCache,
	invalidator *Invalidator,
	n *keyword.Normalizer,
	events EventPublisher,
	log *logger.Logger,
) *ListingUsecase {
	return &ListingUsecase{
		repo:        repo,
		records:     records,
		invalidator: invalidator,
		normalizer:  n,
		events:      events,
		logger:      log,
		now:         time.Now,
	}
}

// Get returns the current version of a listing through the record cache.
func (uc *ListingUsecase) Get(ctx context.Context, permalink string) (*domain.Listing, error) {
	l, err := uc.records.Get(ctx, permalink)
	if err != nil {
		uc.logger.Error("ListingUsecase.Get: lookup failed", "permalink", permalink, "error", err)
		return nil, err
	}
	if l == nil {
		return nil, domain.ErrListingNotFound
	}
	return l, nil
}

// Save creates or replaces a listing. A listing without a version is taken to
// be at the current schema version; older versions are migrated first.
func (uc *ListingUsecase) Save(ctx context.Context, l *domain.Listing) (*domain.Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: listing is required", domain.ErrInvalidListingData)
	}
	if l.Version == 0 {
		l.Version = domain.SchemaVersion
	}
	if l.Version > domain.SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", domain.ErrInvalidListingData, l.Version)
	}
	if _, err := domain.ListingMigrations.Migrate(l); err != nil {
		return nil, fmt.Errorf("ListingUsecase.Save: %w", err)
	}
	if err := l.Validate(); err != nil {
		uc.logger.Warn("ListingUsecase.Save: rejected listing", "permalink", l.Permalink, "error", err)
		return nil, err
	}
	if l.Categories == nil {
		l.Categories = []string{}
	}
	if l.Photos == nil {
		l.Photos = []string{}
	}
	if l.Thumbnails == nil {
		l.Thumbnails = []string{}
	}

	previous, err := uc.previous(ctx, l.Permalink)
	if err != nil {
		return nil, err
	}

	if err := uc.repo.Save(ctx, l); err != nil {
		uc.logger.Error("ListingUsecase.Save: failed to persist listing", "permalink", l.Permalink, "error", err)
		return nil, fmt.Errorf("ListingUsecase.Save: %w", err)
	}

	keywords := uc.normalizer.DeriveKeywords(l)
	affected := keywords
	if previous != nil {
		// Shards the listing just left must be evicted too.
		affected = keyword.Union(uc.normalizer.DeriveKeywords(previous), keywords)
	}
	uc.invalidate(ctx, l.Permalink, affected)

	if uc.events != nil {
		if err := uc.events.PublishSaved(ctx, l.Permalink, keywords); err != nil {
			uc.logger.Warn("ListingUsecase.Save: failed to publish event", "permalink", l.Permalink, "error", err)
		}
	}

	uc.logger.Info("ListingUsecase.Save: listing saved", "permalink", l.Permalink, "keywords", len(keywords), "published", l.IsPublished())
	return l, nil
}

// Publish stamps the posting time on a draft, making it searchable. Listings
// that are already published keep their posting time.
func (uc *ListingUsecase) Publish(ctx context.Context, permalink string) (*domain.Listing, error) {
	l, err := uc.previous(ctx, permalink)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, domain.ErrListingNotFound
	}
	if l.IsPublished() {
		return l, nil
	}
	l.PostingTime = domain.EpochSeconds(uc.now())
	return uc.Save(ctx, l)
}

// Delete removes a listing and evicts every shard it appeared in.
func (uc *ListingUsecase) Delete(ctx context.Context, permalink string) error {
	previous, err := uc.previous(ctx, permalink)
	if err != nil {
		return err
	}
	if previous == nil {
		return domain.ErrListingNotFound
	}

	if err := uc.repo.Delete(ctx, permalink); err != nil {
		if errors.Is(err, domain.ErrListingNotFound) {
			return err
		}
		uc.logger.Error("ListingUsecase.Delete: failed to delete listing", "permalink", permalink, "error", err)
		return fmt.Errorf("ListingUsecase.Delete: %w", err)
	}

	keywords := uc.normalizer.DeriveKeywords(previous)
	uc.invalidate(ctx, permalink, keywords)

	if uc.events != nil {
		if err := uc.events.PublishDeleted(ctx, permalink, keywords); err != nil {
			uc.logger.Warn("ListingUsecase.Delete: failed to publish event", "permalink", permalink, "error", err)
		}
	}

	uc.logger.Info("ListingUsecase.Delete: listing deleted", "permalink", permalink)
	return nil
}

// previous reads the stored listing bypassing the cache, at the current
// schema version. It returns nil when nothing is stored.
func (uc *ListingUsecase) previous(ctx context.Context, permalink string) (*domain.Listing, error) {
	l, err := uc.repo.FindByPermalink(ctx, permalink)
	if errors.Is(err, domain.ErrListingNotFound) {
		return nil, nil
	}
	if err != nil {
		uc.logger.Error("ListingUsecase: failed to read stored listing", "permalink", permalink, "error", err)
		return nil, fmt.Errorf("read listing %q: %w", permalink, err)
	}
	if _, err := domain.ListingMigrations.Migrate(l); err != nil {
		return nil, fmt.Errorf("read listing %q: %w", permalink, err)
	}
	return l, nil
}

// invalidate only logs failures. Entries it could not evict expire by TTL.
func (uc *ListingUsecase) invalidate(ctx context.Context, permalink string, keywords []string) {
	if err := uc.invalidator.OnWrite(ctx, permalink, keywords); err != nil {
		uc.logger.Error("ListingUsecase: cache invalidation incomplete", "permalink", permalink, "error", err)
	}
}
