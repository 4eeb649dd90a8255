package usecase

import (
	"context"
	"errors"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/logger"
)

// RecordCache is the per-permalink listing cache.
type RecordCache interface {
	// Get returns nil, nil when no listing exists under permalink.
	Get(ctx context.Context, permalink string) (*domain.Listing, error)
	Invalidate(ctx context.Context, permalink string) error
}

// ShardCache is the per-keyword permalink cache.
type ShardCache interface {
	Get(ctx context.Context, shard string) ([]string, error)
	Invalidate(ctx context.Context, shard string) error
}

// Invalidator evicts every cache entry a listing write can make stale.
type Invalidator struct {
	records RecordCache
	shards  ShardCache
	logger  *logger.Logger
}

func NewInvalidator(records RecordCache, shards ShardCache, log *logger.Logger) *Invalidator {
	return &Invalidator{records: records, shards: shards, logger: log}
}

// OnWrite evicts the record of permalink, the shard of each keyword and the
// home shard. keywords must cover the listing before and after the write.
// Every eviction is attempted; failures are joined into the result.
func (i *Invalidator) OnWrite(ctx context.Context, permalink string, keywords []string) error {
	var errs []error
	if err := i.records.Invalidate(ctx, permalink); err != nil {
		i.logger.Error("Invalidator.OnWrite: failed to evict listing", "permalink", permalink, "error", err)
		errs = append(errs, err)
	}

	shards := make([]string, 0, len(keywords)+1)
	seen := make(map[string]struct{}, len(keywords)+1)
	for _, k := range append([]string{""}, keywords...) {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		shards = append(shards, k)
	}

	for _, shard := range shards {
		if err := i.shards.Invalidate(ctx, shard); err != nil {
			i.logger.Error("Invalidator.OnWrite: failed to evict shard", "permalink", permalink, "shard", shard, "error", err)
			errs = append(errs, err)
		}
	}

	i.logger.Debug("Invalidator.OnWrite: evicted", "permalink", permalink, "shards", len(shards), "failures", len(errs))
	return errors.Join(errs...)
}
