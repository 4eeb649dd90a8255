package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/keyword"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/metrics"
)

// MaxQueryTokens is how many words of a query are used. The rest are ignored.
const MaxQueryTokens = 5

var tracer = otel.Tracer("classifieds-service/usecase")

type SearchUsecase struct {
	records    RecordCache
	shards     ShardCache
	normalizer *keyword.Normalizer
	logger     *logger.Logger
	metrics    *metrics.MetricsManager
}

func NewSearchUsecase(records RecordCache, shards ShardCache, n *keyword.Normalizer, log *logger.Logger, m *metrics.MetricsManager) *SearchUsecase {
	return &SearchUsecase{
		records:    records,
		shards:     shards,
		normalizer: n,
		logger:     log,
		metrics:    m,
	}
}

// Search returns the listings matching every token of query, newest first.
// An empty query lists the newest published listings.
func (uc *SearchUsecase) Search(ctx context.Context, query string) ([]*domain.Listing, error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "SearchUsecase.Search")
	defer span.End()

	shards := uc.Shards(query)
	span.SetAttributes(attribute.StringSlice("search.shards", shards))

	lists := make([][]string, len(shards))
	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		i, shard := i, shard
		g.Go(func() error {
			permalinks, err := uc.shards.Get(gctx, shard)
			if err != nil {
				return fmt.Errorf("shard %q: %w", shard, err)
			}
			lists[i] = permalinks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		uc.logger.Error("SearchUsecase.Search: failed to fetch shards", "query", query, "error", err)
		return nil, fmt.Errorf("SearchUsecase.Search: %w", err)
	}

	permalinks := intersect(lists)

	resolved := make([]*domain.Listing, len(permalinks))
	g, gctx = errgroup.WithContext(ctx)
	for i, p := range permalinks {
		i, p := i, p
		g.Go(func() error {
			l, err := uc.records.Get(gctx, p)
			if err != nil {
				return fmt.Errorf("listing %q: %w", p, err)
			}
			resolved[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		uc.logger.Error("SearchUsecase.Search: failed to resolve listings", "query", query, "error", err)
		return nil, fmt.Errorf("SearchUsecase.Search: %w", err)
	}

	results := make([]*domain.Listing, 0, len(resolved))
	for _, l := range resolved {
		// Shards may still name a listing deleted since they were cached.
		if l != nil {
			results = append(results, l)
		}
	}
	sort.Slice(results, func(a, b int) bool {
		if results[a].PostingTime != results[b].PostingTime {
			return results[a].PostingTime > results[b].PostingTime
		}
		return results[a].Permalink < results[b].Permalink
	})

	uc.metrics.ObserveSearch(started, len(results))
	span.SetAttributes(attribute.Int("search.results", len(results)))
	uc.logger.Debug("SearchUsecase.Search: done", "query", query, "shards", len(shards), "results", len(results))
	return results, nil
}

// Shards maps a query to the distinct shards it reads, in query order.
func (uc *SearchUsecase) Shards(query string) []string {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return []string{""}
	}
	if len(tokens) > MaxQueryTokens {
		tokens = tokens[:MaxQueryTokens]
	}

	shards := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		s := uc.normalizer.Normalize(t)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		shards = append(shards, s)
	}
	return shards
}

func intersect(lists [][]string) []string {
	if len(lists) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, list := range lists {
		seen := make(map[string]struct{}, len(list))
		for _, p := range list {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			counts[p]++
		}
	}
	out := make([]string, 0, len(lists[0]))
	added := make(map[string]struct{}, len(lists[0]))
	for _, p := range lists[0] {
		if _, dup := added[p]; dup {
			continue
		}
		if counts[p] == len(lists) {
			added[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
