package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/keyword"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/logger"
)

const listingsCollectionName = "listings"

// ListingRepository stores listings keyed by permalink, together with the
// keyword set derived from them on every save.
type ListingRepository struct {
	collection *mongo.Collection
	normalizer *keyword.Normalizer
	logger     *logger.Logger
}

func NewListingRepository(db *mongo.Database, n *keyword.Normalizer, log *logger.Logger) *ListingRepository {
	return &ListingRepository{
		collection: db.Collection(listingsCollectionName),
		normalizer: n,
		logger:     log,
	}
}

// EnsureIndexes creates the indexes shard queries rely on.
func (r *ListingRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "keywords", Value: 1}, {Key: "posting_time", Value: -1}},
			Options: options.Index().SetName("keywords_posting_time"),
		},
		{
			Keys:    bson.D{{Key: "posting_time", Value: -1}},
			Options: options.Index().SetName("posting_time"),
		},
	}
	names, err := r.collection.Indexes().CreateMany(ctx, models)
	if err != nil {
		r.logger.Error("ListingRepository.EnsureIndexes: failed", "error", err)
		return fmt.Errorf("failed to create listing indexes: %w", err)
	}
	r.logger.Info("ListingRepository.EnsureIndexes: indexes ready", "indexes", names)
	return nil
}

func (r *ListingRepository) FindByPermalink(ctx context.Context, permalink string) (*domain.Listing, error) {
	var doc listingDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": permalink}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrListingNotFound
		}
		r.logger.Error("ListingRepository.FindByPermalink: failed", "permalink", permalink, "error", err)
		return nil, fmt.Errorf("failed to find listing %q: %w", permalink, err)
	}
	return toListingEntity(&doc), nil
}

// Save upserts l and recomputes its keywords.
func (r *ListingRepository) Save(ctx context.Context, l *domain.Listing) error {
	doc := toListingDocument(l, r.normalizer.DeriveKeywords(l))
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": l.Permalink}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		r.logger.Error("ListingRepository.Save: failed", "permalink", l.Permalink, "error", err)
		return fmt.Errorf("failed to save listing %q: %w", l.Permalink, err)
	}
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, permalink string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": permalink})
	if err != nil {
		r.logger.Error("ListingRepository.Delete: failed", "permalink", permalink, "error", err)
		return fmt.Errorf("failed to delete listing %q: %w", permalink, err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

// QueryPermalinks reads only the keys of the newest published listings
// carrying shard, or of all published listings when shard is empty.
func (r *ListingRepository) QueryPermalinks(ctx context.Context, shard string, limit int) ([]string, error) {
	filter := shardFilter(shard)
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "posting_time", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("ListingRepository.QueryPermalinks: find failed", "shard", shard, "error", err)
		return nil, fmt.Errorf("failed to query shard %q: %w", shard, err)
	}
	defer cursor.Close(ctx)

	var docs []permalinkDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode shard %q: %w", shard, err)
	}
	permalinks := make([]string, 0, len(docs))
	for _, d := range docs {
		permalinks = append(permalinks, d.Permalink)
	}
	return permalinks, nil
}

func shardFilter(shard string) bson.M {
	filter := bson.M{"posting_time": bson.M{"$gt": 0}}
	if shard != "" {
		filter["keywords"] = shard
	}
	return filter
}
