//go:build integration

package mongodb

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/keyword"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/logger"
)

var testDB *mongo.Database

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not construct pool: %s", err)
	}
	if err := pool.Client.Ping(); err != nil {
		log.Fatalf("Could not connect to Docker: %s", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mongo",
		Tag:        "6.0",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Could not start MongoDB resource: %s", err)
	}
	uri := fmt.Sprintf("mongodb://%s", resource.GetHostPort("27017/tcp"))

	var client *mongo.Client
	if err := pool.Retry(func() error {
		var errRetry error
		client, errRetry = mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
		if errRetry != nil {
			return errRetry
		}
		return client.Ping(context.Background(), nil)
	}); err != nil {
		log.Fatalf("Could not connect to MongoDB: %s", err)
	}
	testDB = client.Database("classifieds_test")

	code := m.Run()

	_ = client.Disconnect(context.Background())
	if err := pool.Purge(resource); err != nil {
		log.Printf("Could not purge MongoDB resource: %s", err)
	}
	os.Exit(code)
}

func newTestRepo(t *testing.T) *ListingRepository {
	t.Helper()
	require.NoError(t, testDB.Collection(listingsCollectionName).Drop(context.Background()))
	repo := NewListingRepository(testDB, keyword.NewEnglishNormalizer(), logger.NewNop())
	require.NoError(t, repo.EnsureIndexes(context.Background()))
	return repo
}

func listing(permalink, title string, at float64) *domain.Listing {
	l := domain.NewListing(permalink)
	l.Title = title
	l.PostingTime = at
	return l
}

func TestListingRepository_SaveFindDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	l := listing("road-bike", "Road Bike", 100)
	l.Seller = "ann@example.com"
	l.Categories = []string{"bikes"}
	require.NoError(t, repo.Save(ctx, l))

	got, err := repo.FindByPermalink(ctx, "road-bike")
	require.NoError(t, err)
	assert.Equal(t, l, got)

	var doc listingDocument
	require.NoError(t, testDB.Collection(listingsCollectionName).FindOne(ctx, bson.M{"_id": "road-bike"}).Decode(&doc))
	assert.Equal(t, []string{"ann@example.com", "bike", "road"}, doc.Keywords)

	require.NoError(t, repo.Delete(ctx, "road-bike"))
	_, err = repo.FindByPermalink(ctx, "road-bike")
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "road-bike"), domain.ErrListingNotFound)
}

func TestListingRepository_SaveReplacesKeywords(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.Save(ctx, listing("p", "Blue Bike", 10)))
	require.NoError(t, repo.Save(ctx, listing("p", "Red Car", 10)))

	got, err := repo.QueryPermalinks(ctx, "bike", 30)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = repo.QueryPermalinks(ctx, "car", 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"p"}, got)
}

func TestListingRepository_QueryPermalinks(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.Save(ctx, listing("old", "bike", 100)))
	require.NoError(t, repo.Save(ctx, listing("new", "bike", 200)))
	require.NoError(t, repo.Save(ctx, listing("draft", "bike", 0)))
	require.NoError(t, repo.Save(ctx, listing("desk", "desk", 300)))

	got, err := repo.QueryPermalinks(ctx, "bike", 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, got)

	got, err = repo.QueryPermalinks(ctx, "", 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"desk", "new", "old"}, got)

	got, err = repo.QueryPermalinks(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"desk", "new"}, got)
}

func TestListingRepository_ReadsLegacyDocuments(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := testDB.Collection(listingsCollectionName).InsertOne(ctx, bson.M{
		"_id":           "legacy",
		"title":         "Old",
		"version":       1,
		"thumbnail_url": "1-abc-small",
	})
	require.NoError(t, err)

	got, err := repo.FindByPermalink(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, "1-abc-small", got.Extra["thumbnail_url"])
}
