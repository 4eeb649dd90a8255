package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/adapter/cache/memory"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/adapter/repository/cache"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/keyword"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/logger"
)

type MockListingRepository struct{ mock.Mock }

func (m *MockListingRepository) FindByPermalink(ctx context.Context, permalink string) (*domain.Listing, error) {
	args := m.Called(ctx, permalink)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}

func (m *MockListingRepository) Save(ctx context.Context, listing *domain.Listing) error {
	return m.Called(ctx, listing).Error(0)
}

func (m *MockListingRepository) Delete(ctx context.Context, permalink string) error {
	return m.Called(ctx, permalink).Error(0)
}

func (m *MockListingRepository) QueryPermalinks(ctx context.Context, keyword string, limit int) ([]string, error) {
	args := m.Called(ctx, keyword, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockEventPublisher struct{ mock.Mock }

func (m *MockEventPublisher) PublishSaved(ctx context.Context, permalink string, keywords []string) error {
	return m.Called(ctx, permalink, keywords).Error(0)
}

func (m *MockEventPublisher) PublishDeleted(ctx context.Context, permalink string, keywords []string) error {
	return m.Called(ctx, permalink, keywords).Error(0)
}

// recordingBackend remembers every deleted key.
type recordingBackend struct {
	*memory.Backend
	mu      sync.Mutex
	deleted []string
	failOn  map[string]bool
}

func newRecordingBackend(t *testing.T) *recordingBackend {
	t.Helper()
	b, err := memory.NewBackend(128)
	require.NoError(t, err)
	return &recordingBackend{Backend: b, failOn: map[string]bool{}}
}

func (r *recordingBackend) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	r.deleted = append(r.deleted, key)
	r.mu.Unlock()
	if r.failOn[key] {
		return domain.ErrCacheUnavailable
	}
	return r.Backend.Delete(ctx, key)
}

func (r *recordingBackend) deletedKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.deleted...)
	sort.Strings(out)
	return out
}

// suffixSingularizer drops a trailing "s" from words longer than three letters.
type suffixSingularizer struct{}

func (suffixSingularizer) SingularNoun(word string) (string, bool) {
	if len(word) > 3 && word[len(word)-1] == 's' {
		return word[:len(word)-1], true
	}
	return "", false
}

func newTestInvalidator(t *testing.T, repo domain.ListingRepository) (*Invalidator, *recordingBackend, *cache.ListingCache, *cache.ShardCache) {
	t.Helper()
	backend := newRecordingBackend(t)
	records := cache.NewListingCache(backend, repo, time.Hour, logger.NewNop(), nil)
	shards := cache.NewShardCache(backend, repo, time.Hour, logger.NewNop(), nil)
	return NewInvalidator(records, shards, logger.NewNop()), backend, records, shards
}

func TestInvalidator_OnWrite_ExactKeys(t *testing.T) {
	inv, backend, _, _ := newTestInvalidator(t, new(MockListingRepository))

	err := inv.OnWrite(context.Background(), "id", []string{"sale", "bike"})
	require.NoError(t, err)

	assert.Equal(t, []string{"listing:id", "shard:", "shard:bike", "shard:sale"}, backend.deletedKeys())
}

func TestInvalidator_OnWrite_EachKeyOnce(t *testing.T) {
	inv, backend, _, _ := newTestInvalidator(t, new(MockListingRepository))

	require.NoError(t, inv.OnWrite(context.Background(), "id", []string{"bike", "", "bike"}))

	assert.Equal(t, []string{"listing:id", "shard:", "shard:bike"}, backend.deletedKeys())
}

func TestInvalidator_OnWrite_NoKeywords(t *testing.T) {
	inv, backend, _, _ := newTestInvalidator(t, new(MockListingRepository))

	require.NoError(t, inv.OnWrite(context.Background(), "id", nil))

	assert.Equal(t, []string{"listing:id", "shard:"}, backend.deletedKeys())
}

func TestInvalidator_OnWrite_ContinuesAfterFailure(t *testing.T) {
	inv, backend, _, _ := newTestInvalidator(t, new(MockListingRepository))
	backend.failOn["shard:sale"] = true
	backend.failOn["listing:id"] = true

	err := inv.OnWrite(context.Background(), "id", []string{"sale", "bike"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)

	assert.Equal(t, []string{"listing:id", "shard:", "shard:bike", "shard:sale"}, backend.deletedKeys())
}

func TestInvalidator_OnWrite_EvictsPopulatedEntries(t *testing.T) {
	ctx := context.Background()
	repo := new(MockListingRepository)
	repo.On("QueryPermalinks", mock.Anything, "bike", cache.ShardSize).Return([]string{"a"}, nil).Once()
	repo.On("QueryPermalinks", mock.Anything, "bike", cache.ShardSize).Return([]string{"b", "a"}, nil).Once()

	inv, _, _, shards := newTestInvalidator(t, repo)
	got, err := shards.Get(ctx, "bike")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)

	require.NoError(t, inv.OnWrite(ctx, "b", []string{"bike"}))

	got, err = shards.Get(ctx, "bike")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, got)
	repo.AssertExpectations(t)
}

func TestListingUsecase_Save_InvalidatesOldAndNewKeywords(t *testing.T) {
	ctx := context.Background()
	repo := new(MockListingRepository)
	events := new(MockEventPublisher)

	old := domain.NewListing("id")
	old.Title = "Blue Bike"
	repo.On("FindByPermalink", mock.Anything, "id").Return(old, nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Listing")).Return(nil)
	events.On("PublishSaved", mock.Anything, "id", []string{"bike", "red"}).Return(nil)

	inv, backend, records, _ := newTestInvalidator(t, repo)
	uc := NewListingUsecase(repo, records, inv, keyword.NewNormalizer(suffixSingularizer{}), events, logger.NewNop())

	updated := &domain.Listing{Permalink: "id", Title: "Red Bikes"}
	saved, err := uc.Save(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, domain.SchemaVersion, saved.Version)
	assert.Equal(t, []string{}, saved.Categories)

	assert.Equal(t,
		[]string{"listing:id", "shard:", "shard:bike", "shard:blue", "shard:red"},
		backend.deletedKeys())
	repo.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestListingUsecase_Save_NewListing(t *testing.T) {
	ctx := context.Background()
	repo := new(MockListingRepository)
	repo.On("FindByPermalink", mock.Anything, "new").Return(nil, domain.ErrListingNotFound)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	inv, backend, records, _ := newTestInvalidator(t, repo)
	uc := NewListingUsecase(repo, records, inv, keyword.NewNormalizer(suffixSingularizer{}), nil, logger.NewNop())

	_, err := uc.Save(ctx, &domain.Listing{Permalink: "new", Seller: "ann@example.com", Categories: []string{"bikes"}})
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"listing:new", "shard:", "shard:ann@example.com", "shard:bike"},
		backend.deletedKeys())
}

func TestListingUsecase_Save_MigratesLegacyInput(t *testing.T) {
	ctx := context.Background()
	repo := new(MockListingRepository)
	repo.On("FindByPermalink", mock.Anything, "legacy").Return(nil, domain.ErrListingNotFound)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	inv, _, records, _ := newTestInvalidator(t, repo)
	uc := NewListingUsecase(repo, records, inv, keyword.NewNormalizer(suffixSingularizer{}), nil, logger.NewNop())

	saved, err := uc.Save(ctx, &domain.Listing{
		Permalink: "legacy",
		Version:   1,
		Extra:     map[string]interface{}{"thumbnail_url": "thumb"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SchemaVersion, saved.Version)
	assert.Equal(t, []string{"thumb"}, saved.Thumbnails)
	assert.Nil(t, saved.Extra)
}

func TestListingUsecase_Save_RejectsInvalid(t *testing.T) {
	repo := new(MockListingRepository)
	inv, _, records, _ := newTestInvalidator(t, repo)
	uc := NewListingUsecase(repo, records, inv, keyword.NewNormalizer(suffixSingularizer{}), nil, logger.NewNop())

	_, err := uc.Save(context.Background(), &domain.Listing{Permalink: "x", Price: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidListingData)

	_, err = uc.Save(context.Background(), &domain.Listing{Permalink: "x", Version: domain.SchemaVersion + 1})
	assert.ErrorIs(t, err, domain.ErrInvalidListingData)

	_, err = uc.Save(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidListingData)

	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestListingUsecase_Save_StorageFailure(t *testing.T) {
	repo := new(MockListingRepository)
	boom := errors.New("write failed")
	repo.On("FindByPermalink", mock.Anything, "x").Return(nil, domain.ErrListingNotFound)
	repo.On("Save", mock.Anything, mock.Anything).Return(boom)

	inv, backend, records, _ := newTestInvalidator(t, repo)
	uc := NewListingUsecase(repo, records, inv, keyword.NewNormalizer(suffixSingularizer{}), nil, logger.NewNop())

	_, err := uc.Save(context.Background(), &domain.Listing{Permalink: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, backend.deletedKeys())
}

func TestListingUsecase_Save_EventFailureIsNotFatal(t *testing.T) {
	repo := new(MockListingRepository)
	events := new(MockEventPublisher)
	repo.On("FindByPermalink", mock.Anything, "x").Return(nil, domain.ErrListingNotFound)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	events.On("PublishSaved", mock.Anything, "x", mock.Anything).Return(errors.New("nats down"))

	inv, _, records, _ := newTestInvalidator(t, repo)
	uc := NewListingUsecase(repo, records, inv, keyword.NewNormalizer(suffixSingularizer{}), events, logger.NewNop())

	_, err := uc.Save(context.Background(), &domain.Listing{Permalink: "x"})
	assert.NoError(t, err)
	events.AssertExpectations(t)
}

func TestListingUsecase_Publish(t *testing.T) {
	ctx := context.Background()
	repo := new(MockListingRepository)
	draft := domain.NewListing("draft")
	repo.On("FindByPermalink", mock.Anything, "draft").Return(draft, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	inv, _, records, _ := newTestInvalidator(t, repo)
	uc := NewListingUsecase(repo, records, inv, keyword.NewNormalizer(suffixSingularizer{}), nil, logger.NewNop())
	uc.now = func() time.Time { return time.Unix(1700000000, 0) }

	published, err := uc.Publish(ctx, "draft")
	require.NoError(t, err)
	assert.Equal(t, float64(1700000000), published.PostingTime)
	assert.True(t, published.IsPublished())
}

func TestListingUsecase_Publish_AlreadyPublishedKeepsTime(t *testing.T) {
	repo := new(MockListingRepository)
	l := domain.NewListing("live")
	l.PostingTime = 100
	repo.On("FindByPermalink", mock.Anything, "live").Return(l, nil)

	inv, _, records, _ := newTestInvalidator(t, repo)
	uc := NewListingUsecase(repo, records, inv, keyword.NewNormalizer(suffixSingularizer{}), nil, logger.NewNop())

	got, err := uc.Publish(context.Background(), "live")
	require.NoError(t, err)
	assert.Equal(t, float64(100), got.PostingTime)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestListingUsecase_Publish_NotFound(t *testing.T) {
	repo := new(MockListingRepository)
	repo.On("FindByPermalink", mock.Anything, "nope").Return(nil, domain.ErrListingNotFound)

	inv, _, records, _ := newTestInvalidator(t, repo)
	uc := NewListingUsecase(repo, records, inv, keyword.NewNormalizer(suffixSingularizer{}), nil, logger.NewNop())

	_, err := uc.Publish(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestListingUsecase_Delete(t *testing.T) {
	ctx := context.Background()
	repo := new(MockListingRepository)
	events := new(MockEventPublisher)
	l := domain.NewListing("id")
	l.Title = "sale"
	repo.On("FindByPermalink", mock.Anything, "id").Return(l, nil)
	repo.On("Delete", mock.Anything, "id").Return(nil)
	events.On("PublishDeleted", mock.Anything, "id", []string{"sale"}).Return(nil)

	inv, backend, records, _ := newTestInvalidator(t, repo)
	uc := NewListingUsecase(repo, records, inv, keyword.NewNormalizer(suffixSingularizer{}), events, logger.NewNop())

	require.NoError(t, uc.Delete(ctx, "id"))
	assert.Equal(t, []string{"listing:id", "shard:", "shard:sale"}, backend.deletedKeys())
	events.AssertExpectations(t)
}

func TestListingUsecase_Delete_NotFound(t *testing.T) {
	repo := new(MockListingRepository)
	repo.On("FindByPermalink", mock.Anything, "nope").Return(nil, domain.ErrListingNotFound)

	inv, _, records, _ := newTestInvalidator(t, repo)
	uc := NewListingUsecase(repo, records, inv, keyword.NewNormalizer(suffixSingularizer{}), nil, logger.NewNop())

	assert.ErrorIs(t, uc.Delete(context.Background(), "nope"), domain.ErrListingNotFound)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestListingUsecase_Get(t *testing.T) {
	repo := new(MockListingRepository)
	repo.On("FindByPermalink", mock.Anything, "here").Return(domain.NewListing("here"), nil)
	repo.On("FindByPermalink", mock.Anything, "gone").Return(nil, domain.ErrListingNotFound)

	inv, _, records, _ := newTestInvalidator(t, repo)
	uc := NewListingUsecase(repo, records, inv, keyword.NewNormalizer(suffixSingularizer{}), nil, logger.NewNop())

	l, err := uc.Get(context.Background(), "here")
	require.NoError(t, err)
	assert.Equal(t, "here", l.Permalink)

	_, err = uc.Get(context.Background(), "gone")
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}
