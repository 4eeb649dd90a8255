package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/domain"
)

func TestBackend_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	b, err := NewBackend(8)
	require.NoError(t, err)

	_, err = b.Get(ctx, "shard:bike")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	require.NoError(t, b.Set(ctx, "shard:bike", []byte(`["a"]`), 0))
	got, err := b.Get(ctx, "shard:bike")
	require.NoError(t, err)
	assert.Equal(t, []byte(`["a"]`), got)

	require.NoError(t, b.Delete(ctx, "shard:bike"))
	require.NoError(t, b.Delete(ctx, "shard:bike"))
	_, err = b.Get(ctx, "shard:bike")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestBackend_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	b, err := NewBackend(8)
	require.NoError(t, err)

	v := []byte("abc")
	require.NoError(t, b.Set(ctx, "k", v, 0))
	v[0] = 'x'

	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	got[1] = 'y'

	again, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestBackend_TTL(t *testing.T) {
	ctx := context.Background()
	b, err := NewBackend(8)
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	require.NoError(t, b.Set(ctx, "k", []byte("v"), time.Minute))
	_, err = b.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
	assert.Zero(t, b.Len())
}

func TestBackend_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	b, err := NewBackend(2)
	require.NoError(t, err)

	require.NoError(t, b.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, b.Set(ctx, "b", []byte("2"), 0))
	_, _ = b.Get(ctx, "a")
	require.NoError(t, b.Set(ctx, "c", []byte("3"), 0))

	_, err = b.Get(ctx, "b")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
	_, err = b.Get(ctx, "a")
	assert.NoError(t, err)
}

func TestNewBackend_RejectsBadSize(t *testing.T) {
	_, err := NewBackend(0)
	assert.Error(t, err)
}
