// Package memory is an in-process CacheBackend for single-node deployments
// and tests.
package memory

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/domain"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

type Backend struct {
	entries *lru.Cache[string, entry]
	now     func() time.Time
}

// NewBackend keeps at most size entries, evicting the least recently used.
func NewBackend(size int) (*Backend, error) {
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &Backend{entries: c, now: time.Now}, nil
}

func (b *Backend) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := b.entries.Get(key)
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && !b.now().Before(e.expiresAt) {
		b.entries.Remove(key)
		return nil, domain.ErrCacheMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (b *Backend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: make([]byte, len(value))}
	copy(e.value, value)
	if ttl > 0 {
		e.expiresAt = b.now().Add(ttl)
	}
	b.entries.Add(key, e)
	return nil
}

func (b *Backend) Delete(_ context.Context, key string) error {
	b.entries.Remove(key)
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (b *Backend) Len() int {
	return b.entries.Len()
}
