package domain

import (
	"errors"
	"fmt"
)

var (
	ErrListingNotFound    = errors.New("listing not found")
	ErrInvalidListingData = errors.New("invalid listing data")
	// ErrCacheMiss is returned by a CacheBackend for an absent key.
	ErrCacheMiss = errors.New("key not found in cache")
	// ErrCacheUnavailable wraps any other CacheBackend failure. Callers fall
	// back to storage when they see it.
	ErrCacheUnavailable = errors.New("cache backend unavailable")
)

func wrapInvalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidListingData, reason)
}
