// Package cachemanager provides typed in-process caches backed by go-cache.
package cachemanager

import (
	"context"
	"time"
)

// NoExpiration keeps an entry until it is deleted.
const NoExpiration time.Duration = -1

// CacheManager is a typed key/value cache safe for concurrent use.
type CacheManager[K ~string, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Items(ctx context.Context) map[K]V
	Count() int
}
