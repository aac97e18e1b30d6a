// Package cache stores validated reranker verdicts keyed by request
// fingerprint. Clearing a cache only changes latency, never results.
package cache

import (
	"context"
	"time"

	"github.com/standardbeagle/pricematch/internal/types"
)

// Cache configuration constants
const (
	DefaultTTL             = 24 * time.Hour
	DefaultMaxEntries      = 10000
	DefaultCleanupInterval = 10 * time.Minute
	DefaultKeyPrefix       = "pricematch:verdict:"
)

// VerdictCache is implemented by every verdict store.
type VerdictCache interface {
	Get(ctx context.Context, key string) (types.Verdict, bool, error)
	Set(ctx context.Context, key string, v types.Verdict) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Stats() CacheStats
	Close() error
}

// CacheStats holds cache statistics
type CacheStats struct {
	Backend       string
	Hits          int64
	Misses        int64
	Evictions     int64
	TotalRequests int64
	HitRate       float64
	Entries       int // -1 when the backend cannot count cheaply
}

func hitRate(hits, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Clock returns the current time. Tests inject a fixed one.
type Clock func() time.Time
