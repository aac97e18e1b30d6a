package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/pricematch/internal/types"
)

type cachedVerdict struct {
	verdict  types.Verdict
	cachedAt int64 // unix nano
}

// MemoryCache is an in-process verdict cache on sync.Map with TTL expiry.
type MemoryCache struct {
	entries sync.Map // map[string]*cachedVerdict

	// Configuration (read-only after creation)
	maxEntries int
	ttlNanos   int64
	clock      Clock

	// Atomic counters
	hits          int64
	misses        int64
	evictions     int64
	totalRequests int64
	count         int64

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// MemoryConfig defines configuration options
type MemoryConfig struct {
	TTL             time.Duration
	MaxEntries      int
	AutoCleanup     bool
	CleanupInterval time.Duration
	Clock           Clock
}

// DefaultMemoryConfig returns default configuration
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		TTL:             DefaultTTL,
		MaxEntries:      DefaultMaxEntries,
		AutoCleanup:     true,
		CleanupInterval: DefaultCleanupInterval,
	}
}

// NewMemoryCache creates a new cache. With AutoCleanup a background
// goroutine sweeps expired entries until Close.
func NewMemoryCache(config MemoryConfig) *MemoryCache {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultMaxEntries
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	mc := &MemoryCache{
		maxEntries: config.MaxEntries,
		ttlNanos:   config.TTL.Nanoseconds(),
		clock:      config.Clock,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	if config.AutoCleanup {
		interval := config.CleanupInterval
		if interval <= 0 {
			interval = DefaultCleanupInterval
		}
		go mc.startAutoCleanup(interval)
	} else {
		close(mc.done)
	}
	return mc
}

// Get returns the verdict stored under key if it has not expired
func (mc *MemoryCache) Get(_ context.Context, key string) (types.Verdict, bool, error) {
	atomic.AddInt64(&mc.totalRequests, 1)
	now := mc.clock().UnixNano()

	if val, ok := mc.entries.Load(key); ok {
		cached := val.(*cachedVerdict)
		if now-cached.cachedAt <= mc.ttlNanos {
			atomic.AddInt64(&mc.hits, 1)
			return cached.verdict, true, nil
		}
		// Expired - delete lazily
		if mc.entries.CompareAndDelete(key, val) {
			atomic.AddInt64(&mc.count, -1)
			atomic.AddInt64(&mc.evictions, 1)
		}
	}

	atomic.AddInt64(&mc.misses, 1)
	return types.Verdict{}, false, nil
}

// Set stores v under key, evicting the oldest entry when over capacity
func (mc *MemoryCache) Set(_ context.Context, key string, v types.Verdict) error {
	cached := &cachedVerdict{verdict: v, cachedAt: mc.clock().UnixNano()}
	if _, loaded := mc.entries.Swap(key, cached); !loaded {
		if atomic.AddInt64(&mc.count, 1) > int64(mc.maxEntries) {
			mc.evictOldest()
		}
	}
	return nil
}

// Delete removes key
func (mc *MemoryCache) Delete(_ context.Context, key string) error {
	if _, loaded := mc.entries.LoadAndDelete(key); loaded {
		atomic.AddInt64(&mc.count, -1)
	}
	return nil
}

func (mc *MemoryCache) evictOldest() {
	var oldestKey interface{}
	oldestTime := int64(1<<63 - 1)

	mc.entries.Range(func(key, value interface{}) bool {
		if at := value.(*cachedVerdict).cachedAt; at < oldestTime {
			oldestTime = at
			oldestKey = key
		}
		return true
	})

	if oldestKey != nil {
		if _, loaded := mc.entries.LoadAndDelete(oldestKey); loaded {
			atomic.AddInt64(&mc.count, -1)
			atomic.AddInt64(&mc.evictions, 1)
		}
	}
}

// CleanExpired removes expired entries and returns how many were dropped
func (mc *MemoryCache) CleanExpired() int {
	now := mc.clock().UnixNano()
	cleaned := int64(0)
	remaining := int64(0)

	mc.entries.Range(func(key, value interface{}) bool {
		if now-value.(*cachedVerdict).cachedAt > mc.ttlNanos {
			mc.entries.Delete(key)
			cleaned++
		} else {
			remaining++
		}
		return true
	})

	atomic.StoreInt64(&mc.count, remaining)
	atomic.AddInt64(&mc.evictions, cleaned)
	return int(cleaned)
}

func (mc *MemoryCache) startAutoCleanup(interval time.Duration) {
	defer close(mc.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.CleanExpired()
		case <-mc.stop:
			return
		}
	}
}

// Clear removes all entries and resets statistics
func (mc *MemoryCache) Clear(_ context.Context) error {
	mc.entries.Range(func(key, _ interface{}) bool {
		mc.entries.Delete(key)
		return true
	})

	atomic.StoreInt64(&mc.hits, 0)
	atomic.StoreInt64(&mc.misses, 0)
	atomic.StoreInt64(&mc.evictions, 0)
	atomic.StoreInt64(&mc.totalRequests, 0)
	atomic.StoreInt64(&mc.count, 0)
	return nil
}

// Stats returns cache statistics
func (mc *MemoryCache) Stats() CacheStats {
	hits := atomic.LoadInt64(&mc.hits)
	total := atomic.LoadInt64(&mc.totalRequests)
	return CacheStats{
		Backend:       "memory",
		Hits:          hits,
		Misses:        atomic.LoadInt64(&mc.misses),
		Evictions:     atomic.LoadInt64(&mc.evictions),
		TotalRequests: total,
		HitRate:       hitRate(hits, total),
		Entries:       int(atomic.LoadInt64(&mc.count)),
	}
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (mc *MemoryCache) Close() error {
	mc.stopOnce.Do(func() { close(mc.stop) })
	<-mc.done
	return nil
}
