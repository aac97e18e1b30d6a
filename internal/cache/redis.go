package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/standardbeagle/pricematch/internal/debug"
	"github.com/standardbeagle/pricematch/internal/types"
)

// RedisCache shares verdicts between processes through Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	owned  bool

	hits          int64
	misses        int64
	totalRequests int64
}

// RedisConfig defines configuration options
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedisCache dials Redis at cfg.Addr. The client is closed by Close.
func NewRedisCache(cfg RedisConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	c := NewRedisCacheWithClient(client, cfg.Prefix, cfg.TTL)
	c.owned = true
	return c
}

// NewRedisCacheWithClient wraps an existing client. The caller keeps
// ownership of the client.
func NewRedisCacheWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// Ping checks connectivity
func (rc *RedisCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisCache) key(k string) string {
	return rc.prefix + k
}

// Get returns the verdict stored under key
func (rc *RedisCache) Get(ctx context.Context, key string) (types.Verdict, bool, error) {
	atomic.AddInt64(&rc.totalRequests, 1)

	data, err := rc.client.Get(ctx, rc.key(key)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && data == "") {
		atomic.AddInt64(&rc.misses, 1)
		return types.Verdict{}, false, nil
	}
	if err != nil {
		atomic.AddInt64(&rc.misses, 1)
		return types.Verdict{}, false, fmt.Errorf("redis GET error: %w", err)
	}

	var v types.Verdict
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		debug.Log("CACHE", "dropping undecodable verdict %s: %v", key, err)
		rc.client.Del(ctx, rc.key(key))
		atomic.AddInt64(&rc.misses, 1)
		return types.Verdict{}, false, nil
	}

	atomic.AddInt64(&rc.hits, 1)
	return v, true, nil
}

// Set stores v with the configured TTL
func (rc *RedisCache) Set(ctx context.Context, key string, v types.Verdict) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}
	if err := rc.client.Set(ctx, rc.key(key), data, rc.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET error: %w", err)
	}
	return nil
}

// Delete removes key
func (rc *RedisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, rc.key(key)).Err()
}

// Clear deletes every key under the prefix
func (rc *RedisCache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := rc.client.Scan(ctx, cursor, rc.prefix+"*", 500).Result()
		if err != nil {
			return fmt.Errorf("redis SCAN error: %w", err)
		}
		if len(keys) > 0 {
			if err := rc.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis DEL error: %w", err)
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	atomic.StoreInt64(&rc.hits, 0)
	atomic.StoreInt64(&rc.misses, 0)
	atomic.StoreInt64(&rc.totalRequests, 0)
	return nil
}

// Stats returns process-local statistics
func (rc *RedisCache) Stats() CacheStats {
	hits := atomic.LoadInt64(&rc.hits)
	total := atomic.LoadInt64(&rc.totalRequests)
	return CacheStats{
		Backend:       "redis",
		Hits:          hits,
		Misses:        atomic.LoadInt64(&rc.misses),
		TotalRequests: total,
		HitRate:       hitRate(hits, total),
		Entries:       -1,
	}
}

// Close releases the client when this cache created it
func (rc *RedisCache) Close() error {
	if rc.owned {
		return rc.client.Close()
	}
	return nil
}
