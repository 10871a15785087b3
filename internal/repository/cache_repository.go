package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/procurement-api/pkg/errors"
)

// CacheRepository provides helpers around Redis interactions for caching queue payloads.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

// Get retrieves and unmarshals the cached value into the provided destination.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}

	return nil
}

// Set marshals the provided value and stores it with the given TTL.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// DeleteByPattern removes cached entries matching the provided pattern.
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.client == nil {
		return nil
	}

	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var removed int
	for iter.Next(ctx) {
		key := iter.Val()
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", key, err)
		}
		removed++
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan pattern %s: %w", pattern, err)
	}
	r.logger.Debug("cache keys invalidated", zap.String("pattern", pattern), zap.Int("count", removed))

	return nil
}

// Generation returns the current generation of namespace, zero when it was
// never bumped.
func (r *CacheRepository) Generation(ctx context.Context, namespace string) (int64, error) {
	if r.client == nil {
		return 0, nil
	}
	gen, err := r.client.Get(ctx, generationKey(namespace)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get generation %s: %w", namespace, err)
	}
	return gen, nil
}

// BumpGeneration atomically increments the generation of namespace. The
// counter has no TTL so a generation is never reused.
func (r *CacheRepository) BumpGeneration(ctx context.Context, namespace string) (int64, error) {
	if r.client == nil {
		return 0, nil
	}
	gen, err := r.client.Incr(ctx, generationKey(namespace)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr generation %s: %w", namespace, err)
	}
	return gen, nil
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// MemoryCacheRepository keeps JSON payloads in an in-process expirable LRU.
// The TTL is fixed by the LRU; per-call TTLs are ignored. Generations live
// outside the LRU so eviction never resets them.
type MemoryCacheRepository struct {
	lru *expirable.LRU[string, []byte]

	mu          sync.Mutex
	generations map[string]int64
}

// NewMemoryCacheRepository wraps an existing LRU.
func NewMemoryCacheRepository(lru *expirable.LRU[string, []byte]) *MemoryCacheRepository {
	return &MemoryCacheRepository{lru: lru, generations: make(map[string]int64)}
}

// Get retrieves and unmarshals the cached value into dest.
func (r *MemoryCacheRepository) Get(_ context.Context, key string, dest interface{}) error {
	if r.lru == nil {
		return appErrors.ErrCacheMiss
	}
	raw, ok := r.lru.Get(key)
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set stores the JSON encoding of value.
func (r *MemoryCacheRepository) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if r.lru == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	r.lru.Add(key, payload)
	return nil
}

// DeleteByPattern removes keys matching a glob pattern such as "disposals:*".
func (r *MemoryCacheRepository) DeleteByPattern(_ context.Context, pattern string) error {
	if r.lru == nil {
		return nil
	}
	for _, key := range r.lru.Keys() {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return fmt.Errorf("match cache pattern %s: %w", pattern, err)
		}
		if matched {
			r.lru.Remove(key)
		}
	}
	return nil
}

// Generation returns the current generation of namespace.
func (r *MemoryCacheRepository) Generation(_ context.Context, namespace string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations[namespace], nil
}

// BumpGeneration increments the generation of namespace.
func (r *MemoryCacheRepository) BumpGeneration(_ context.Context, namespace string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations[namespace]++
	return r.generations[namespace], nil
}

// Close purges the LRU.
func (r *MemoryCacheRepository) Close() error {
	if r.lru != nil {
		r.lru.Purge()
	}
	return nil
}

func generationKey(namespace string) string {
	return "cache_generation:" + namespace
}
