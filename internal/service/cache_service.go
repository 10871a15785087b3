package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/procurement-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Generation(ctx context.Context, namespace string) (int64, error)
	BumpGeneration(ctx context.Context, namespace string) (int64, error)
}

// CacheService orchestrates cache operations and related metrics. Cache
// failures never fail the caller's read or write; they are logged and
// reported as misses.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Generation returns the current generation of namespace. Readers embed it
// in their keys so that a value computed before an invalidation is stored
// under a generation nobody reads any more. ok is false when caching is off
// or the generation is unavailable; the caller must then bypass the cache.
func (s *CacheService) Generation(ctx context.Context, namespace string) (gen int64, ok bool) {
	if !s.Enabled() {
		return 0, false
	}
	gen, err := s.repo.Generation(ctx, namespace)
	if err != nil {
		s.logger.Warn("cache generation lookup failed", zap.String("namespace", namespace), zap.Error(err))
		return 0, false
	}
	return gen, true
}

// Invalidate bumps the namespace generation and removes cached values, e.g.
// "disposals" drops every "disposals:*" key.
func (s *CacheService) Invalidate(ctx context.Context, namespace string) {
	if !s.Enabled() {
		return
	}
	namespace = strings.TrimSuffix(namespace, ":")
	if _, err := s.repo.BumpGeneration(ctx, namespace); err != nil {
		s.logger.Warn("cache generation bump failed", zap.String("namespace", namespace), zap.Error(err))
	}
	pattern := namespace + ":*"
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
