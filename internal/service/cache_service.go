package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
)

// CacheStore is the subset of the cache repository the services depend on.
type CacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService wraps the cache repository with hit/miss accounting and
// swallow-on-error semantics: a broken cache never fails a request.
type CacheService struct {
	store   CacheStore
	metrics *MetricsService
	logger  *zap.Logger
	ttl     time.Duration
}

// NewCacheService constructs a cache service.
func NewCacheService(store CacheStore, metrics *MetricsService, logger *zap.Logger, ttl time.Duration) *CacheService {
	return &CacheService{store: store, metrics: metrics, logger: logger, ttl: ttl}
}

// Get loads a cached value. The boolean reports whether the value was found.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if s == nil || s.store == nil {
		return false
	}
	if err := s.store.Get(ctx, key, dest); err != nil {
		if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.RecordCacheMiss()
		return false
	}
	s.metrics.RecordCacheHit()
	return true
}

// Set stores a value with the configured TTL.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// SetPersistent stores a value without expiry. Used for the offline mirror.
func (s *CacheService) SetPersistent(ctx context.Context, key string, value interface{}) {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Set(ctx, key, value, 0); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes every key matching the pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
