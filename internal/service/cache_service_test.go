package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
)

// stubCacheStore keeps values in memory and round-trips them through JSON,
// matching the behaviour of the redis-backed repository.
type stubCacheStore struct {
	values map[string]interface{}
	getErr error
	setErr error
}

func newStubCacheStore() *stubCacheStore {
	return &stubCacheStore{values: make(map[string]interface{})}
}

func (s *stubCacheStore) Get(_ context.Context, key string, dest interface{}) error {
	if s.getErr != nil {
		return s.getErr
	}
	value, ok := s.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (s *stubCacheStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value
	return nil
}

func (s *stubCacheStore) Delete(_ context.Context, key string) error {
	delete(s.values, key)
	return nil
}

func (s *stubCacheStore) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.values {
		if strings.HasPrefix(key, prefix) {
			delete(s.values, key)
		}
	}
	return nil
}

func TestCacheServiceHitAndMiss(t *testing.T) {
	store := newStubCacheStore()
	svc := NewCacheService(store, nil, zap.NewNop(), time.Minute)
	ctx := context.Background()

	var dest string
	assert.False(t, svc.Get(ctx, "k", &dest))

	svc.Set(ctx, "k", "wert")
	require.True(t, svc.Get(ctx, "k", &dest))
	assert.Equal(t, "wert", dest)
}

func TestCacheServiceSwallowsStoreErrors(t *testing.T) {
	store := newStubCacheStore()
	store.getErr = assert.AnError
	store.setErr = assert.AnError
	svc := NewCacheService(store, nil, zap.NewNop(), time.Minute)
	ctx := context.Background()

	var dest string
	assert.False(t, svc.Get(ctx, "k", &dest))
	svc.Set(ctx, "k", "wert") // must not panic or surface the error
}

func TestCacheServiceNilStoreDegrades(t *testing.T) {
	svc := NewCacheService(nil, nil, zap.NewNop(), time.Minute)
	ctx := context.Background()

	var dest string
	assert.False(t, svc.Get(ctx, "k", &dest))
	svc.Set(ctx, "k", "wert")
	svc.Invalidate(ctx, "k*")
}

func TestCacheServiceInvalidateByPattern(t *testing.T) {
	store := newStubCacheStore()
	svc := NewCacheService(store, nil, zap.NewNop(), time.Minute)
	ctx := context.Background()

	svc.Set(ctx, "blocks:a", 1)
	svc.Set(ctx, "blocks:b", 2)
	svc.Set(ctx, "plans:a", 3)

	svc.Invalidate(ctx, "blocks:*")

	var dest int
	assert.False(t, svc.Get(ctx, "blocks:a", &dest))
	assert.True(t, svc.Get(ctx, "plans:a", &dest))
}
