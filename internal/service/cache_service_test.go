package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("redis unavailable")
}

func (failingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("redis unavailable")
}

func (failingCache) DeleteByPattern(ctx context.Context, pattern string) error {
	return errors.New("redis unavailable")
}

func TestCacheServiceRoundTrip(t *testing.T) {
	backend := newMemoryCache()
	metrics := NewMetricsService()
	svc := NewCacheService(backend, metrics, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var out map[string]int
	assert.False(t, svc.Get(ctx, CacheKeyDashboard, &out))

	svc.Set(ctx, CacheKeyDashboard, map[string]int{"courses": 3}, 0)
	assert.True(t, svc.Get(ctx, CacheKeyDashboard, &out))
	assert.Equal(t, 3, out["courses"])

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
}

func TestCacheServiceInvalidateReadModels(t *testing.T) {
	backend := newMemoryCache()
	svc := NewCacheService(backend, nil, time.Minute, zap.NewNop(), true)
	ctx := context.Background()
	svc.Set(ctx, CacheKeyCourseStats, 1, 0)
	svc.Set(ctx, CacheKeyDashboard, 1, 0)

	svc.InvalidateReadModels(ctx)
	assert.False(t, backend.has(CacheKeyCourseStats))
	assert.False(t, backend.has(CacheKeyDashboard))
	assert.Equal(t, []string{"stats:*", "dash:*"}, backend.deleted)
}

func TestCacheServiceDisabledAndFailing(t *testing.T) {
	ctx := context.Background()
	var out int

	disabled := NewCacheService(newMemoryCache(), nil, 0, nil, false)
	disabled.Set(ctx, "k", 1, 0)
	assert.False(t, disabled.Get(ctx, "k", &out))

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	assert.NotPanics(t, func() { nilSvc.InvalidateReadModels(ctx) })

	failing := NewCacheService(failingCache{}, nil, 0, zap.NewNop(), true)
	assert.NotPanics(t, func() {
		failing.Set(ctx, "k", 1, 0)
		failing.InvalidateReadModels(ctx)
	})
	assert.False(t, failing.Get(ctx, "k", &out))
}
