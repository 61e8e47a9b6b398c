package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCache struct{}

func (failingCache) Get(context.Context, string, interface{}) error {
	return errors.New("redis unavailable")
}

func (failingCache) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("redis unavailable")
}

func (failingCache) Delete(context.Context, ...string) error {
	return errors.New("redis unavailable")
}

func TestCacheServiceRoundTrip(t *testing.T) {
	backend := newMemoryCache()
	svc := NewCacheService(backend, NewMetricsService(), time.Minute, nil, true)
	ctx := context.Background()
	key := CourseProgressKey("stu-1", "course-1")
	assert.Equal(t, "progress:stu-1:course-1", key)

	var out map[string]int
	assert.False(t, svc.Get(ctx, key, &out))

	svc.Set(ctx, key, map[string]int{"aggregate": 75}, 0)
	require.True(t, svc.Get(ctx, key, &out))
	assert.Equal(t, 75, out["aggregate"])

	svc.Invalidate(ctx, key)
	assert.False(t, svc.Get(ctx, key, &out))
}

func TestCacheServiceSwallowsBackendErrors(t *testing.T) {
	svc := NewCacheService(failingCache{}, nil, 0, nil, true)
	ctx := context.Background()

	var out string
	assert.False(t, svc.Get(ctx, "k", &out))
	svc.Set(ctx, "k", "v", 0)
	svc.Invalidate(ctx, "k")
}

func TestCacheServiceDisabled(t *testing.T) {
	backend := newMemoryCache()
	svc := NewCacheService(backend, nil, 0, nil, false)
	svc.Set(context.Background(), "k", "v", 0)
	assert.False(t, backend.has("k"))

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	nilSvc.Invalidate(context.Background(), "k")
}
