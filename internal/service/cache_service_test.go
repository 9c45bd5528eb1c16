package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingCache struct{}

func (failingCache) Get(context.Context, string, interface{}) error { return errors.New("redis down") }
func (failingCache) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("redis down")
}
func (failingCache) DeleteByPattern(context.Context, string) error { return errors.New("redis down") }

func TestCacheServiceDisabledAndNil(t *testing.T) {
	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
	var dest map[string]int
	assert.False(t, nilCache.Get(context.Background(), "k", &dest))
	nilCache.Set(context.Background(), "k", 1, 0)
	nilCache.InvalidateReports(context.Background())

	disabled := NewCacheService(&memoryCache{items: map[string][]byte{}}, nil, 0, nil, false)
	assert.False(t, disabled.Enabled())
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := &memoryCache{items: map[string][]byte{}}
	svc := NewCacheService(repo, NewMetricsService(), time.Minute, zap.NewNop(), true)

	key := ReportKey("grouped", "2026-10-01")
	require.True(t, strings.HasPrefix(key, reportCachePrefix))
	assert.Equal(t, key, ReportKey("grouped", "2026-10-01"))
	assert.NotEqual(t, key, ReportKey("detail", "2026-10-01"))

	svc.Set(context.Background(), key, map[string]int{"present": 3}, 0)
	var got map[string]int
	require.True(t, svc.Get(context.Background(), key, &got))
	assert.Equal(t, 3, got["present"])

	svc.InvalidateReports(context.Background())
	assert.False(t, svc.Get(context.Background(), key, &got))
}

func TestCacheServiceToleratesBackendFailure(t *testing.T) {
	svc := NewCacheService(failingCache{}, nil, time.Minute, zap.NewNop(), true)
	var got map[string]int
	assert.False(t, svc.Get(context.Background(), "k", &got))
	svc.Set(context.Background(), "k", 1, 0)
	svc.InvalidateReports(context.Background())
}
