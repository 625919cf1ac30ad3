package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	profiles map[string]*CoachAvailability
	calls    int
}

func (l *countingLoader) LoadAvailability(_ context.Context, coachID string) (*CoachAvailability, error) {
	l.calls++
	a, ok := l.profiles[coachID]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCacheReadThrough(t *testing.T) {
	mr, client := newTestRedis(t)
	loader := &countingLoader{profiles: map[string]*CoachAvailability{"coach-1": validProfile()}}
	cache := NewCache(client, loader, time.Minute, nil)
	ctx := context.Background()

	first, err := cache.LoadAvailability(ctx, "coach-1")
	require.NoError(t, err)
	second, err := cache.LoadAvailability(ctx, "coach-1")
	require.NoError(t, err)

	assert.Equal(t, 1, loader.calls)
	assert.Equal(t, first.Timezone, second.Timezone)
	assert.True(t, mr.Exists("coach:availability:coach-1"))
	assert.Equal(t, time.Minute, mr.TTL("coach:availability:coach-1"))
}

func TestCacheInvalidate(t *testing.T) {
	mr, client := newTestRedis(t)
	loader := &countingLoader{profiles: map[string]*CoachAvailability{"coach-1": validProfile()}}
	cache := NewCache(client, loader, time.Minute, nil)
	ctx := context.Background()

	_, err := cache.LoadAvailability(ctx, "coach-1")
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, "coach-1"))
	assert.False(t, mr.Exists("coach:availability:coach-1"))

	_, err = cache.LoadAvailability(ctx, "coach-1")
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestCacheDoesNotStoreMisses(t *testing.T) {
	mr, client := newTestRedis(t)
	loader := &countingLoader{profiles: map[string]*CoachAvailability{}}
	cache := NewCache(client, loader, time.Minute, nil)

	_, err := cache.LoadAvailability(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, mr.Exists("coach:availability:ghost"))
}

func TestCacheDiscardsCorruptEntries(t *testing.T) {
	mr, client := newTestRedis(t)
	loader := &countingLoader{profiles: map[string]*CoachAvailability{"coach-1": validProfile()}}
	cache := NewCache(client, loader, time.Minute, nil)
	require.NoError(t, mr.Set("coach:availability:coach-1", "{not json"))

	a, err := cache.LoadAvailability(context.Background(), "coach-1")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", a.Timezone)
	assert.Equal(t, 1, loader.calls)
}

func TestCacheFallsBackWhenRedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	loader := &countingLoader{profiles: map[string]*CoachAvailability{"coach-1": validProfile()}}
	cache := NewCache(client, loader, time.Minute, nil)
	mr.Close()

	a, err := cache.LoadAvailability(context.Background(), "coach-1")
	require.NoError(t, err)
	assert.Equal(t, "coach-1", a.CoachID)
}

func TestCacheDisabledWithoutTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	loader := &countingLoader{profiles: map[string]*CoachAvailability{"coach-1": validProfile()}}
	cache := NewCache(client, loader, 0, nil)

	_, err := cache.LoadAvailability(context.Background(), "coach-1")
	require.NoError(t, err)
	_, err = cache.LoadAvailability(context.Background(), "coach-1")
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
	assert.False(t, mr.Exists("coach:availability:coach-1"))
}
