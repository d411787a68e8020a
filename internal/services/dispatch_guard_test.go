package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"safeher/pkg/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	mu      sync.Mutex
	values  map[string]interface{}
	failing bool
	deletes []string
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]interface{}{}}
}

func (s *memoryLockStore) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return false, errors.New("connection refused")
	}
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value
	return true, nil
}

func (s *memoryLockStore) DeleteIfEquals(_ context.Context, key string, value interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, key)
	if s.values[key] != value {
		return false, nil
	}
	delete(s.values, key)
	return true, nil
}

func TestLocalGuard(t *testing.T) {
	g := NewLocalDispatchGuard()

	release, ok := g.Acquire(context.Background(), "a")
	require.True(t, ok)

	_, ok = g.Acquire(context.Background(), "a")
	assert.False(t, ok)

	other, ok := g.Acquire(context.Background(), "b")
	require.True(t, ok)
	other()

	release()
	release()
	again, ok := g.Acquire(context.Background(), "a")
	require.True(t, ok)
	again()
}

func TestRedisGuardExcludesHolders(t *testing.T) {
	store := newMemoryLockStore()
	g := NewRedisDispatchGuard(store, time.Minute, nopLogger())

	release, ok := g.Acquire(context.Background(), "s1")
	require.True(t, ok)

	_, ok = g.Acquire(context.Background(), "s1")
	assert.False(t, ok)

	release()
	assert.Equal(t, []string{"safeher:dispatch:s1"}, store.deletes)

	release2, ok := g.Acquire(context.Background(), "s1")
	require.True(t, ok)
	release2()
}

func TestRedisGuardReleaseKeepsForeignLock(t *testing.T) {
	store := newMemoryLockStore()
	g := NewRedisDispatchGuard(store, time.Minute, nopLogger())

	release, ok := g.Acquire(context.Background(), "s1")
	require.True(t, ok)

	// The lock expired and another instance took it.
	store.mu.Lock()
	store.values["safeher:dispatch:s1"] = "someone-else"
	store.mu.Unlock()

	release()
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, "someone-else", store.values["safeher:dispatch:s1"])
}

func TestRedisGuardFailsOpen(t *testing.T) {
	store := newMemoryLockStore()
	store.failing = true
	g := NewRedisDispatchGuard(store, time.Minute, nopLogger())

	release, ok := g.Acquire(context.Background(), "s1")
	require.True(t, ok)
	release()
	assert.Empty(t, store.deletes)
}

func TestRedisDispatchGuardAgainstRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	store := cache.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { store.Close() })

	first := NewRedisDispatchGuard(store, time.Minute, nopLogger())
	second := NewRedisDispatchGuard(store, time.Minute, nopLogger())

	release, ok := first.Acquire(context.Background(), "s1")
	require.True(t, ok)
	assert.True(t, mr.Exists(dispatchLockPrefix+"s1"))

	// Another instance sees the same lock.
	_, ok = second.Acquire(context.Background(), "s1")
	assert.False(t, ok)
	_, ok = second.Acquire(context.Background(), "s2")
	assert.True(t, ok)

	// A lock taken over after expiry is not released by the old holder.
	mr.FastForward(2 * time.Minute)
	takeover, ok := second.Acquire(context.Background(), "s1")
	require.True(t, ok)
	release()
	assert.True(t, mr.Exists(dispatchLockPrefix+"s1"))

	takeover()
	assert.False(t, mr.Exists(dispatchLockPrefix+"s1"))
}
