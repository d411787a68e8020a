package services

import (
	"context"
	"sync"
	"time"

	"safeher/pkg/logger"

	"github.com/google/uuid"
)

const (
	dispatchLockPrefix = "safeher:dispatch:"
	releaseTimeout     = 2 * time.Second
)

// DispatchGuard allows one in-flight dispatch per session. release must be called
// exactly once when ok is true.
type DispatchGuard interface {
	Acquire(ctx context.Context, sessionID string) (release func(), ok bool)
}

// LocalDispatchGuard serializes dispatches within this process.
type LocalDispatchGuard struct {
	mu     sync.Mutex
	active map[string]bool
}

func NewLocalDispatchGuard() *LocalDispatchGuard {
	return &LocalDispatchGuard{active: make(map[string]bool)}
}

func (g *LocalDispatchGuard) Acquire(_ context.Context, sessionID string) (func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active[sessionID] {
		return nil, false
	}
	g.active[sessionID] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, sessionID)
			g.mu.Unlock()
		})
	}, true
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	DeleteIfEquals(ctx context.Context, key string, value interface{}) (bool, error)
}

// RedisDispatchGuard shares the in-flight flag between server instances. When Redis
// cannot be reached the dispatch goes ahead.
type RedisDispatchGuard struct {
	store lockStore
	ttl   time.Duration
	log   *logger.Logger
}

func NewRedisDispatchGuard(store lockStore, ttl time.Duration, log *logger.Logger) *RedisDispatchGuard {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisDispatchGuard{
		store: store,
		ttl:   ttl,
		log:   log.WithField("component", "dispatch_guard"),
	}
}

func (g *RedisDispatchGuard) Acquire(ctx context.Context, sessionID string) (func(), bool) {
	key := dispatchLockPrefix + sessionID
	token := uuid.New().String()

	ok, err := g.store.SetNX(ctx, key, token, g.ttl)
	if err != nil {
		g.log.WithSessionID(sessionID).WithError(err).Warn("dispatch lock unavailable, proceeding without it")
		return func() {}, true
	}
	if !ok {
		return nil, false
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if _, err := g.store.DeleteIfEquals(ctx, key, token); err != nil {
				g.log.WithSessionID(sessionID).WithError(err).Warn("failed to release dispatch lock")
			}
		})
	}, true
}
