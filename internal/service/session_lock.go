package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionLocks serializes the check-then-write sequences on a user's
// session state (refresh rotation, logout, single-session sign-in).
// Validating the stored hash and overwriting it are two store operations;
// without mutual exclusion two concurrent refreshes can both pass
// validation against the old hash and both mint sessions.
//
// With a Redis client the lock is a SET NX lease so it holds across
// replicas; without one (nil client or Redis failure) it degrades to an
// in-process keyed mutex, which is enough for a single instance.
type SessionLocks struct {
	rdb   *redis.Client
	lease time.Duration

	mu    sync.Mutex
	local map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// releaseLock removes the redis lease only if this holder still owns it.
var releaseLock = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// NewSessionLocks builds the lock table. rdb may be nil.
func NewSessionLocks(rdb *redis.Client) *SessionLocks {
	return &SessionLocks{
		rdb:   rdb,
		lease: 5 * time.Second,
		local: make(map[string]*userLock),
	}
}

// Lock acquires the per-user critical section and returns its release
// function. Acquisition blocks until the lock is held or ctx is done.
func (s *SessionLocks) Lock(ctx context.Context, userID string) (func(), error) {
	if s.rdb != nil {
		if release, err := s.lockRedis(ctx, userID); err == nil {
			return release, nil
		} else if ctx.Err() != nil {
			return nil, err
		}
		// Redis unreachable: fall through to the local mutex so a broken
		// cache does not take auth down with it.
	}
	return s.lockLocal(userID), nil
}

func (s *SessionLocks) lockRedis(ctx context.Context, userID string) (func(), error) {
	key := "session_lock:" + userID
	token := uuid.NewString()
	for {
		ok, err := s.rdb.SetNX(ctx, key, token, s.lease).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_, _ = releaseLock.Run(ctx, s.rdb, []string{key}, token).Result()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func (s *SessionLocks) lockLocal(userID string) func() {
	s.mu.Lock()
	l := s.local[userID]
	if l == nil {
		l = &userLock{}
		s.local[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.local, userID)
		}
		s.mu.Unlock()
	}
}
