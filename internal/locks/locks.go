package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * time.Second

// Locker hands out named, expiring mutual-exclusion locks.
type Locker interface {
	// TryAcquire returns the held lease, or ok=false when the lock is held elsewhere.
	TryAcquire(ctx context.Context, key string) (lease Lease, ok bool, err error)
}

// Lease is one held lock.
type Lease interface {
	Release(ctx context.Context) error
	// Refresh pushes the expiry out by a full TTL; false means the lock was lost.
	Refresh(ctx context.Context) (bool, error)
}

// redisStore defines the operations used by RedisLocker.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisLocker implements Locker using Redis SETNX + TTL, shared by every instance.
type RedisLocker struct {
	client redisStore
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(client redisStore, prefix string, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl}, nil
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string) (Lease, bool, error) {
	full := l.prefix + key
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, full, owner, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{l: l, key: full, owner: owner}, true, nil
}

type redisLease struct {
	l     *RedisLocker
	key   string
	owner string
}

// owned reports whether the key still carries this lease's owner value.
func (r *redisLease) owned(ctx context.Context) (bool, error) {
	value, err := r.l.client.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("read lock owner: %w", err)
	}
	return value == r.owner, nil
}

func (r *redisLease) Release(ctx context.Context) error {
	ok, err := r.owned(ctx)
	if err != nil || !ok {
		// expired and possibly taken by someone else
		return err
	}
	if err := r.l.client.Del(ctx, r.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}

func (r *redisLease) Refresh(ctx context.Context) (bool, error) {
	ok, err := r.owned(ctx)
	if err != nil || !ok {
		return false, err
	}
	ok, err = r.l.client.Expire(ctx, r.key, r.l.ttl)
	if err != nil {
		return false, fmt.Errorf("extend lock: %w", err)
	}
	return ok, nil
}

// LocalLocker is the single-process fallback used when no Redis is configured.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]*localLease
	ttl  time.Duration
	now  func() time.Time
}

func NewLocalLocker(ttl time.Duration) *LocalLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &LocalLocker{held: map[string]*localLease{}, ttl: ttl, now: time.Now}
}

func (l *LocalLocker) TryAcquire(_ context.Context, key string) (Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, ok := l.held[key]; ok && now.Before(cur.exp) {
		return nil, false, nil
	}
	lease := &localLease{l: l, key: key, exp: now.Add(l.ttl)}
	l.held[key] = lease
	return lease, true, nil
}

type localLease struct {
	l   *LocalLocker
	key string
	exp time.Time
}

func (e *localLease) Release(context.Context) error {
	e.l.mu.Lock()
	defer e.l.mu.Unlock()
	if e.l.held[e.key] == e {
		delete(e.l.held, e.key)
	}
	return nil
}

func (e *localLease) Refresh(context.Context) (bool, error) {
	e.l.mu.Lock()
	defer e.l.mu.Unlock()
	now := e.l.now()
	if e.l.held[e.key] != e || !now.Before(e.exp) {
		return false, nil
	}
	e.exp = now.Add(e.l.ttl)
	return true, nil
}
