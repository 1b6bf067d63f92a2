package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carehub-backend/pkg/redis"
)

const defaultLockTTL = 4 * time.Minute

// Locker hands out per-job leases so only one worker runs a job at a time.
type Locker interface {
	Acquire(ctx context.Context, job string) (Lease, bool, error)
	TTL() time.Duration
}

// Lease is a held job lock.
type Lease interface {
	Extend(ctx context.Context) error
	Release(ctx context.Context) error
}

// RedisLocker takes job locks with SET NX and gives them up through an
// owner-checked script.
type RedisLocker struct {
	store redis.Locker
	scope string
	ttl   time.Duration
}

// NewRedisLocker builds a locker whose keys live under scope, usually the
// deployment environment.
func NewRedisLocker(store redis.Locker, scope string, ttl time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, errors.New("lock scope is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{store: store, scope: scope, ttl: ttl}, nil
}

func (l *RedisLocker) TTL() time.Duration { return l.ttl }

func (l *RedisLocker) key(job string) string {
	return l.store.LockKey("cron:" + l.scope + ":" + job)
}

// Acquire returns a lease when no other worker holds job.
func (l *RedisLocker) Acquire(ctx context.Context, job string) (Lease, bool, error) {
	key := l.key(job)
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{locker: l, key: key, owner: owner}, true, nil
}

type redisLease struct {
	locker *RedisLocker
	key    string
	owner  string
}

var errLeaseLost = errors.New("lock lease lost")

func (r *redisLease) Extend(ctx context.Context) error {
	held, err := r.locker.store.ExtendOwned(ctx, r.key, r.owner, r.locker.ttl)
	if err != nil {
		return fmt.Errorf("extend %s: %w", r.key, err)
	}
	if !held {
		return errLeaseLost
	}
	return nil
}

func (r *redisLease) Release(ctx context.Context) error {
	if _, err := r.locker.store.ReleaseOwned(ctx, r.key, r.owner); err != nil {
		return fmt.Errorf("release %s: %w", r.key, err)
	}
	return nil
}
