package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 55 * time.Minute

// ErrLockHeld means another worker owns the cycle lock.
var ErrLockHeld = errors.New("cron lock held by another worker")

// Lock serializes maintenance cycles across worker replicas.
type Lock interface {
	// Acquire returns the function that gives the lock back, or ErrLockHeld.
	Acquire(ctx context.Context) (func(context.Context) error, error)
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock stores "<holder>/<token>" under key for ttl. A crashed worker's
// lock lapses with the ttl.
type RedisLock struct {
	store  lockStore
	key    string
	ttl    time.Duration
	holder string
}

// NewRedisLock builds the lock. holder names the worker in the stored value.
func NewRedisLock(store lockStore, key string, ttl time.Duration, holder string) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("lock store required")
	}
	if key == "" {
		return nil, errors.New("lock key required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if holder == "" {
		holder = "cron-worker"
	}
	return &RedisLock{store: store, key: key, ttl: ttl, holder: holder}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := l.holder + "/" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func(ctx context.Context) error {
		current, err := l.store.Get(ctx, l.key)
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", l.key, err)
		}
		// expired and taken over by another worker
		if current != token {
			return nil
		}
		if err := l.store.Del(ctx, l.key); err != nil {
			return fmt.Errorf("release %s: %w", l.key, err)
		}
		return nil
	}, nil
}
