package cron

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultLockTTL bounds how long a crashed worker can block the next tick.
const defaultLockTTL = 30 * time.Minute

// Lock gives one worker in the fleet the right to run a tick.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockBackend interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
}

// RedisLock is a SET NX lease. The stored value names the holder so a
// worker whose lease expired cannot delete a newer holder's key.
type RedisLock struct {
	backend lockBackend
	key     string
	ttl     time.Duration

	mu    sync.Mutex
	lease string
}

func NewRedisLock(backend lockBackend, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case backend == nil:
		return nil, errors.New("redis client required for lock")
	case key == "":
		return nil, errors.New("lock key is required")
	}
	return &RedisLock{backend: backend, key: key, ttl: leaseTTL(ttl)}, nil
}

func leaseTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultLockTTL
	}
	return ttl
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	lease := leaseID()
	won, err := l.backend.SetNX(ctx, l.key, lease, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if won {
		l.mu.Lock()
		l.lease = lease
		l.mu.Unlock()
	}
	return won, nil
}

// Release is a no-op unless this lock currently holds a lease.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	lease := l.lease
	l.lease = ""
	l.mu.Unlock()
	if lease == "" {
		return nil
	}
	if _, err := l.backend.CompareAndDelete(ctx, l.key, lease); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

// leaseID is "<host>/<uuid>" so a stuck key in Redis points at its worker.
func leaseID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return host + "/" + uuid.NewString()
}
