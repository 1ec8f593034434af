package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	values map[string]string
	ttl    time.Duration
	err    error
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}}
}

func (m *memoryLockStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttl = ttl
	return true, nil
}

func (m *memoryLockStore) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockAcquireRelease(t *testing.T) {
	store := newMemoryLockStore()
	first, err := NewRedisLock(store, "sf:lock:cron", 0)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "sf:lock:cron", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, defaultLockTTL, store.ttl)

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(context.Background()))
	assert.Contains(t, store.values, "sf:lock:cron", "a lock that was never acquired must not release")

	require.NoError(t, first.Release(context.Background()))
	assert.NotContains(t, store.values, "sf:lock:cron")

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReleaseAfterTakeover(t *testing.T) {
	store := newMemoryLockStore()
	lock, err := NewRedisLock(store, "sf:lock:cron", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// ttl expired and another worker took over
	store.values["sf:lock:cron"] = "other-owner"
	require.NoError(t, lock.Release(context.Background()))
	assert.Equal(t, "other-owner", store.values["sf:lock:cron"])
}

func TestRedisLockErrors(t *testing.T) {
	_, err := NewRedisLock(nil, "k", 0)
	assert.Error(t, err)
	_, err = NewRedisLock(newMemoryLockStore(), "", 0)
	assert.Error(t, err)

	store := newMemoryLockStore()
	store.err = errors.New("redis down")
	lock, err := NewRedisLock(store, "k", 0)
	require.NoError(t, err)
	_, err = lock.Acquire(context.Background())
	assert.Error(t, err)
}

func TestLeaseIDNamesHost(t *testing.T) {
	id := leaseID()
	assert.Regexp(t, `^[^/]+/[0-9a-f-]{36}$`, id)
	assert.NotEqual(t, id, leaseID())
}
