package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

var (
	errScopeRequired = errors.New("scope is required")
	errIDRequired    = errors.New("id is required")
)

// Manager claims one-shot work items in Redis with SETNX and a TTL.
// Keys follow the `sf:idempotency:<scope>:<id>` pattern.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds a guard that holds each claim for the given TTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// Claim marks id as taken within scope. It returns false when another caller
// already holds the claim.
func (m *Manager) Claim(ctx context.Context, scope, id string) (bool, error) {
	key, err := m.key(scope, id)
	if err != nil {
		return false, err
	}
	return m.store.SetNX(ctx, key, "1", m.ttl)
}

// Release drops a claim so the id can be processed again.
func (m *Manager) Release(ctx context.Context, scope, id string) error {
	key, err := m.key(scope, id)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(scope, id string) (string, error) {
	scope = strings.TrimSpace(scope)
	id = strings.TrimSpace(id)
	if scope == "" {
		return "", errScopeRequired
	}
	if id == "" {
		return "", errIDRequired
	}
	return m.store.IdempotencyKey(scope, id), nil
}
