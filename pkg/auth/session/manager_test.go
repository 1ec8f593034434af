package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) AccessSessionKey(accessID string) string {
	return fmt.Sprintf("sess:%s", accessID)
}

func newTestManager() (*Manager, *mockStore) {
	store := newMockStore()
	return &Manager{store: store, ttl: time.Hour}, store
}

func TestManagerGenerateAndRotate(t *testing.T) {
	manager, store := newTestManager()
	ctx := context.Background()
	userID := uuid.New()
	accessID := "access-123"

	token, err := manager.Generate(ctx, userID, accessID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if token == "" {
		t.Fatal("expected refresh token")
	}

	if _, err := manager.Rotate(ctx, accessID, "wrong"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid refresh token error, got %v", err)
	}

	rotated, err := manager.Rotate(ctx, accessID, token)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.UserID != userID {
		t.Fatalf("expected rotated session for %s, got %s", userID, rotated.UserID)
	}
	if rotated.AccessID == accessID || rotated.RefreshToken == token {
		t.Fatal("rotation must issue fresh identifiers")
	}
	if _, exists := store.data[store.AccessSessionKey(accessID)]; exists {
		t.Fatalf("old access key left behind")
	}

	if _, err := manager.Rotate(ctx, accessID, token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("replayed refresh token must fail, got %v", err)
	}

	ok, err := manager.HasSession(ctx, rotated.AccessID)
	if err != nil || !ok {
		t.Fatalf("expected new session, got %v %v", ok, err)
	}
}

func TestManagerRevoke(t *testing.T) {
	manager, _ := newTestManager()
	ctx := context.Background()

	if _, err := manager.Generate(ctx, uuid.New(), "a1"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := manager.Revoke(ctx, "a1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err := manager.HasSession(ctx, "a1")
	if err != nil {
		t.Fatalf("has session: %v", err)
	}
	if ok {
		t.Fatal("session should be revoked")
	}
	if err := manager.Revoke(ctx, " "); err == nil {
		t.Fatal("expected error for blank access id")
	}
}

func TestManagerRejectsCorruptRecord(t *testing.T) {
	manager, store := newTestManager()
	store.data[store.AccessSessionKey("legacy")] = "plain-token"

	if _, err := manager.Rotate(context.Background(), "legacy", "plain-token"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid refresh token, got %v", err)
	}
}

func TestManagerGenerateValidation(t *testing.T) {
	manager, _ := newTestManager()
	if _, err := manager.Generate(context.Background(), uuid.New(), ""); err == nil {
		t.Fatal("expected access id error")
	}
	if _, err := manager.Generate(context.Background(), uuid.Nil, "a"); err == nil {
		t.Fatal("expected user id error")
	}
}

func TestManagerStoresOnlyTokenDigest(t *testing.T) {
	manager, store := newTestManager()
	token, err := manager.Generate(context.Background(), uuid.New(), "a2")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	stored := store.data[store.AccessSessionKey("a2")]
	if strings.Contains(stored, token) {
		t.Fatal("raw refresh token must not be persisted")
	}
	if !strings.Contains(stored, digest(token)) {
		t.Fatalf("expected digest in stored session, got %s", stored)
	}
}
