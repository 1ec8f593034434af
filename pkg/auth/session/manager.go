// Package session keeps refresh sessions in Redis, one per access token jti.
// Only a SHA-256 digest of the refresh token is stored.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	redisclient "github.com/angelmondragon/storefront-backend/pkg/redis"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errAccessIDRequired    = errors.New("access id is required")
)

type backend interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is what the auth middleware needs to reject revoked tokens.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type Manager struct {
	store backend
	ttl   time.Duration
}

// Rotated is the session issued by a successful refresh.
type Rotated struct {
	UserID       uuid.UUID
	AccessID     string
	RefreshToken string
}

type entry struct {
	UserID    uuid.UUID `json:"user_id"`
	TokenHash string    `json:"token_sha256"`
	IssuedAt  time.Time `json:"issued_at"`
}

// NewManager requires the refresh TTL to outlive the access token.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	refresh := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	switch {
	case refresh <= 0:
		return nil, errors.New("refresh token ttl must be positive")
	case refresh <= access:
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", refresh, access)
	}
	return &Manager{store: client, ttl: refresh}, nil
}

// NewAccessID returns the jti for a new access token.
func NewAccessID() string {
	return uuid.NewString()
}

// Generate opens a session for accessID and returns its refresh token.
func (m *Manager) Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error) {
	if blank(accessID) {
		return "", errAccessIDRequired
	}
	if userID == uuid.Nil {
		return "", errors.New("user id is required")
	}
	return m.open(ctx, userID, accessID)
}

// Rotate trades a valid refresh token for a new access id and refresh token.
// The old session is deleted, so a refresh token works once.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, provided string) (Rotated, error) {
	if blank(oldAccessID) || blank(provided) {
		return Rotated{}, ErrInvalidRefreshToken
	}
	oldKey := m.store.AccessSessionKey(oldAccessID)
	current, err := m.read(ctx, oldKey)
	if err != nil {
		return Rotated{}, err
	}
	if subtle.ConstantTimeCompare([]byte(current.TokenHash), []byte(digest(provided))) != 1 {
		return Rotated{}, ErrInvalidRefreshToken
	}

	next := Rotated{UserID: current.UserID, AccessID: NewAccessID()}
	if next.RefreshToken, err = m.open(ctx, next.UserID, next.AccessID); err != nil {
		return Rotated{}, err
	}
	if err := m.store.Del(ctx, oldKey); err != nil {
		return Rotated{}, err
	}
	return next, nil
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if blank(accessID) {
		return errAccessIDRequired
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

// HasSession reports whether accessID still has a live refresh session.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if blank(accessID) {
		return false, errAccessIDRequired
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case errors.Is(err, redislib.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (m *Manager) open(ctx context.Context, userID uuid.UUID, accessID string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	encoded, err := json.Marshal(entry{UserID: userID, TokenHash: digest(token), IssuedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}
	if err := m.store.Set(ctx, m.store.AccessSessionKey(accessID), string(encoded), m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// read maps a missing or unreadable session to ErrInvalidRefreshToken.
func (m *Manager) read(ctx context.Context, key string) (entry, error) {
	var e entry
	raw, err := m.store.Get(ctx, key)
	if errors.Is(err, redislib.Nil) {
		return e, ErrInvalidRefreshToken
	}
	if err != nil {
		return e, err
	}
	if json.Unmarshal([]byte(raw), &e) != nil || e.UserID == uuid.Nil || e.TokenHash == "" {
		return entry{}, ErrInvalidRefreshToken
	}
	return e, nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
