package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayTTL         = 24 * time.Hour
)

type replayPolicy struct {
	ttl       time.Duration
	keyNeeded bool
}

// replayPolicies is keyed by "METHOD route-pattern". Cart writes take an
// optional key so a retried quantity step is applied once.
var replayPolicies = map[string]replayPolicy{
	http.MethodPost + " /api/v1/auth/register": {ttl: replayTTL, keyNeeded: true},
	http.MethodPost + " /api/v1/cart":          {ttl: replayTTL},
}

// storedResponse is what gets replayed for a repeated key. Body is base64 in
// the JSON form.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint"`
}

func (s storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// Idempotency replays the first non-5xx response stored under an
// Idempotency-Key. Reusing a key with a different body is a conflict.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			policy, ok := policyFor(r)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				if policy.keyNeeded {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			sum := fingerprint(body)
			key := store.IdempotencyKey(ownerScope(r), clientKey)

			prior, found, err := loadStored(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if found {
				if prior.Fingerprint != sum {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				prior.replay(w)
				return
			}

			capture := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			if capture.statusCode() >= http.StatusInternalServerError {
				return
			}

			encoded, err := json.Marshal(storedResponse{
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.buf.Bytes(),
				Fingerprint: sum,
			})
			if err == nil {
				_, err = store.SetNX(ctx, key, string(encoded), policy.ttl)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "idempotency.store_failed", err)
			}
		})
	}
}

func policyFor(r *http.Request) (replayPolicy, bool) {
	pattern := r.URL.Path
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		pattern = rc.RoutePattern()
	}
	policy, ok := replayPolicies[r.Method+" "+pattern]
	return policy, ok
}

func loadStored(ctx context.Context, store pkgredis.IdempotencyStore, key string) (storedResponse, bool, error) {
	var stored storedResponse
	raw, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		return stored, false, nil
	case err != nil:
		return stored, false, err
	case raw == "":
		return stored, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return stored, false, fmt.Errorf("decode idempotency record: %w", err)
	}
	return stored, true, nil
}

// ownerScope keys records by cart owner so two visitors never share a replay.
func ownerScope(r *http.Request) string {
	owner := UserIDFromContext(r.Context())
	if owner == "" {
		owner = GuestTokenFromContext(r.Context())
	}
	return owner + "|" + r.Method + "|" + r.URL.Path
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type captureWriter struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (c *captureWriter) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func (c *captureWriter) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	c.buf.Write(b)
	return c.ResponseWriter.Write(b)
}
