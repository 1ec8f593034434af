package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Logging writes one request.complete entry per request. 5xx responses log at
// warn.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logg.WithFields(r.Context(), map[string]any{"method": r.Method, "path": r.URL.Path})
			rec := &statusRecorder{ResponseWriter: w}
			began := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			ctx = logg.WithFields(ctx, rec.fields(r, time.Since(began)))
			if rec.code() >= http.StatusInternalServerError {
				logg.Warn(ctx, "request.complete")
			} else {
				logg.Info(ctx, "request.complete")
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

// code treats a handler that never wrote a header as 200.
func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *statusRecorder) fields(req *http.Request, took time.Duration) map[string]any {
	out := map[string]any{
		"status":      r.code(),
		"bytes":       r.bytes,
		"duration_ms": took.Milliseconds(),
	}
	// chi fills the pattern in as routing descends, so read it after serving.
	if rctx := chi.RouteContext(req.Context()); rctx != nil && rctx.RoutePattern() != "" {
		out["route"] = rctx.RoutePattern()
	}
	return out
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}
