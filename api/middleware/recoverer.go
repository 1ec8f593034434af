package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Recoverer answers a handler panic with a 500 envelope. http.ErrAbortHandler
// keeps propagating so net/http drops the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					recoverPanic(logg, w, r, rec)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func recoverPanic(logg *logger.Logger, w http.ResponseWriter, r *http.Request, rec any) {
	if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
		panic(rec)
	}
	cause := fmt.Errorf("panic: %v", rec)
	ctx := r.Context()
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"panic": fmt.Sprint(rec), "method": r.Method, "path": r.URL.Path})
		logg.Error(ctx, "panic.recovered", cause)
	}
	responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "panic"))
}
