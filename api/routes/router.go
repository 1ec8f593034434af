package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	authcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/auth"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/productfiles"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// cacheStore is the Redis surface shared by rate limiting and idempotency.
type cacheStore interface {
	Ping(context.Context) error
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	RateLimitKey(scope string) string
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

type cartDispatcher interface {
	Dispatch(ctx context.Context, owner cart.Owner, action cart.Action) (cart.ActionResult, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	cache cacheStore,
	sessions session.AccessSessionChecker,
	authService auth.Service,
	cartDispatcher cartDispatcher,
	fileService productfiles.Service,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	loginPolicy := middleware.LoginRateLimitPolicy(cfg.AuthRateLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readinessDeps(dbP, cache), logg))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.ReadGuestIdentity(cfg.Cart, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, cache, logg)).
			Post("/api/v1/auth/login", authcontrollers.AuthLogin(authService, cfg.Cart, logg))
		r.With(middleware.Idempotency(cache, logg)).
			Post("/api/v1/auth/register", authcontrollers.AuthRegister(authService, cfg.Cart, logg))
	})
	r.Post("/api/v1/auth/refresh", authcontrollers.AuthRefresh(authService, logg))
	r.With(middleware.Auth(cfg.JWT, sessions, logg)).
		Post("/api/v1/auth/logout", authcontrollers.AuthLogout(authService, logg))

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.OptionalAuth(cfg.JWT, sessions, logg),
			middleware.GuestIdentity(cfg.Cart, logg),
		)
		r.Get("/api/v1/cart", cartcontrollers.CartFetch(cartDispatcher, logg))
		r.With(middleware.Idempotency(cache, logg)).
			Post("/api/v1/cart", cartcontrollers.CartAction(cartDispatcher, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Get("/api/v1/products/{productId}/files", controllers.ProductFiles(fileService, logg))
	})

	return r
}

func readinessDeps(dbP controllers.Pinger, cache cacheStore) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["database"] = dbP
	}
	if cache != nil {
		deps["redis"] = cache
	}
	return deps
}
