package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/productfiles"
	products "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/storage/gcs"
)

const (
	mergeClaimTTL   = 2 * time.Minute
	shutdownTimeout = 15 * time.Second
)

func main() {
	proc, err := bootstrap.Start(context.Background(), "api")
	if err != nil {
		os.Exit(1)
	}
	if err := run(proc); err != nil {
		proc.Logger.Error(context.Background(), "api server stopped unexpectedly", err)
		proc.Close()
		os.Exit(1)
	}
	proc.Close()
}

func run(proc *bootstrap.Process) error {
	cfg, logg, conn := proc.Config, proc.Logger, proc.DB.DB()

	redisClient, err := proc.Redis(context.Background())
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cartMetrics := metrics.NewCartMetrics(registry)

	sessions, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}

	cartService, dispatcher, err := newCart(proc.DB, cfg.Cart, logg, cartMetrics)
	if err != nil {
		return err
	}

	mergeGuard, err := idempotency.NewManager(redisClient, mergeClaimTTL)
	if err != nil {
		return fmt.Errorf("merge guard: %w", err)
	}
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(conn),
		SessionManager: sessions,
		Cart:           cartService,
		MergeGuard:     mergeGuard,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}

	fileParams := productfiles.ServiceParams{
		Repo:        productfiles.NewRepository(conn),
		DownloadTTL: cfg.GCS.DownloadURLExpiry,
		Logger:      logg,
	}
	if cfg.FeatureFlags.SignedDownloads {
		gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
		if err != nil {
			return fmt.Errorf("bootstrap gcs: %w", err)
		}
		proc.Defer("gcs", gcsClient.Close)
		fileParams.Signer = gcsClient
	}
	fileService, err := productfiles.NewService(fileParams)
	if err != nil {
		return fmt.Errorf("product file service: %w", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(cfg, logg, proc.DB, redisClient, sessions, authService, dispatcher, fileService, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(server, proc)
}

// newCart wires the cart service over db with the product catalog as its
// price source.
func newCart(db *dbpkg.Client, cfg config.CartConfig, logg *logger.Logger, m *metrics.CartMetrics) (cart.Service, *cart.Dispatcher, error) {
	conn := db.DB()
	svc, err := cart.NewService(cart.ServiceParams{
		Repo:    cart.NewRepository(conn),
		Tx:      db,
		Catalog: products.NewRepository(conn),
		Events:  outbox.NewService(outbox.NewRepository(conn), logg),
		Metrics: m,
		Logger:  logg,
		Config:  cfg,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("cart service: %w", err)
	}
	dispatcher, err := cart.NewDispatcher(svc, m)
	if err != nil {
		return nil, nil, fmt.Errorf("cart dispatcher: %w", err)
	}
	return svc, dispatcher, nil
}

// serve blocks until the server fails or a shutdown signal arrives.
func serve(server *http.Server, proc *bootstrap.Process) error {
	logg := proc.Logger
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  proc.Config.App.Env,
		"addr": server.Addr,
	})
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	logg.Info(ctx, "api server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-sigCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logg.Info(ctx, "api server shut down gracefully")
	return nil
}
