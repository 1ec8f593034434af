package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/cron"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func main() {
	proc, err := bootstrap.Start(context.Background(), "cron-worker")
	if err != nil {
		os.Exit(1)
	}
	if err := run(proc); err != nil {
		proc.Logger.Error(context.Background(), "cron worker stopped unexpectedly", err)
		proc.Close()
		os.Exit(1)
	}
	proc.Close()
}

func run(proc *bootstrap.Process) error {
	cfg, logg, conn := proc.Config, proc.Logger, proc.DB.DB()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := proc.Redis(ctx)
	if err != nil {
		return err
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), 0)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}

	reg := prometheus.NewRegistry()
	retentionJob, err := cron.NewCartRetentionJob(cron.CartRetentionJobParams{
		Logger:        logg,
		DB:            proc.DB,
		Store:         cart.NewRepository(conn),
		Events:        outbox.NewService(outbox.NewRepository(conn), logg),
		Metrics:       metrics.NewCartMetrics(reg),
		UserRetention: cfg.Cart.UserRetention,
	})
	if err != nil {
		return fmt.Errorf("cart retention job: %w", err)
	}
	registry, err := cron.NewRegistry(retentionJob)
	if err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(reg),
		Interval: cfg.Cart.RetentionCron,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}
	proc.ServeMetrics(ctx, reg)

	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"jobs": len(registry.Jobs()),
	})
	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

// lockName scopes the cycle lock per environment so staging and production
// workers sharing a redis never block each other.
func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
