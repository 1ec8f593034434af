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
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
)

func main() {
	proc, err := bootstrap.Start(context.Background(), "outbox-publisher")
	if err != nil {
		os.Exit(1)
	}
	if err := run(proc); err != nil {
		proc.Logger.Error(context.Background(), "outbox publisher stopped unexpectedly", err)
		proc.Close()
		os.Exit(1)
	}
	proc.Close()
}

func run(proc *bootstrap.Process) error {
	cfg, logg := proc.Config, proc.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	proc.Defer("pubsub", pubsubClient.Close)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}

	reg := prometheus.NewRegistry()
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            proc.DB,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(proc.DB.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(proc.DB.DB()),
		Metrics:       metrics.NewOutboxMetrics(reg),
	})
	if err != nil {
		return fmt.Errorf("outbox publisher: %w", err)
	}
	proc.Defer("publishers", func() error {
		service.Close()
		return nil
	})
	proc.ServeMetrics(ctx, reg)

	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"topics": eventRegistry.Topics(),
	})
	logg.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
	return nil
}
