// Package bootstrap holds the start-up sequence shared by the storefront
// binaries: environment, config, logger, database and an ordered shutdown.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const metricsShutdownTimeout = 5 * time.Second

// Process is a started binary. Close releases everything opened through it
// in reverse order.
type Process struct {
	Name   string
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// Start loads .env and config, builds the logger, opens the database and
// prepares the schema. Failures are logged before they are returned.
func Start(ctx context.Context, name string) (*Process, error) {
	logg := logger.New(logger.Options{ServiceName: name})
	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		return nil, err
	}
	cfg.Service.Kind = name

	p := &Process{
		Name:   name,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: name,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
			Format:      cfg.App.LogFormat,
		}),
	}

	dbClient, err := db.New(ctx, cfg.DB, p.Logger)
	if err != nil {
		return nil, p.fail(ctx, "failed to bootstrap database", err)
	}
	p.DB = dbClient
	p.Defer("database", dbClient.Close)

	if err := migrate.AutoRun(ctx, cfg, p.Logger, dbClient); err != nil {
		return nil, p.fail(ctx, "failed to prepare schema", err)
	}
	return p, nil
}

// Redis opens the shared redis client and registers it for shutdown.
func (p *Process) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}
	p.Defer("redis", client.Close)
	return client, nil
}

// Defer registers fn to run during Close.
func (p *Process) Defer(name string, fn func() error) {
	p.closers = append(p.closers, namedCloser{name: name, close: fn})
}

// Close runs the registered closers newest first and logs any failure.
func (p *Process) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.close(); err != nil {
			p.Logger.Error(context.Background(), fmt.Sprintf("error closing %s", c.name), err)
		}
	}
	p.closers = nil
}

// ServeMetrics exposes gatherer on Config.Service.MetricsAddr until ctx ends.
// It does nothing when no address is configured.
func (p *Process) ServeMetrics(ctx context.Context, gatherer prometheus.Gatherer) {
	addr := p.Config.Service.MetricsAddr
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.Logger.Error(ctx, "metrics listener stopped", err)
		}
	}()
	p.Defer("metrics listener", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	p.Logger.Info(p.Logger.WithField(ctx, "addr", addr), "serving metrics")
}

func (p *Process) fail(ctx context.Context, msg string, err error) error {
	p.Logger.Error(ctx, msg, err)
	p.Close()
	return err
}
