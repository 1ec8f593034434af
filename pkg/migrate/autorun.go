package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// AutoRun prepares the schema at process start. sqlite databases are always
// built from the models; Postgres runs goose up only in dev with
// STOREFRONT_AUTO_MIGRATE set.
func AutoRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client == nil {
		return errors.New("db client is required")
	}
	conn := client.DB()

	if cfg.DB.IsSQLite() {
		if logg != nil {
			logg.Info(logg.WithField(ctx, "driver", cfg.DB.Driver), "building sqlite schema from models")
		}
		return AutoMigrateModels(conn)
	}
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	start := time.Now()
	steps, err := Run(ctx, sqlDB, DefaultDir, "up")
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"env":         cfg.App.Env,
			"dir":         DefaultDir,
			"applied":     len(steps),
			"duration_ms": time.Since(start).Milliseconds(),
		}), "goose migrations applied")
	}
	return nil
}
