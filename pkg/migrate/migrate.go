// Package migrate owns the schema: goose SQL migrations for Postgres and a
// gorm AutoMigrate path for sqlite.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

const DefaultDir = "pkg/migrate/migrations"

// SchemaModels mirrors the SQL migrations for sqlite, which cannot run the
// Postgres DDL.
func SchemaModels() []any {
	return []any{
		&models.User{},
		&models.Product{},
		&models.ProductFile{},
		&models.GuestCartItem{},
		&models.UserCartItem{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

func AutoMigrateModels(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("db is required")
	}
	if err := conn.AutoMigrate(SchemaModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Step is one migration touched or reported by a command.
type Step struct {
	Version  int64
	Path     string
	State    string
	Duration time.Duration
}

func provider(db *sql.DB, dir string) (*goose.Provider, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dir == "" {
		return nil, errors.New("dir is required")
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return p, nil
}

// Run executes up, down or status against dir.
func Run(ctx context.Context, db *sql.DB, dir, command string) ([]Step, error) {
	p, err := provider(db, dir)
	if err != nil {
		return nil, err
	}
	switch command {
	case "up":
		results, err := p.Up(ctx)
		return applied(results), wrapGoose(command, err)
	case "down":
		result, err := p.Down(ctx)
		if result == nil {
			return nil, wrapGoose(command, err)
		}
		return applied([]*goose.MigrationResult{result}), wrapGoose(command, err)
	case "status":
		statuses, err := p.Status(ctx)
		if err != nil {
			return nil, wrapGoose(command, err)
		}
		steps := make([]Step, 0, len(statuses))
		for _, st := range statuses {
			steps = append(steps, Step{Version: st.Source.Version, Path: st.Source.Path, State: string(st.State)})
		}
		return steps, nil
	}
	return nil, fmt.Errorf("unsupported goose command %q", command)
}

// MigrateToVersion moves the schema up or down until target is the current
// version. target is the YYYYMMDDHHMMSS prefix of a migration file.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir, target string) ([]Step, error) {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	p, err := provider(db, dir)
	if err != nil {
		return nil, err
	}
	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current < version:
		results, err = p.UpTo(ctx, version)
	case current > version:
		results, err = p.DownTo(ctx, version)
	}
	return applied(results), wrapGoose(fmt.Sprintf("to %d", version), err)
}

func applied(results []*goose.MigrationResult) []Step {
	steps := make([]Step, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		steps = append(steps, Step{
			Version:  r.Source.Version,
			Path:     r.Source.Path,
			State:    r.Direction,
			Duration: r.Duration,
		})
	}
	return steps
}

func wrapGoose(command string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("goose %s: %w", command, err)
}
