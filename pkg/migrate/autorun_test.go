package migrate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
)

func TestAutoRunBuildsSQLiteSchema(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{DB: config.DBConfig{Driver: config.DBDriverSQLite}}
	require.NoError(t, AutoRun(context.Background(), cfg, nil, db.NewFromGorm(conn)))
	assert.True(t, conn.Migrator().HasTable("guest_cart_items"))
}

func TestAutoRunSkipsPostgresOutsideDev(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		App: config.AppConfig{Env: "prod"},
		DB:  config.DBConfig{Driver: "postgres"},
	}
	require.NoError(t, AutoRun(context.Background(), cfg, nil, db.NewFromGorm(conn)))
	assert.False(t, conn.Migrator().HasTable("guest_cart_items"))
}

func TestAutoRunRequiresClient(t *testing.T) {
	assert.Error(t, AutoRun(context.Background(), &config.Config{}, nil, nil))
}
