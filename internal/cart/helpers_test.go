package cart

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	db       *gorm.DB
	repo     *Repository
	svc      Service
	registry *prometheus.Registry
	metrics  *metrics.CartMetrics
	logs     *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.AutoMigrateModels(conn))

	logs := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "cart-test", Output: logs})
	registry := prometheus.NewRegistry()
	cartMetrics := metrics.NewCartMetrics(registry)
	repo := NewRepository(conn)

	svc, err := NewService(ServiceParams{
		Repo:    repo,
		Tx:      dbpkg.NewFromGorm(conn),
		Catalog: product.NewRepository(conn),
		Events:  outbox.NewService(outbox.NewRepository(conn), logg),
		Metrics: cartMetrics,
		Logger:  logg,
		Config: config.CartConfig{
			GuestTTL:      30 * 24 * time.Hour,
			UserRetention: 30 * 24 * time.Hour,
		},
		Now: func() time.Time { return testNow },
	})
	require.NoError(t, err)

	return &testEnv{db: conn, repo: repo, svc: svc, registry: registry, metrics: cartMetrics, logs: logs}
}

func (e *testEnv) createProduct(t *testing.T, sku, name, price string) int64 {
	t.Helper()
	row := models.Product{
		SKU:      sku,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		IsActive: true,
	}
	require.NoError(t, e.db.Create(&row).Error)
	return row.ID
}

func (e *testEnv) lines(t *testing.T, owner Owner) []Line {
	t.Helper()
	lines, err := e.svc.ListLines(context.Background(), owner)
	require.NoError(t, err)
	return lines
}

func (e *testEnv) rawLines(t *testing.T, owner Owner) []Line {
	t.Helper()
	lines, err := e.repo.ListLines(context.Background(), owner, ListFilter{})
	require.NoError(t, err)
	return lines
}

func str(v string) *string { return &v }

func guestToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
