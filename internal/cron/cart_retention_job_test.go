package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

var retentionNow = time.Date(2026, 4, 20, 3, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.AutoMigrateModels(conn))
	return conn
}

func newRetentionJob(t *testing.T, db *gorm.DB, reg prometheus.Registerer) *cartRetentionJob {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
	jobIface, err := NewCartRetentionJob(CartRetentionJobParams{
		Logger:  logg,
		DB:      dbpkg.NewFromGorm(db),
		Store:   cart.NewRepository(db),
		Events:  outbox.NewService(outbox.NewRepository(db), logg),
		Metrics: metrics.NewCartMetrics(reg),
	})
	require.NoError(t, err)
	job, ok := jobIface.(*cartRetentionJob)
	require.True(t, ok)
	job.now = func() time.Time { return retentionNow }
	return job
}

func seedGuestLine(t *testing.T, db *gorm.DB, token string, productID int64, expiresAt time.Time) {
	t.Helper()
	created := expiresAt.Add(-30 * 24 * time.Hour)
	require.NoError(t, db.Create(&models.GuestCartItem{
		GuestToken: token,
		ProductID:  productID,
		Quantity:   1,
		CreatedAt:  created,
		UpdatedAt:  created,
		ExpiresAt:  expiresAt,
	}).Error)
}

func seedUserLine(t *testing.T, db *gorm.DB, userID uuid.UUID, productID int64, createdAt time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.UserCartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  2,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}).Error)
}

func TestCartRetentionJobPurgesHiddenLines(t *testing.T) {
	db := openTestDB(t)
	reg := prometheus.NewRegistry()
	job := newRetentionJob(t, db, reg)
	userID := uuid.New()

	seedGuestLine(t, db, "guest-old", 1, retentionNow.Add(-time.Hour))
	seedGuestLine(t, db, "guest-edge", 2, retentionNow)
	seedGuestLine(t, db, "guest-fresh", 3, retentionNow.Add(time.Hour))
	seedUserLine(t, db, userID, 1, retentionNow.Add(-31*24*time.Hour))
	seedUserLine(t, db, userID, 2, retentionNow.Add(-29*24*time.Hour))

	require.NoError(t, job.Run(context.Background()))

	var guests []models.GuestCartItem
	require.NoError(t, db.Find(&guests).Error)
	require.Len(t, guests, 1)
	assert.Equal(t, "guest-fresh", guests[0].GuestToken)

	var usersLeft []models.UserCartItem
	require.NoError(t, db.Find(&usersLeft).Error)
	require.Len(t, usersLeft, 1)
	assert.Equal(t, int64(2), usersLeft[0].ProductID)

	var events []models.OutboxEvent
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventCartRetentionPurged, events[0].EventType)
	assert.Equal(t, enums.AggregateCartRetention, events[0].AggregateType)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	var payload payloads.CartRetentionPurgedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, events[0].AggregateID, payload.RunID)
	assert.Equal(t, int64(2), payload.GuestLinesPurged)
	assert.Equal(t, int64(1), payload.UserLinesPurged)
	assert.True(t, payload.UserCutoff.Equal(retentionNow.Add(-defaultUserRetention)))

	assert.Equal(t, float64(2), purgedCounter(t, reg, "guest"))
	assert.Equal(t, float64(1), purgedCounter(t, reg, "user"))
}

func TestCartRetentionJobNothingToPurge(t *testing.T) {
	db := openTestDB(t)
	job := newRetentionJob(t, db, prometheus.NewRegistry())
	seedGuestLine(t, db, "guest-fresh", 1, retentionNow.Add(time.Hour))

	require.NoError(t, job.Run(context.Background()))

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count, "an empty sweep emits no event")
}

func TestCartRetentionJobRollsBackOnEmitFailure(t *testing.T) {
	db := openTestDB(t)
	job := newRetentionJob(t, db, nil)
	job.events = failingEmitter{}
	seedGuestLine(t, db, "guest-old", 1, retentionNow.Add(-time.Hour))

	err := job.Run(context.Background())
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.GuestCartItem{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestNewCartRetentionJobValidation(t *testing.T) {
	_, err := NewCartRetentionJob(CartRetentionJobParams{})
	assert.Error(t, err)
}

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}

func purgedCounter(t *testing.T, reg *prometheus.Registry, owner string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "storefront_cart_retention_purged_lines_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "owner" && label.GetValue() == owner {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("purged counter for %q not found", owner)
	return 0
}
