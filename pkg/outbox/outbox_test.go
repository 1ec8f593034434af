package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migrate.AutoMigrateModels(conn))
	return conn
}

func mergedEvent(userID uuid.UUID) DomainEvent {
	return DomainEvent{
		EventType:     enums.EventCartMerged,
		AggregateType: enums.AggregateUserCart,
		AggregateID:   userID,
		Actor:         UserActor(userID),
		Data:          map[string]any{"migrated_lines": 2},
	}
}

func TestEmitWritesEnvelope(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepository(db), nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	userID := uuid.New()

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, mergedEvent(userID))
	}))

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventCartMerged, rows[0].EventType)
	assert.Equal(t, userID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	assert.Equal(t, enums.EventCartMerged, envelope.EventType)
	assert.True(t, envelope.OccurredAt.Equal(svc.now()))
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, userID, envelope.Actor.UserID)
	assert.JSONEq(t, `{"migrated_lines":2}`, string(envelope.Data))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepository(db), nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, mergedEvent(uuid.New())); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitValidatesEvent(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepository(db), nil)
	ctx := context.Background()

	require.Error(t, svc.Emit(ctx, nil, mergedEvent(uuid.New())))

	bad := mergedEvent(uuid.Nil)
	require.Error(t, svc.Emit(ctx, db, bad))

	bad = mergedEvent(uuid.New())
	bad.EventType = "order_created"
	require.Error(t, svc.Emit(ctx, db, bad))

	bad = mergedEvent(uuid.New())
	bad.AggregateType = "vendor_order"
	require.Error(t, svc.Emit(ctx, db, bad))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Emit(ctx, db, mergedEvent(uuid.New())))
	}

	var pending []models.OutboxEvent
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		pending, err = repo.FetchUnpublishedForPublish(tx, 10, 3)
		return err
	}))
	require.Len(t, pending, 3)

	require.NoError(t, repo.MarkPublishedTx(db, pending[0].ID))
	require.NoError(t, repo.MarkFailedTx(db, pending[1].ID, errors.New("timeout")))
	require.NoError(t, repo.MarkTerminalTx(db, pending[2].ID, errors.New("bad payload"), 3))

	var failed models.OutboxEvent
	require.NoError(t, db.First(&failed, "id = ?", pending[1].ID).Error)
	assert.Equal(t, 1, failed.AttemptCount)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, "timeout", *failed.LastError)

	var terminal models.OutboxEvent
	require.NoError(t, db.First(&terminal, "id = ?", pending[2].ID).Error)
	assert.Equal(t, 3, terminal.AttemptCount)
	assert.Nil(t, terminal.PublishedAt)

	var next []models.OutboxEvent
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		next, err = repo.FetchUnpublishedForPublish(tx, 10, 3)
		return err
	}))
	require.Len(t, next, 1)
	assert.Equal(t, pending[1].ID, next[0].ID)
}

func TestDLQRepositoryTruncatesMessage(t *testing.T) {
	db := openTestDB(t)
	dlq := NewDLQRepository(db)

	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventCartMerged,
		AggregateType: enums.AggregateUserCart,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		AttemptCount:  3,
	}
	cause := errors.New(strings.Repeat("x", maxErrorLen+50))
	require.NoError(t, dlq.InsertTx(db, models.NewOutboxDLQ(event, enums.OutboxDLQReasonNonRetryable, cause, time.Now())))

	var found models.OutboxDLQ
	require.NoError(t, db.Where("event_id = ?", event.ID).First(&found).Error)
	require.NotNil(t, found.ErrorMessage)
	assert.Len(t, *found.ErrorMessage, maxErrorLen)
	assert.Equal(t, 3, found.AttemptCount)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, found.ErrorReason)
}
