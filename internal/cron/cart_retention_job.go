package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const defaultUserRetention = 30 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CartRetentionJobParams configure the cart retention sweep.
type CartRetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Store         cart.LineStore
	Events        eventEmitter
	Metrics       *metrics.CartMetrics
	UserRetention time.Duration
}

// NewCartRetentionJob builds the job that physically removes cart lines the
// read side already hides: expired guest lines and user lines past retention.
func NewCartRetentionJob(params CartRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	retention := params.UserRetention
	if retention <= 0 {
		retention = defaultUserRetention
	}
	return &cartRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		store:     params.Store,
		events:    params.Events,
		metrics:   params.Metrics,
		retention: retention,
		now:       time.Now,
	}, nil
}

type cartRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	store     cart.LineStore
	events    eventEmitter
	metrics   *metrics.CartMetrics
	retention time.Duration
	now       func() time.Time
}

func (j *cartRetentionJob) Name() string { return "cart-retention" }

func (j *cartRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.retention)
	runID := uuid.New()

	var guestPurged, userPurged int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		store := j.store.WithTx(tx)
		var err error
		if guestPurged, err = store.DeleteExpiredGuestLines(ctx, now); err != nil {
			return fmt.Errorf("delete expired guest lines: %w", err)
		}
		if userPurged, err = store.DeleteUserLinesCreatedBefore(ctx, cutoff); err != nil {
			return fmt.Errorf("delete stale user lines: %w", err)
		}
		if j.events == nil || guestPurged+userPurged == 0 {
			return nil
		}
		return j.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartRetentionPurged,
			AggregateType: enums.AggregateCartRetention,
			AggregateID:   runID,
			OccurredAt:    now,
			Data: payloads.CartRetentionPurgedEvent{
				RunID:            runID,
				GuestLinesPurged: guestPurged,
				UserLinesPurged:  userPurged,
				UserCutoff:       cutoff,
				RanAt:            now,
			},
		})
	})
	if err != nil {
		return fmt.Errorf("cart retention: %w", err)
	}

	j.metrics.AddPurged(string(enums.CartOwnerGuest), guestPurged)
	j.metrics.AddPurged(string(enums.CartOwnerUser), userPurged)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"run_id":             runID.String(),
		"user_cutoff":        cutoff,
		"guest_lines_purged": guestPurged,
		"user_lines_purged":  userPurged,
	})
	j.logg.Info(logCtx, "cart retention cleanup complete")
	return nil
}
