package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// MergeResult summarises one guest-to-user cart merge. Err combines the
// per-line failures; they never stop the merge or the guest cart cleanup.
type MergeResult struct {
	GuestLines   int
	Migrated     int
	Failed       int
	GuestCleared bool
	Err          error
}

// Merge folds every guest line into the user's cart, summing quantities of
// matching variants, then deletes the guest cart. A user line already past
// retention is hidden from the shopper, so it is dropped and the guest
// quantity starts a fresh line, the same as AddLine.
func (s *service) Merge(ctx context.Context, guestToken string, userID uuid.UUID) (MergeResult, error) {
	guest := GuestOwner(guestToken)
	user := UserOwner(userID)
	if err := guest.Validate(); err != nil {
		return MergeResult{}, err
	}
	if err := user.Validate(); err != nil {
		return MergeResult{}, err
	}

	// near-expiry lines migrate too, so no visibility filter here
	lines, err := s.repo.ListLines(ctx, guest, ListFilter{})
	if err != nil {
		return MergeResult{}, storeError(err, "list guest cart lines")
	}

	result := MergeResult{GuestLines: len(lines)}
	now := s.now()
	for _, line := range lines {
		key := line.Key()
		if err := s.mergeLine(ctx, user, key, line.Quantity, now); err != nil {
			result.Failed++
			result.Err = multierr.Append(result.Err, fmt.Errorf("merge line %s: %w", key, err))
			s.logMergeFailure(ctx, userID, line, err)
			continue
		}
		result.Migrated++
	}

	if err := s.clearGuest(ctx, guest, userID, result, now); err != nil {
		s.metrics.ObserveMerge(result.Migrated, result.Failed)
		return result, storeError(err, "clear guest cart")
	}
	result.GuestCleared = true
	s.metrics.ObserveMerge(result.Migrated, result.Failed)

	if s.logg != nil && result.GuestLines > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":     userID.String(),
			"guest_lines": result.GuestLines,
			"migrated":    result.Migrated,
			"failed":      result.Failed,
		})
		s.logg.Info(logCtx, "guest cart merged")
	}
	return result, nil
}

func (s *service) mergeLine(ctx context.Context, user Owner, key VariantKey, quantity int, now time.Time) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if quantity < 1 {
		quantity = 1
	}
	return s.addQuantity(ctx, user, key, quantity, now)
}

// clearGuest deletes the guest cart and queues cart_merged in the same
// transaction. If that transaction fails the guest cart is still deleted
// without the event.
func (s *service) clearGuest(ctx context.Context, guest Owner, userID uuid.UUID, result MergeResult, now time.Time) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).DeleteOwner(ctx, guest); err != nil {
			return err
		}
		if s.events == nil || result.GuestLines == 0 {
			return nil
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartMerged,
			AggregateType: enums.AggregateUserCart,
			AggregateID:   userID,
			Actor:         outbox.UserActor(userID),
			Version:       1,
			OccurredAt:    now,
			Data: payloads.CartMergedEvent{
				UserID:        userID,
				GuestLines:    result.GuestLines,
				MigratedLines: result.Migrated,
				FailedLines:   result.Failed,
				MergedAt:      now,
			},
		})
	})
	if err == nil {
		return nil
	}
	if s.logg != nil {
		s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "guest cart clear transaction failed", err)
	}
	_, fallbackErr := s.repo.DeleteOwner(ctx, guest)
	return fallbackErr
}

func (s *service) logMergeFailure(ctx context.Context, userID uuid.UUID, line Line, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":    userID.String(),
		"product_id": line.ProductID,
		"variant":    line.Key().String(),
		"quantity":   line.Quantity,
		"error":      err.Error(),
	})
	s.logg.Warn(logCtx, "guest cart line merge failed")
}
