package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

const (
	defaultGuestTTL      = 30 * 24 * time.Hour
	defaultUserRetention = 30 * 24 * time.Hour
)

// Service exposes cart operations for guest and user owners.
type Service interface {
	AddLine(ctx context.Context, owner Owner, key VariantKey, quantity int) error
	RemoveLine(ctx context.Context, owner Owner, key VariantKey) error
	UpdateQuantity(ctx context.Context, owner Owner, key VariantKey, update QuantityUpdate) error
	ListLines(ctx context.Context, owner Owner) ([]Line, error)
	Clear(ctx context.Context, owner Owner) error
	Count(ctx context.Context, owner Owner) (int, error)
	Merge(ctx context.Context, guestToken string, userID uuid.UUID) (MergeResult, error)
	View(ctx context.Context, owner Owner) (*CartView, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productCatalog interface {
	FindByIDs(ctx context.Context, ids []int64) (map[int64]product.Product, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams bundles the dependencies required to build a cart service.
type ServiceParams struct {
	Repo    LineStore
	Tx      txRunner
	Catalog productCatalog
	Events  eventEmitter
	Metrics *metrics.CartMetrics
	Logger  *logger.Logger
	Config  config.CartConfig
	Now     func() time.Time
}

type service struct {
	repo          LineStore
	tx            txRunner
	catalog       productCatalog
	events        eventEmitter
	metrics       *metrics.CartMetrics
	logg          *logger.Logger
	guestTTL      time.Duration
	userRetention time.Duration
	now           func() time.Time
}

// NewService constructs a cart service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("product catalog is required")
	}
	guestTTL := params.Config.GuestTTL
	if guestTTL <= 0 {
		guestTTL = defaultGuestTTL
	}
	retention := params.Config.UserRetention
	if retention <= 0 {
		retention = defaultUserRetention
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:          params.Repo,
		tx:            params.Tx,
		catalog:       params.Catalog,
		events:        params.Events,
		metrics:       params.Metrics,
		logg:          params.Logger,
		guestTTL:      guestTTL,
		userRetention: retention,
		now:           func() time.Time { return now().UTC() },
	}, nil
}

func validateTarget(owner Owner, key VariantKey) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	return key.Validate()
}

func storeError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func lineNotFound(key VariantKey) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found").
		WithDetails(map[string]any{"variant": key.String()})
}

func (s *service) AddLine(ctx context.Context, owner Owner, key VariantKey, quantity int) error {
	if err := validateTarget(owner, key); err != nil {
		return err
	}
	if quantity < 1 {
		quantity = 1
	}
	return storeError(s.addQuantity(ctx, owner, key, quantity, s.now()), "add cart line")
}

// addQuantity increments the matching line or inserts it. A unique violation
// means a concurrent add inserted the line first, so the increment is retried.
func (s *service) addQuantity(ctx context.Context, owner Owner, key VariantKey, quantity int, now time.Time) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.DeleteHiddenLine(ctx, owner, key, s.visibleFilter(owner, now)); err != nil {
			return err
		}
		rows, err := repo.IncrementQuantity(ctx, owner, key, quantity, now)
		if err != nil {
			return err
		}
		if rows > 0 {
			return nil
		}
		return repo.InsertLine(ctx, owner, key, quantity, now, s.expiryFor(owner, now))
	})
	index, table := uniqueTargetFor(owner.Kind)
	if err == nil || !dbpkg.IsUniqueViolationOn(err, index, table) {
		return err
	}
	rows, err := s.repo.IncrementQuantity(ctx, owner, key, quantity, now)
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "cart line changed concurrently")
	}
	return nil
}

func (s *service) expiryFor(owner Owner, now time.Time) *time.Time {
	if !owner.IsGuest() {
		return nil
	}
	expires := now.Add(s.guestTTL)
	return &expires
}

func (s *service) RemoveLine(ctx context.Context, owner Owner, key VariantKey) error {
	if err := validateTarget(owner, key); err != nil {
		return err
	}
	return s.removeVisible(ctx, owner, key, s.now())
}

func (s *service) removeVisible(ctx context.Context, owner Owner, key VariantKey, now time.Time) error {
	if err := s.dropHidden(ctx, owner, key, now); err != nil {
		return err
	}
	rows, err := s.repo.DeleteLine(ctx, owner, key)
	if err != nil {
		return storeError(err, "remove cart line")
	}
	if rows == 0 {
		return lineNotFound(key)
	}
	return nil
}

// dropHidden deletes the line for key when the visibility window hides it
// and reports it as missing.
func (s *service) dropHidden(ctx context.Context, owner Owner, key VariantKey, now time.Time) error {
	rows, err := s.repo.DeleteHiddenLine(ctx, owner, key, s.visibleFilter(owner, now))
	if err != nil {
		return storeError(err, "drop hidden cart line")
	}
	if rows > 0 {
		return lineNotFound(key)
	}
	return nil
}

func (s *service) UpdateQuantity(ctx context.Context, owner Owner, key VariantKey, update QuantityUpdate) error {
	if err := validateTarget(owner, key); err != nil {
		return err
	}
	now := s.now()
	switch update.Mode {
	case QuantityRelative:
		return s.stepQuantity(ctx, owner, key, update.Value, now)
	case QuantityAbsolute:
		if update.Value < 1 {
			return s.removeVisible(ctx, owner, key, now)
		}
		if err := s.dropHidden(ctx, owner, key, now); err != nil {
			return err
		}
		rows, err := s.repo.SetQuantity(ctx, owner, key, update.Value, now)
		if err != nil {
			return storeError(err, "set cart line quantity")
		}
		if rows == 0 {
			return lineNotFound(key)
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown quantity update mode")
	}
}

func (s *service) stepQuantity(ctx context.Context, owner Owner, key VariantKey, delta int, now time.Time) error {
	if delta != 1 && delta != -1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "relative quantity updates step by one").
			WithDetails(map[string]any{"delta": delta})
	}
	if err := s.dropHidden(ctx, owner, key, now); err != nil {
		return err
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.StepQuantity(ctx, owner, key, delta, now)
		if err != nil {
			return err
		}
		if rows > 0 {
			return nil
		}
		// the step would drop the line below one, or the line is missing
		deleted, err := repo.DeleteLine(ctx, owner, key)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return lineNotFound(key)
		}
		return nil
	})
	return storeError(err, "step cart line quantity")
}

func (s *service) visibleFilter(owner Owner, now time.Time) ListFilter {
	if owner.IsGuest() {
		return ListFilter{ExpiresAfter: &now}
	}
	since := now.Add(-s.userRetention)
	return ListFilter{CreatedSince: &since}
}

func (s *service) ListLines(ctx context.Context, owner Owner) ([]Line, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	lines, err := s.repo.ListLines(ctx, owner, s.visibleFilter(owner, s.now()))
	if err != nil {
		return nil, storeError(err, "list cart lines")
	}
	return lines, nil
}

func (s *service) Clear(ctx context.Context, owner Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	if _, err := s.repo.DeleteOwner(ctx, owner); err != nil {
		return storeError(err, "clear cart")
	}
	return nil
}

func (s *service) Count(ctx context.Context, owner Owner) (int, error) {
	if err := owner.Validate(); err != nil {
		return 0, err
	}
	total, err := s.repo.SumQuantity(ctx, owner, s.visibleFilter(owner, s.now()))
	if err != nil {
		return 0, storeError(err, "count cart")
	}
	return total, nil
}
