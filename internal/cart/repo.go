package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// LineStore is the persistence surface shared by guest and user carts.
type LineStore interface {
	WithTx(tx *gorm.DB) LineStore
	FindLine(ctx context.Context, owner Owner, key VariantKey) (*Line, error)
	ListLines(ctx context.Context, owner Owner, filter ListFilter) ([]Line, error)
	SumQuantity(ctx context.Context, owner Owner, filter ListFilter) (int, error)
	IncrementQuantity(ctx context.Context, owner Owner, key VariantKey, delta int, now time.Time) (int64, error)
	StepQuantity(ctx context.Context, owner Owner, key VariantKey, delta int, now time.Time) (int64, error)
	SetQuantity(ctx context.Context, owner Owner, key VariantKey, quantity int, now time.Time) (int64, error)
	InsertLine(ctx context.Context, owner Owner, key VariantKey, quantity int, now time.Time, expiresAt *time.Time) error
	DeleteLine(ctx context.Context, owner Owner, key VariantKey) (int64, error)
	DeleteHiddenLine(ctx context.Context, owner Owner, key VariantKey, filter ListFilter) (int64, error)
	DeleteOwner(ctx context.Context, owner Owner) (int64, error)
	DeleteExpiredGuestLines(ctx context.Context, now time.Time) (int64, error)
	DeleteUserLinesCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ownerTable describes where one owner kind keeps its lines.
type ownerTable struct {
	name        string
	ownerColumn string
	uniqueIndex string
	expires     bool
	model       func() any
}

var ownerTables = map[enums.CartOwnerKind]ownerTable{
	enums.CartOwnerGuest: {
		name:        "guest_cart_items",
		ownerColumn: "guest_token",
		uniqueIndex: "ux_guest_cart_items_variant",
		expires:     true,
		model:       func() any { return &models.GuestCartItem{} },
	},
	enums.CartOwnerUser: {
		name:        "user_cart_items",
		ownerColumn: "user_id",
		uniqueIndex: "ux_user_cart_items_variant",
		model:       func() any { return &models.UserCartItem{} },
	},
}

func tableFor(kind enums.CartOwnerKind) (ownerTable, error) {
	table, ok := ownerTables[kind]
	if !ok {
		return ownerTable{}, fmt.Errorf("unknown cart owner kind %q", kind)
	}
	return table, nil
}

// uniqueTargetFor names the variant index of kind and the table it lives on.
func uniqueTargetFor(kind enums.CartOwnerKind) (index, table string) {
	t := ownerTables[kind]
	return t.uniqueIndex, t.name
}

// lineRow is the common projection of both cart tables.
type lineRow struct {
	ID            int64      `gorm:"column:id"`
	OwnerID       string     `gorm:"column:owner_id"`
	ProductID     int64      `gorm:"column:product_id"`
	SelectedColor *string    `gorm:"column:selected_color"`
	SelectedSize  *string    `gorm:"column:selected_size"`
	Quantity      int        `gorm:"column:quantity"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	ExpiresAt     *time.Time `gorm:"column:expires_at"`
}

func (r lineRow) toLine(kind enums.CartOwnerKind) Line {
	return Line{
		ID:        r.ID,
		Owner:     Owner{Kind: kind, ID: r.OwnerID},
		ProductID: r.ProductID,
		Color:     Normalize(r.SelectedColor),
		Size:      Normalize(r.SelectedSize),
		Quantity:  r.Quantity,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
}

// Repository stores cart lines for both owner kinds in their own tables.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) LineStore {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) scoped(ctx context.Context, owner Owner) (*gorm.DB, ownerTable, error) {
	table, err := tableFor(owner.Kind)
	if err != nil {
		return nil, ownerTable{}, err
	}
	q := r.db.WithContext(ctx).Table(table.name).
		Where(clause.Eq{Column: clause.Column{Name: table.ownerColumn}, Value: owner.ID})
	return q, table, nil
}

// variantExprs matches a key. An unset variant matches NULL as well as the
// empty string some legacy rows still carry.
func variantExprs(key VariantKey) []clause.Expression {
	exprs := []clause.Expression{
		clause.Eq{Column: clause.Column{Name: "product_id"}, Value: key.ProductID},
	}
	variants := []struct {
		column string
		value  *string
	}{
		{column: "selected_color", value: key.Color},
		{column: "selected_size", value: key.Size},
	}
	for _, v := range variants {
		col := clause.Column{Name: v.column}
		if v.value == nil {
			exprs = append(exprs, clause.Or(
				clause.Eq{Column: col, Value: nil},
				clause.Eq{Column: col, Value: ""},
			))
			continue
		}
		exprs = append(exprs, clause.Eq{Column: col, Value: *v.value})
	}
	return exprs
}

func applyFilter(q *gorm.DB, table ownerTable, filter ListFilter) *gorm.DB {
	if filter.ExpiresAfter != nil && table.expires {
		q = q.Where(clause.Gt{Column: clause.Column{Name: "expires_at"}, Value: *filter.ExpiresAfter})
	}
	if filter.CreatedSince != nil {
		q = q.Where(clause.Gte{Column: clause.Column{Name: "created_at"}, Value: *filter.CreatedSince})
	}
	return q
}

// hiddenExprs is the negation of applyFilter: rows a read with filter would skip.
func hiddenExprs(table ownerTable, filter ListFilter) []clause.Expression {
	var exprs []clause.Expression
	if filter.ExpiresAfter != nil && table.expires {
		exprs = append(exprs, clause.Lte{Column: clause.Column{Name: "expires_at"}, Value: *filter.ExpiresAfter})
	}
	if filter.CreatedSince != nil {
		exprs = append(exprs, clause.Lt{Column: clause.Column{Name: "created_at"}, Value: *filter.CreatedSince})
	}
	return exprs
}

func selectColumns(table ownerTable) string {
	expires := "NULL AS expires_at"
	if table.expires {
		expires = "expires_at"
	}
	return fmt.Sprintf(
		"id, %s AS owner_id, product_id, selected_color, selected_size, quantity, created_at, %s",
		table.ownerColumn, expires,
	)
}

// FindLine loads the line matching key, or nil when none exists.
func (r *Repository) FindLine(ctx context.Context, owner Owner, key VariantKey) (*Line, error) {
	q, table, err := r.scoped(ctx, owner)
	if err != nil {
		return nil, err
	}
	var row lineRow
	err = q.Select(selectColumns(table)).
		Where(clause.And(variantExprs(key)...)).
		Order("id ASC").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	line := row.toLine(owner.Kind)
	return &line, nil
}

// ListLines returns the owner's lines in insertion order.
func (r *Repository) ListLines(ctx context.Context, owner Owner, filter ListFilter) ([]Line, error) {
	q, table, err := r.scoped(ctx, owner)
	if err != nil {
		return nil, err
	}
	var rows []lineRow
	err = applyFilter(q, table, filter).
		Select(selectColumns(table)).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, row.toLine(owner.Kind))
	}
	return lines, nil
}

// SumQuantity totals the quantities of the owner's lines.
func (r *Repository) SumQuantity(ctx context.Context, owner Owner, filter ListFilter) (int, error) {
	q, table, err := r.scoped(ctx, owner)
	if err != nil {
		return 0, err
	}
	var total int64
	err = applyFilter(q, table, filter).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

// IncrementQuantity adds delta to the matching line in a single statement and
// reports how many rows changed.
func (r *Repository) IncrementQuantity(ctx context.Context, owner Owner, key VariantKey, delta int, now time.Time) (int64, error) {
	q, _, err := r.scoped(ctx, owner)
	if err != nil {
		return 0, err
	}
	res := q.Where(clause.And(variantExprs(key)...)).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", delta),
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// StepQuantity is IncrementQuantity guarded so the result stays at or above one.
// Zero rows means the line is missing or the step would drop it below one.
func (r *Repository) StepQuantity(ctx context.Context, owner Owner, key VariantKey, delta int, now time.Time) (int64, error) {
	q, _, err := r.scoped(ctx, owner)
	if err != nil {
		return 0, err
	}
	res := q.Where(clause.And(variantExprs(key)...)).
		Where("quantity + ? >= 1", delta).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", delta),
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// SetQuantity overwrites the matching line's quantity.
func (r *Repository) SetQuantity(ctx context.Context, owner Owner, key VariantKey, quantity int, now time.Time) (int64, error) {
	q, _, err := r.scoped(ctx, owner)
	if err != nil {
		return 0, err
	}
	res := q.Where(clause.And(variantExprs(key)...)).
		Updates(map[string]any{
			"quantity":   quantity,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// InsertLine creates a new line. expiresAt is required for guest lines and
// ignored for user lines.
func (r *Repository) InsertLine(ctx context.Context, owner Owner, key VariantKey, quantity int, now time.Time, expiresAt *time.Time) error {
	var row any
	switch owner.Kind {
	case enums.CartOwnerGuest:
		if expiresAt == nil {
			return fmt.Errorf("guest cart lines require an expiry")
		}
		row = &models.GuestCartItem{
			GuestToken:    owner.ID,
			ProductID:     key.ProductID,
			SelectedColor: key.Color,
			SelectedSize:  key.Size,
			Quantity:      quantity,
			CreatedAt:     now,
			UpdatedAt:     now,
			ExpiresAt:     *expiresAt,
		}
	case enums.CartOwnerUser:
		userID, err := uuid.Parse(owner.ID)
		if err != nil {
			return fmt.Errorf("parse user id: %w", err)
		}
		row = &models.UserCartItem{
			UserID:        userID,
			ProductID:     key.ProductID,
			SelectedColor: key.Color,
			SelectedSize:  key.Size,
			Quantity:      quantity,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	default:
		return fmt.Errorf("unknown cart owner kind %q", owner.Kind)
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// DeleteLine removes the line matching key.
func (r *Repository) DeleteLine(ctx context.Context, owner Owner, key VariantKey) (int64, error) {
	q, table, err := r.scoped(ctx, owner)
	if err != nil {
		return 0, err
	}
	res := q.Where(clause.And(variantExprs(key)...)).Delete(table.model())
	return res.RowsAffected, res.Error
}

// DeleteHiddenLine removes the line matching key when filter would hide it
// from reads. Writes call it first so they never revive such a line.
func (r *Repository) DeleteHiddenLine(ctx context.Context, owner Owner, key VariantKey, filter ListFilter) (int64, error) {
	q, table, err := r.scoped(ctx, owner)
	if err != nil {
		return 0, err
	}
	hidden := hiddenExprs(table, filter)
	if len(hidden) == 0 {
		return 0, nil
	}
	res := q.Where(clause.And(variantExprs(key)...)).
		Where(clause.Or(hidden...)).
		Delete(table.model())
	return res.RowsAffected, res.Error
}

// DeleteOwner removes every line the owner holds.
func (r *Repository) DeleteOwner(ctx context.Context, owner Owner) (int64, error) {
	q, table, err := r.scoped(ctx, owner)
	if err != nil {
		return 0, err
	}
	res := q.Delete(table.model())
	return res.RowsAffected, res.Error
}

// DeleteExpiredGuestLines purges guest lines whose expiry has passed.
func (r *Repository) DeleteExpiredGuestLines(ctx context.Context, now time.Time) (int64, error) {
	table := ownerTables[enums.CartOwnerGuest]
	res := r.db.WithContext(ctx).Table(table.name).
		Where(clause.Lte{Column: clause.Column{Name: "expires_at"}, Value: now}).
		Delete(table.model())
	return res.RowsAffected, res.Error
}

// DeleteUserLinesCreatedBefore purges user lines older than the retention cutoff.
func (r *Repository) DeleteUserLinesCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	table := ownerTables[enums.CartOwnerUser]
	res := r.db.WithContext(ctx).Table(table.name).
		Where(clause.Lt{Column: clause.Column{Name: "created_at"}, Value: cutoff}).
		Delete(table.model())
	return res.RowsAffected, res.Error
}
