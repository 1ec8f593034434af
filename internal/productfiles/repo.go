package productfiles

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

var (
	sizeColumn  = clause.Column{Name: "size_variant"}
	colorColumn = clause.Column{Name: "color_variant"}
)

// Repository reads product files.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a product file repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Resolve returns the active files of a product that serve the requested
// variant. See variantFilter for the matching rules.
func (r *Repository) Resolve(ctx context.Context, productID int64, size, color *string) ([]models.ProductFile, error) {
	q := r.db.WithContext(ctx).
		Model(&models.ProductFile{}).
		Where(clause.Eq{Column: clause.Column{Name: "product_id"}, Value: productID}).
		Where(clause.Eq{Column: clause.Column{Name: "is_active"}, Value: true})
	if filter := variantFilter(cart.Normalize(size), cart.Normalize(color)); filter != nil {
		q = q.Where(filter)
	}

	var rows []models.ProductFile
	err := q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: sizeColumn},
		{Column: colorColumn},
		{Column: clause.Column{Name: "uploaded_at"}, Desc: true},
	}}).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// variantFilter builds the match for a requested variant:
//   - nothing requested: no filter
//   - size and color: exact pair, or generic
//   - size only: that size with no color, or generic
//   - color only: that color with no size, or generic
//
// Files with only one variant set never match a request for both.
func variantFilter(size, color *string) clause.Expression {
	if size == nil && color == nil {
		return nil
	}
	generic := clause.And(
		clause.Eq{Column: sizeColumn, Value: nil},
		clause.Eq{Column: colorColumn, Value: nil},
	)

	var exact clause.Expression
	switch {
	case size != nil && color != nil:
		exact = clause.And(
			clause.Eq{Column: sizeColumn, Value: *size},
			clause.Eq{Column: colorColumn, Value: *color},
		)
	case size != nil:
		exact = clause.And(
			clause.Eq{Column: sizeColumn, Value: *size},
			clause.Eq{Column: colorColumn, Value: nil},
		)
	default:
		exact = clause.And(
			clause.Eq{Column: colorColumn, Value: *color},
			clause.Eq{Column: sizeColumn, Value: nil},
		)
	}
	return clause.Or(exact, generic)
}
