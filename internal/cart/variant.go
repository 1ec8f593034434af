package cart

import (
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Normalize trims a variant value. Absent and blank values both become nil so
// that "" and NULL identify the same variant.
func Normalize(value *string) *string {
	if value == nil {
		return nil
	}
	return NormalizeString(*value)
}

// NormalizeString is Normalize for values that arrive as plain strings.
func NormalizeString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// VariantKey is the canonical (product, color, size) identity of a cart line.
type VariantKey struct {
	ProductID int64
	Color     *string
	Size      *string
}

// NewVariantKey builds a key with normalized variant fields.
func NewVariantKey(productID int64, color, size *string) VariantKey {
	return VariantKey{
		ProductID: productID,
		Color:     Normalize(color),
		Size:      Normalize(size),
	}
}

// Validate rejects keys that cannot reference a product.
func (k VariantKey) Validate() error {
	if k.ProductID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "product_id must be a positive integer").
			WithDetails(map[string]any{"product_id": k.ProductID})
	}
	return nil
}

// Equal compares two keys field by field.
func (k VariantKey) Equal(other VariantKey) bool {
	return k.ProductID == other.ProductID &&
		equalVariant(k.Color, other.Color) &&
		equalVariant(k.Size, other.Size)
}

func (k VariantKey) String() string {
	return fmt.Sprintf("%d/%s/%s", k.ProductID, variantLabel(k.Color), variantLabel(k.Size))
}

func equalVariant(a, b *string) bool {
	a, b = Normalize(a), Normalize(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func variantLabel(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}
