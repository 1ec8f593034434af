package product

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Product is the catalog view the cart needs to price and display a line.
type Product struct {
	ID       int64           `json:"id"`
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL *string         `json:"image_url,omitempty"`
	IsActive bool            `json:"is_active"`
}

// FromModel maps a catalog row to its DTO.
func FromModel(m models.Product) Product {
	return Product{
		ID:       m.ID,
		SKU:      m.SKU,
		Name:     m.Name,
		Price:    m.Price,
		ImageURL: m.ImageURL,
		IsActive: m.IsActive,
	}
}
