package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog row the cart prices lines against.
type Product struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	SKU       string          `gorm:"column:sku;not null;uniqueIndex"`
	Name      string          `gorm:"column:name;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	ImageURL  *string         `gorm:"column:image_url"`
	IsActive  bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
