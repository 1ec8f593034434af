package models

import (
	"time"

	"github.com/google/uuid"
)

// GuestCartItem is one line of an anonymous cart keyed by the guest token.
type GuestCartItem struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	GuestToken    string    `gorm:"column:guest_token;not null;index"`
	ProductID     int64     `gorm:"column:product_id;not null"`
	SelectedColor *string   `gorm:"column:selected_color"`
	SelectedSize  *string   `gorm:"column:selected_size"`
	Quantity      int       `gorm:"column:quantity;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null"`
	ExpiresAt     time.Time `gorm:"column:expires_at;not null;index"`
}

func (GuestCartItem) TableName() string { return "guest_cart_items" }

// UserCartItem is one line of an authenticated user's cart.
type UserCartItem struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID     int64     `gorm:"column:product_id;not null"`
	SelectedColor *string   `gorm:"column:selected_color"`
	SelectedSize  *string   `gorm:"column:selected_size"`
	Quantity      int       `gorm:"column:quantity;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null"`
}

func (UserCartItem) TableName() string { return "user_cart_items" }
