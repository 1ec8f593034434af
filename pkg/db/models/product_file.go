package models

import "time"

// ProductFile is a downloadable asset optionally bound to a size/color variant.
// Both variant columns NULL marks a generic file.
type ProductFile struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID    int64     `gorm:"column:product_id;not null;index"`
	SizeVariant  *string   `gorm:"column:size_variant"`
	ColorVariant *string   `gorm:"column:color_variant"`
	DisplayName  string    `gorm:"column:display_name;not null"`
	StoragePath  string    `gorm:"column:storage_path;not null"`
	ContentType  *string   `gorm:"column:content_type"`
	SizeBytes    int64     `gorm:"column:size_bytes;not null;default:0"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`
	UploadedAt   time.Time `gorm:"column:uploaded_at;not null"`
}
