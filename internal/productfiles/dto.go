package productfiles

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// File is a resolved product file, optionally carrying a signed link.
type File struct {
	ID                int64      `json:"id"`
	ProductID         int64      `json:"product_id"`
	SizeVariant       *string    `json:"size_variant"`
	ColorVariant      *string    `json:"color_variant"`
	DisplayName       string     `json:"display_name"`
	StoragePath       string     `json:"storage_path"`
	ContentType       *string    `json:"content_type,omitempty"`
	SizeBytes         int64      `json:"size_bytes"`
	UploadedAt        time.Time  `json:"uploaded_at"`
	DownloadURL       *string    `json:"download_url,omitempty"`
	DownloadExpiresAt *time.Time `json:"download_expires_at,omitempty"`
}

// Generic reports whether the file applies to every variant.
func (f File) Generic() bool {
	return f.SizeVariant == nil && f.ColorVariant == nil
}

func FromModel(m models.ProductFile) File {
	return File{
		ID:           m.ID,
		ProductID:    m.ProductID,
		SizeVariant:  m.SizeVariant,
		ColorVariant: m.ColorVariant,
		DisplayName:  m.DisplayName,
		StoragePath:  m.StoragePath,
		ContentType:  m.ContentType,
		SizeBytes:    m.SizeBytes,
		UploadedAt:   m.UploadedAt,
	}
}
