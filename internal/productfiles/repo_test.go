package productfiles

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

var uploadedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migrate.AutoMigrateModels(conn))
	return conn
}

func str(v string) *string { return &v }

func createFile(t *testing.T, db *gorm.DB, productID int64, size, color *string, name string, uploaded time.Time) models.ProductFile {
	t.Helper()
	row := models.ProductFile{
		ProductID:    productID,
		SizeVariant:  size,
		ColorVariant: color,
		DisplayName:  name,
		StoragePath:  fmt.Sprintf("products/%d/%s", productID, name),
		SizeBytes:    1024,
		IsActive:     true,
		UploadedAt:   uploaded,
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

func names(files []models.ProductFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.DisplayName)
	}
	return out
}

func TestResolvePartialVariantNeverMatchesFullRequest(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	createFile(t, db, 1, str("M"), nil, "size-m.pdf", uploadedAt)
	createFile(t, db, 1, nil, nil, "generic.pdf", uploadedAt)

	files, err := repo.Resolve(ctx, 1, str("M"), str("Red"))
	require.NoError(t, err)
	assert.Equal(t, []string{"generic.pdf"}, names(files))
}

func TestResolveMatchingRules(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	createFile(t, db, 2, str("M"), str("Red"), "m-red.pdf", uploadedAt)
	createFile(t, db, 2, str("M"), nil, "m.pdf", uploadedAt)
	createFile(t, db, 2, nil, str("Red"), "red.pdf", uploadedAt)
	createFile(t, db, 2, nil, nil, "generic.pdf", uploadedAt)
	createFile(t, db, 3, nil, nil, "other-product.pdf", uploadedAt)

	cases := []struct {
		name        string
		size, color *string
		want        []string
	}{
		{name: "exact pair", size: str("M"), color: str("Red"), want: []string{"generic.pdf", "m-red.pdf"}},
		{name: "size only", size: str("M"), want: []string{"generic.pdf", "m.pdf"}},
		{name: "color only", color: str("Red"), want: []string{"generic.pdf", "red.pdf"}},
		{name: "blank is unset", size: str(" "), color: str(""), want: []string{"generic.pdf", "m-red.pdf", "m.pdf", "red.pdf"}},
		{name: "no match falls back to generic", size: str("XL"), color: str("Green"), want: []string{"generic.pdf"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			files, err := repo.Resolve(ctx, 2, tc.size, tc.color)
			require.NoError(t, err)
			assert.ElementsMatch(t, tc.want, names(files))
		})
	}
}

func TestResolveSkipsInactiveFiles(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	retired := createFile(t, db, 4, nil, nil, "old.pdf", uploadedAt)
	createFile(t, db, 4, nil, nil, "current.pdf", uploadedAt)
	require.NoError(t, db.Model(&models.ProductFile{}).Where("id = ?", retired.ID).Update("is_active", false).Error)

	files, err := repo.Resolve(ctx, 4, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"current.pdf"}, names(files))
}

func TestResolveOrdersNewestFirstWithinVariant(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	createFile(t, db, 5, str("L"), str("Blue"), "l-blue-v1.pdf", uploadedAt)
	createFile(t, db, 5, str("L"), str("Blue"), "l-blue-v2.pdf", uploadedAt.Add(time.Hour))
	createFile(t, db, 5, str("M"), str("Blue"), "m-blue.pdf", uploadedAt)
	createFile(t, db, 5, str("L"), str("Amber"), "l-amber.pdf", uploadedAt)

	resolved, err := repo.Resolve(ctx, 5, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"l-amber.pdf", "l-blue-v2.pdf", "l-blue-v1.pdf", "m-blue.pdf"}, names(resolved))
}
