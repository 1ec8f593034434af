package migrate_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestCartMigrationContainsVariantConstraints(t *testing.T) {
	content := readMigration(t, "create_cart_items_tables")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS guest_cart_items",
		"CREATE TABLE IF NOT EXISTS user_cart_items",
		"expires_at timestamptz NOT NULL",
		"CHECK (quantity >= 1)",
		"ON guest_cart_items (guest_token, product_id, selected_color, selected_size) NULLS NOT DISTINCT",
		"ON user_cart_items (user_id, product_id, selected_color, selected_size) NULLS NOT DISTINCT",
		"DROP TABLE IF EXISTS guest_cart_items",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestProductsMigrationContainsFilesTable(t *testing.T) {
	content := readMigration(t, "create_products_table")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS products",
		"price numeric(12,2) NOT NULL",
		"CREATE TABLE IF NOT EXISTS product_files",
		"size_variant text,",
		"color_variant text,",
		"CREATE INDEX IF NOT EXISTS idx_product_files_product_active",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir returned error: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cart.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename to fail validation")
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Cart Notes")
	if err != nil {
		t.Fatalf("CreateSQLMigration returned error: %v", err)
	}
	if !strings.HasSuffix(path, "_add_cart_notes.sql") {
		t.Fatalf("unexpected migration path %q", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration failed validation: %v", err)
	}
}

func TestAutoMigrateModelsOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migrate.AutoMigrateModels(conn); err != nil {
		t.Fatalf("AutoMigrateModels returned error: %v", err)
	}
	for _, table := range []string{"guest_cart_items", "user_cart_items", "product_files", "products", "users", "outbox_events"} {
		if !conn.Migrator().HasTable(table) {
			t.Errorf("expected table %s to exist", table)
		}
	}
}

func TestValidateDirRejectsMissingDownSection(t *testing.T) {
	dir := t.TempDir()
	body := []byte("-- +goose Up\nSELECT 1;\n")
	if err := os.WriteFile(filepath.Join(dir, "20260301090000_partial.sql"), body, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected missing down section to fail validation")
	}
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	if _, err := migrate.CreateSQLMigration(t.TempDir(), " -- "); err == nil {
		t.Fatal("expected error for a name without usable characters")
	}
}
