package database

import (
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/byteedu/internal/kv"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsPurgesBlankEntries(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&kv.Entry{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	if err := database.Exec("INSERT INTO kv_entries (entry_key, entry_value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)", "byteedu_votes", "   ").Error; err != nil {
		testContext.Fatalf("failed to insert blank entry: %v", err)
	}
	if err := database.Exec("INSERT INTO kv_entries (entry_key, entry_value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)", "byteedu_tokens", "300").Error; err != nil {
		testContext.Fatalf("failed to insert entry: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var remaining []kv.Entry
	if err := database.Order("entry_key").Find(&remaining).Error; err != nil {
		testContext.Fatalf("failed to reload entries: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Key != "byteedu_tokens" {
		testContext.Fatalf("expected only the tokens entry to survive, got %+v", remaining)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationPurgeBlankEntries).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestOpenSQLiteIsRepeatable(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "repeat.db")

	for attempt := 0; attempt < 2; attempt++ {
		db, err := OpenSQLite(databasePath, zap.NewNop())
		if err != nil {
			testContext.Fatalf("attempt %d: failed to open: %v", attempt, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			testContext.Fatalf("attempt %d: failed to unwrap: %v", attempt, err)
		}
		_ = sqlDB.Close()
	}
}

func TestOpenSQLiteRequiresPath(testContext *testing.T) {
	if _, err := OpenSQLite("", nil); err == nil {
		testContext.Fatalf("expected empty path to fail")
	}
}
