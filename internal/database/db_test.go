package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/andcoolsystems/eldraxis/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
	require.NoError(t, Ping(context.Background(), db))
}

func TestOpenSQLiteFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "eldraxis.sqlite")

	db, err := Open(Config{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, AutoMigrate(db))
	require.FileExists(t, path)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestAutoMigrateCreatesSkinTables(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	require.True(t, db.Migrator().HasTable(&models.SkinRecord{}))
	require.True(t, db.Migrator().HasTable(&models.CacheEntry{}))
	require.True(t, db.Migrator().HasIndex(&models.SkinRecord{}, "Nickname"))

	rec := models.SkinRecord{
		UUID:        "069a79f444e94726a5befca90e38aaf5",
		Nickname:    "notch",
		DefaultNick: "Notch",
		ExpiresAt:   time.Now().Add(time.Hour),
		Skin:        []byte{1, 2, 3},
		Head:        []byte{4},
		Valid:       true,
	}
	require.NoError(t, db.Create(&rec).Error)

	var loaded models.SkinRecord
	require.NoError(t, db.First(&loaded, "uuid = ?", rec.UUID).Error)
	require.Equal(t, []byte{1, 2, 3}, loaded.Skin)
	require.Empty(t, loaded.Cape)
	require.True(t, loaded.Valid)
}

func TestAutoMigrateRejectsNilHandle(t *testing.T) {
	require.Error(t, AutoMigrate(nil))
	require.Error(t, Ping(context.Background(), nil))
	require.NoError(t, Close(nil))
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite", DSN: "file:" + t.Name() + "?mode=memory&cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = Close(db)
	})

	return db
}
