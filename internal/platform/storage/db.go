package storage

import (
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ai-images-server-go/internal/platform/errors"
	"ai-images-server-go/internal/platform/storage/migrations"
)

// Open connects to the SQLite database at dsn and applies every pending
// migration. File-backed DSNs get their parent directory created first.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New(errors.KindConfig, "storage.open", "sqlite dsn is empty")
	}

	if path := filePath(dsn); path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(errors.KindStorage, "storage.open", "failed to create data directory", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "storage.open", "failed to open database", err)
	}

	// SQLite allows a single writer; funnel everything through one connection.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	manager := NewMigrationManager(db)
	manager.AddMigration(&migrations.Migration001UploadHistory{})
	if err := manager.RunMigrations(); err != nil {
		_ = Close(db)
		return nil, err
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(errors.KindStorage, "storage.close", "failed to get connection pool", err)
	}
	return sqlDB.Close()
}

// filePath returns the on-disk path for dsn, or "" for in-memory databases.
func filePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		if strings.Contains(path[i:], "mode=memory") {
			return ""
		}
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	return path
}
