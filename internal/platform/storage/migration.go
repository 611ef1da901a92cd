package storage

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"ai-images-server-go/internal/platform/errors"
)

// Migration 数据库迁移接口
type Migration interface {
	Version() string
	Description() string
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

// MigrationRecord 已应用的迁移记录
type MigrationRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Version   string    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (MigrationRecord) TableName() string { return "schema_migrations" }

// MigrationManager 按注册顺序执行迁移，每个迁移在独立事务中完成
type MigrationManager struct {
	db         *gorm.DB
	migrations []Migration
}

func NewMigrationManager(db *gorm.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

func (m *MigrationManager) AddMigration(migration Migration) {
	m.migrations = append(m.migrations, migration)
}

// RunMigrations 执行所有尚未应用的迁移
func (m *MigrationManager) RunMigrations() error {
	if err := m.db.AutoMigrate(&MigrationRecord{}); err != nil {
		return errors.Wrap(errors.KindStorage, "migration.create_table", "failed to create migration table", err)
	}

	applied, err := m.appliedVersions()
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if applied[migration.Version()] {
			continue
		}
		err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&MigrationRecord{
				Version:   migration.Version(),
				Name:      migration.Description(),
				AppliedAt: time.Now(),
			}).Error
		})
		if err != nil {
			return errors.Wrap(errors.KindStorage, "migration.up", fmt.Sprintf("failed to run migration %s", migration.Version()), err)
		}
	}
	return nil
}

// RollbackMigration 回滚指定版本
func (m *MigrationManager) RollbackMigration(version string) error {
	var target Migration
	for _, migration := range m.migrations {
		if migration.Version() == version {
			target = migration
			break
		}
	}
	if target == nil {
		return errors.New(errors.KindStorage, "migration.not_registered", fmt.Sprintf("migration %s not registered", version))
	}

	var record MigrationRecord
	if err := m.db.Where("version = ?", version).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.New(errors.KindStorage, "migration.not_found", fmt.Sprintf("migration %s not applied", version))
		}
		return errors.Wrap(errors.KindStorage, "migration.find_record", "failed to find migration record", err)
	}

	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := target.Down(tx); err != nil {
			return err
		}
		return tx.Delete(&record).Error
	})
	if err != nil {
		return errors.Wrap(errors.KindStorage, "migration.down", fmt.Sprintf("failed to rollback migration %s", version), err)
	}
	return nil
}

// History 返回迁移历史，最近应用的在前
func (m *MigrationManager) History() ([]MigrationRecord, error) {
	var records []MigrationRecord
	if err := m.db.Order("applied_at DESC, id DESC").Find(&records).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migration.history", "failed to get migration history", err)
	}
	return records, nil
}

func (m *MigrationManager) appliedVersions() (map[string]bool, error) {
	var versions []string
	if err := m.db.Model(&MigrationRecord{}).Pluck("version", &versions).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migration.get_applied", "failed to get applied migrations", err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}
