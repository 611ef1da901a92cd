package history

import (
	"context"

	"github.com/bytedance/sonic"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ai-images-server-go/internal/platform/errors"
	"ai-images-server-go/internal/platform/storage"
)

// record is the upload_history row.
type record struct {
	Seq           uint           `gorm:"column:seq;primaryKey;autoIncrement"`
	ID            string         `gorm:"column:id;uniqueIndex;not null"`
	FileName      string         `gorm:"column:file_name;not null"`
	URL           string         `gorm:"column:url;not null"`
	ObjectKey     string         `gorm:"column:object_key;not null"`
	Description   string         `gorm:"column:description"`
	Keywords      datatypes.JSON `gorm:"column:keywords"`
	ThumbnailData string         `gorm:"column:thumbnail_data"`
	UploadedAt    string         `gorm:"column:uploaded_at;not null"`
}

func (record) TableName() string { return "upload_history" }

// SQLiteStore persists entries with gorm. The schema comes from the
// storage migrations.
type SQLiteStore struct {
	db       *gorm.DB
	capacity int
	ownsDB   bool
}

// NewSQLite wraps an already migrated database. The caller keeps ownership of db.
func NewSQLite(db *gorm.DB, capacity int) *SQLiteStore {
	return &SQLiteStore{db: db, capacity: normalizeCapacity(capacity)}
}

// OpenSQLite opens dsn, migrates it, and closes it together with the store.
func OpenSQLite(dsn string, capacity int) (*SQLiteStore, error) {
	db, err := storage.Open(dsn)
	if err != nil {
		return nil, err
	}
	s := NewSQLite(db, capacity)
	s.ownsDB = true
	return s, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	var rows []record
	if err := s.db.WithContext(ctx).Order("seq DESC").Limit(s.capacity).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "history.sqlite.list", "failed to list history", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		keywords := []string{}
		if len(row.Keywords) > 0 {
			if err := sonic.Unmarshal(row.Keywords, &keywords); err != nil {
				return nil, errors.Wrap(errors.KindStorage, "history.sqlite.list", "corrupt keywords column", err)
			}
		}
		entries = append(entries, Entry{
			ID:            row.ID,
			FileName:      row.FileName,
			URL:           row.URL,
			Key:           row.ObjectKey,
			Description:   row.Description,
			Keywords:      keywords,
			UploadedAt:    row.UploadedAt,
			ThumbnailData: row.ThumbnailData,
		})
	}
	return entries, nil
}

func (s *SQLiteStore) Append(ctx context.Context, entry Entry) error {
	if err := validateEntry("history.sqlite.append", entry); err != nil {
		return err
	}

	keywords := entry.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	raw, err := sonic.Marshal(keywords)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "history.sqlite.append", "failed to encode keywords", err)
	}

	row := record{
		ID:            entry.ID,
		FileName:      entry.FileName,
		URL:           entry.URL,
		ObjectKey:     entry.Key,
		Description:   entry.Description,
		Keywords:      datatypes.JSON(raw),
		ThumbnailData: entry.ThumbnailData,
		UploadedAt:    entry.UploadedAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Exec(
			"DELETE FROM upload_history WHERE seq NOT IN (SELECT seq FROM upload_history ORDER BY seq DESC LIMIT ?)",
			s.capacity,
		).Error
	})
	if err != nil {
		return errors.Wrap(errors.KindStorage, "history.sqlite.append", "failed to append history entry", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec("DELETE FROM upload_history").Error; err != nil {
		return errors.Wrap(errors.KindStorage, "history.sqlite.clear", "failed to clear history", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return storage.Close(s.db)
}
