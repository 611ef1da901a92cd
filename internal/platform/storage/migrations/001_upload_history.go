package migrations

import (
	"gorm.io/gorm"
)

// Migration001UploadHistory 创建上传历史表
type Migration001UploadHistory struct{}

func (m *Migration001UploadHistory) Version() string {
	return "001_upload_history"
}

func (m *Migration001UploadHistory) Description() string {
	return "Create upload history table"
}

func (m *Migration001UploadHistory) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS upload_history (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id VARCHAR(64) NOT NULL UNIQUE,
			file_name VARCHAR(255) NOT NULL,
			url TEXT NOT NULL,
			object_key TEXT NOT NULL,
			description TEXT,
			keywords JSON,
			thumbnail_data TEXT,
			uploaded_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return err
	}

	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_upload_history_uploaded_at ON upload_history(uploaded_at)`).Error
}

func (m *Migration001UploadHistory) Down(db *gorm.DB) error {
	return db.Exec(`DROP TABLE IF EXISTS upload_history`).Error
}
