package migrations

import (
	"gorm.io/gorm"
)

// Migration001Preferences 创建偏好表
type Migration001Preferences struct{}

func (m *Migration001Preferences) Version() string {
	return "001_preferences"
}

func (m *Migration001Preferences) Description() string {
	return "Create preferences table for theme and token entries"
}

func (m *Migration001Preferences) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS preferences (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			namespace VARCHAR(255) NOT NULL,
			key VARCHAR(255) NOT NULL,
			value TEXT NOT NULL,
			meta JSON,
			created_at DATETIME,
			updated_at DATETIME,
			expires_at DATETIME
		)
	`).Error; err != nil {
		return err
	}
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_pref_ns_key ON preferences(namespace, key)`).Error; err != nil {
		return err
	}
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_preferences_expires_at ON preferences(expires_at)`).Error
}
