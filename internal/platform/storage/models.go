package storage

import (
	"time"

	"gorm.io/datatypes"
)

// Preference 页面偏好记录（主题、令牌），按 (namespace, key) 唯一
type Preference struct {
	ID        uint           `gorm:"primaryKey"`
	Namespace string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_pref_ns_key"`
	Key       string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_pref_ns_key"`
	Value     string         `gorm:"type:text;not null"`
	Meta      datatypes.JSON `json:"meta,omitempty"`
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt *time.Time `gorm:"index"`
}

// TableName 指定表名
func (Preference) TableName() string {
	return "preferences"
}
