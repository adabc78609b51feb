package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"vesta-voice/internal/platform/errors"
)

// Migration is one forward-only schema change. Versions sort lexically.
type Migration interface {
	Version() string
	Description() string
	Up(tx *gorm.DB) error
}

// MigrationRecord 已执行迁移的记录
type MigrationRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Version   string    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// MigrationStatus reports one registered migration; AppliedAt is nil while pending.
type MigrationStatus struct {
	Version     string     `json:"version"`
	Description string     `json:"description"`
	AppliedAt   *time.Time `json:"applied_at,omitempty"`
}

// Migrator applies registered migrations in version order, each at most once.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrator 按版本号排序注册迁移
func NewMigrator(db *gorm.DB, migrations ...Migration) *Migrator {
	sorted := append([]Migration(nil), migrations...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Version() < sorted[j].Version()
	})
	return &Migrator{db: db, migrations: sorted}
}

// Apply runs every migration without a record, each in its own transaction,
// and returns the versions it ran.
func (m *Migrator) Apply(ctx context.Context) ([]string, error) {
	db := m.db.WithContext(ctx)
	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migration.records", "failed to create migration table", err)
	}
	applied, err := m.applied(db)
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, migration := range m.migrations {
		version := migration.Version()
		if _, ok := applied[version]; ok {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&MigrationRecord{
				Version:   version,
				Name:      migration.Description(),
				AppliedAt: time.Now(),
			}).Error
		})
		if err != nil {
			return ran, errors.Wrap(errors.KindStorage, "migration.apply", fmt.Sprintf("failed to run migration %s", version), err)
		}
		ran = append(ran, version)
	}
	return ran, nil
}

// Status 返回每个已注册迁移的执行状态
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	db := m.db.WithContext(ctx)
	applied := map[string]time.Time{}
	if db.Migrator().HasTable(&MigrationRecord{}) {
		var err error
		if applied, err = m.applied(db); err != nil {
			return nil, err
		}
	}

	out := make([]MigrationStatus, 0, len(m.migrations))
	for _, migration := range m.migrations {
		status := MigrationStatus{Version: migration.Version(), Description: migration.Description()}
		if at, ok := applied[status.Version]; ok {
			at := at
			status.AppliedAt = &at
		}
		out = append(out, status)
	}
	return out, nil
}

func (m *Migrator) applied(db *gorm.DB) (map[string]time.Time, error) {
	var records []MigrationRecord
	if err := db.Find(&records).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migration.applied", "failed to read applied migrations", err)
	}
	out := make(map[string]time.Time, len(records))
	for _, r := range records {
		out[r.Version] = r.AppliedAt
	}
	return out, nil
}
