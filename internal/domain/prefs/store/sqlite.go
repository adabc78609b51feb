package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vesta-voice/internal/platform/storage"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sqliteStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewSQLite builds a SQLite-backed store. db must have the preferences table migrated.
func NewSQLite(db *gorm.DB, cfg Config) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	return &sqliteStore{
		db:  db,
		ttl: cfg.TTL,
	}, nil
}

func (s *sqliteStore) Get(ctx context.Context, namespace, key string) (Entry, error) {
	var record storage.Preference
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND key = ?", namespace, key).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		Key:       record.Key,
		Value:     record.Value,
		UpdatedAt: record.UpdatedAt,
		ExpiresAt: record.ExpiresAt,
	}
	if entry.expired(time.Now()) {
		return Entry{}, ErrNotFound
	}
	if len(record.Meta) > 0 {
		var meta map[string]string
		if err := sonic.Unmarshal(record.Meta, &meta); err == nil {
			entry.Meta = meta
		}
	}
	return entry, nil
}

func (s *sqliteStore) Set(ctx context.Context, namespace string, entry Entry) error {
	if entry.Key == "" {
		return fmt.Errorf("preference key required")
	}
	now := time.Now()
	record := &storage.Preference{
		Namespace: namespace,
		Key:       entry.Key,
		Value:     entry.Value,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: expiry(entry, s.ttl, now),
	}
	if len(entry.Meta) > 0 {
		meta, err := sonic.Marshal(entry.Meta)
		if err != nil {
			return err
		}
		record.Meta = meta
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "meta", "updated_at", "expires_at"}),
	}).Create(record).Error
}

func (s *sqliteStore) Remove(ctx context.Context, namespace, key string) error {
	return s.db.WithContext(ctx).
		Where("namespace = ? AND key = ?", namespace, key).
		Delete(&storage.Preference{}).Error
}

func (s *sqliteStore) List(ctx context.Context, namespace string) ([]string, error) {
	var records []storage.Preference
	if err := s.db.WithContext(ctx).
		Select("key", "expires_at").
		Where("namespace = ?", namespace).
		Order("key").
		Find(&records).Error; err != nil {
		return nil, err
	}
	now := time.Now()
	keys := make([]string, 0, len(records))
	for _, r := range records {
		if r.ExpiresAt == nil || now.Before(*r.ExpiresAt) {
			keys = append(keys, r.Key)
		}
	}
	return keys, nil
}

func (s *sqliteStore) CleanupExpired(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Delete(&storage.Preference{}).
		Error
}

func (s *sqliteStore) Stats(ctx context.Context) (map[string]any, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&storage.Preference{}).Count(&total).Error; err != nil {
		return nil, err
	}
	return map[string]any{
		"type":  "sqlite",
		"total": total,
		"ttl":   int(s.ttl.Seconds()),
	}, nil
}

// Close 不关闭共享的数据库句柄，由 bootstrap 负责
func (s *sqliteStore) Close(context.Context) error {
	return nil
}
