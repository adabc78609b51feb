package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("preference not found")

// Well-known keys.
const (
	KeyTheme = "theme"
	KeyToken = "token"
)

// Entry 一条偏好记录
type Entry struct {
	Key       string            `json:"key"`
	Value     string            `json:"value"`
	Meta      map[string]string `json:"meta,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

func (e Entry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// Store persists page preferences keyed by (namespace, key).
type Store interface {
	Get(ctx context.Context, namespace, key string) (Entry, error)
	Set(ctx context.Context, namespace string, entry Entry) error
	Remove(ctx context.Context, namespace, key string) error
	List(ctx context.Context, namespace string) ([]string, error)
	CleanupExpired(ctx context.Context) error
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver string
	// TTL 为 0 时记录永不过期
	TTL       time.Duration
	Namespace string
	Redis     *RedisConfig
	Memory    *MemoryConfig
}

// MemoryConfig holds in-memory tuning knobs.
type MemoryConfig struct {
	GCInterval time.Duration
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

// expiry returns the expiration for an entry written at now.
func expiry(entry Entry, ttl time.Duration, now time.Time) *time.Time {
	if entry.ExpiresAt != nil {
		return entry.ExpiresAt
	}
	if ttl <= 0 {
		return nil
	}
	exp := now.Add(ttl)
	return &exp
}
