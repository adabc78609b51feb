package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis constructs a redis-backed store.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "vesta:prefs:"
	}
	return &redisStore{
		client: client,
		ttl:    cfg.TTL,
		prefix: prefix,
	}, nil
}

func (s *redisStore) key(namespace, key string) string {
	return s.prefix + namespace + ":" + key
}

func (s *redisStore) Get(ctx context.Context, namespace, key string) (Entry, error) {
	raw, err := s.client.Get(ctx, s.key(namespace, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	var entry Entry
	if err := sonic.Unmarshal(raw, &entry); err != nil {
		return Entry{}, err
	}
	if entry.expired(time.Now()) {
		_ = s.Remove(ctx, namespace, key)
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (s *redisStore) Set(ctx context.Context, namespace string, entry Entry) error {
	if entry.Key == "" {
		return fmt.Errorf("preference key required")
	}
	now := time.Now()
	entry.UpdatedAt = now
	entry.ExpiresAt = expiry(entry, s.ttl, now)

	data, err := sonic.Marshal(entry)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if entry.ExpiresAt != nil {
		ttl = time.Until(*entry.ExpiresAt)
		if ttl <= 0 {
			return s.Remove(ctx, namespace, entry.Key)
		}
	}
	return s.client.Set(ctx, s.key(namespace, entry.Key), data, ttl).Err()
}

func (s *redisStore) Remove(ctx context.Context, namespace, key string) error {
	return s.client.Del(ctx, s.key(namespace, key)).Err()
}

func (s *redisStore) List(ctx context.Context, namespace string) ([]string, error) {
	var cursor uint64
	keys := make([]string, 0)
	base := s.prefix + namespace + ":"
	for {
		res, next, err := s.client.Scan(ctx, cursor, base+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range res {
			keys = append(keys, strings.TrimPrefix(k, base))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return keys, nil
}

func (s *redisStore) CleanupExpired(context.Context) error {
	// Redis handles expiration via TTL.
	return nil
}

func (s *redisStore) Stats(ctx context.Context) (map[string]any, error) {
	size, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":  "redis",
		"total": size,
		"ttl":   int(s.ttl.Seconds()),
	}, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
