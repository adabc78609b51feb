package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryStore struct {
	items       map[string]map[string]Entry
	mutex       sync.RWMutex
	ttl         time.Duration
	cleanupFreq time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewMemory builds an in-memory store. It backs the session token scope.
func NewMemory(cfg Config) Store {
	cleanup := 5 * time.Minute
	if cfg.Memory != nil && cfg.Memory.GCInterval > 0 {
		cleanup = cfg.Memory.GCInterval
	}
	s := &memoryStore{
		items:       make(map[string]map[string]Entry),
		ttl:         cfg.TTL,
		cleanupFreq: cleanup,
		stop:        make(chan struct{}),
	}
	go s.gcLoop()
	return s
}

func (s *memoryStore) gcLoop() {
	ticker := time.NewTicker(s.cleanupFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = s.CleanupExpired(context.Background())
		case <-s.stop:
			return
		}
	}
}

func (s *memoryStore) Get(_ context.Context, namespace, key string) (Entry, error) {
	s.mutex.RLock()
	entry, ok := s.items[namespace][key]
	s.mutex.RUnlock()
	if !ok || entry.expired(time.Now()) {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (s *memoryStore) Set(_ context.Context, namespace string, entry Entry) error {
	if entry.Key == "" {
		return fmt.Errorf("preference key required")
	}
	now := time.Now()
	entry.UpdatedAt = now
	entry.ExpiresAt = expiry(entry, s.ttl, now)

	s.mutex.Lock()
	bucket, ok := s.items[namespace]
	if !ok {
		bucket = make(map[string]Entry)
		s.items[namespace] = bucket
	}
	bucket[entry.Key] = entry
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Remove(_ context.Context, namespace, key string) error {
	s.mutex.Lock()
	if bucket, ok := s.items[namespace]; ok {
		delete(bucket, key)
		if len(bucket) == 0 {
			delete(s.items, namespace)
		}
	}
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) List(_ context.Context, namespace string) ([]string, error) {
	now := time.Now()
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	bucket := s.items[namespace]
	keys := make([]string, 0, len(bucket))
	for key, entry := range bucket {
		if !entry.expired(now) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *memoryStore) CleanupExpired(_ context.Context) error {
	now := time.Now()
	s.mutex.Lock()
	for ns, bucket := range s.items {
		for key, entry := range bucket {
			if entry.expired(now) {
				delete(bucket, key)
			}
		}
		if len(bucket) == 0 {
			delete(s.items, ns)
		}
	}
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Stats(_ context.Context) (map[string]any, error) {
	now := time.Now()
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	total, active := 0, 0
	for _, bucket := range s.items {
		for _, entry := range bucket {
			total++
			if !entry.expired(now) {
				active++
			}
		}
	}
	return map[string]any{
		"type":        "memory",
		"namespaces":  len(s.items),
		"total":       total,
		"active":      active,
		"ttl_seconds": int(s.ttl.Seconds()),
	}, nil
}

func (s *memoryStore) Close(_ context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}
