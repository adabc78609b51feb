package store

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestFactoryMemory(t *testing.T) {
	s, err := New(Config{Driver: DriverMemory}, Dependencies{})
	if err != nil {
		t.Fatalf("New memory store: %v", err)
	}
	defer s.Close(context.Background())
}

func TestFactoryDefaultsToMemory(t *testing.T) {
	s, err := New(Config{}, Dependencies{})
	if err != nil {
		t.Fatalf("New default store: %v", err)
	}
	defer s.Close(context.Background())
	stats, _ := s.Stats(context.Background())
	if stats["type"] != "memory" {
		t.Fatalf("expected memory driver, got %v", stats["type"])
	}
}

func TestFactorySQLite(t *testing.T) {
	s, err := New(Config{
		Driver: DriverSQLite,
		TTL:    time.Hour,
	}, Dependencies{SQLiteDB: newTestSQLiteDB(t)})
	if err != nil {
		t.Fatalf("New sqlite store: %v", err)
	}
	defer s.Close(context.Background())

	if err := s.Set(context.Background(), "ns", Entry{Key: KeyTheme, Value: "light"}); err != nil {
		t.Fatalf("Set error: %v", err)
	}
}

func TestFactorySQLiteRequiresHandle(t *testing.T) {
	if _, err := New(Config{Driver: DriverSQLite}, Dependencies{}); err == nil {
		t.Fatalf("expected error without database handle")
	}
}

func TestFactoryRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	s, err := New(Config{
		Driver: DriverRedis,
		Redis:  &RedisConfig{Addr: mr.Addr()},
	}, Dependencies{})
	if err != nil {
		t.Fatalf("New redis store: %v", err)
	}
	defer s.Close(context.Background())
}

func TestFactoryUnsupported(t *testing.T) {
	if _, err := New(Config{Driver: "unknown"}, Dependencies{}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
