package testing

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"vesta-voice/internal/platform/config"
	"vesta-voice/internal/platform/logging"
	"vesta-voice/internal/platform/storage"
)

var dbSeq atomic.Uint64

// SetupTestConfig 返回默认配置，日志与数据库落在测试临时目录，存储使用内存驱动
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Log.Level = "debug"
	cfg.Log.Dir = filepath.Join(dir, "logs")
	cfg.Log.File = "test.log"
	cfg.Web.StaticDir = dir
	cfg.Store.Driver = "memory"
	cfg.Store.SQLite.DSN = filepath.Join(dir, "vesta-test.db")
	cfg.Assistant.FollowUpDelay = 10 * time.Millisecond
	return cfg
}

// SetupTestLogger writes to a temp dir and is closed when the test ends.
func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

// SetupTestDB opens a migrated in-memory sqlite database private to the test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:vesta-test-%d-%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	db, err := storage.Open(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close(db) })
	return db
}
