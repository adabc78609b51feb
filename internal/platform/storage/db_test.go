package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"vesta-voice/internal/platform/errors"
)

func openTestDB(t *testing.T, name string) (*gorm.DB, string) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s-%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })
	return db, dsn
}

func TestOpenRunsMigrationsOnce(t *testing.T) {
	db, dsn := openTestDB(t, "storage")

	if !db.Migrator().HasTable(&Preference{}) {
		t.Fatalf("expected preferences table")
	}

	status, err := Schema(db).Status(context.Background())
	if err != nil {
		t.Fatalf("status error: %v", err)
	}
	if len(status) != 1 || status[0].Version != "001_preferences" || status[0].AppliedAt == nil {
		t.Fatalf("unexpected status: %+v", status)
	}

	// 重复打开不会重新执行已应用的迁移
	again, err := Open(dsn)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer Close(again)
	ran, err := Schema(again).Apply(context.Background())
	if err != nil || len(ran) != 0 {
		t.Fatalf("expected nothing to run, got %v (%v)", ran, err)
	}
	var count int64
	again.Model(&MigrationRecord{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected single migration record, got %d", count)
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

type stubMigration struct {
	version string
	up      func(tx *gorm.DB) error
}

func (m stubMigration) Version() string { return m.version }

func (m stubMigration) Description() string { return "stub " + m.version }

func (m stubMigration) Up(tx *gorm.DB) error { return m.up(tx) }

func TestMigratorAppliesInVersionOrder(t *testing.T) {
	db, _ := openTestDB(t, "order")

	var order []string
	record := func(v string) stubMigration {
		return stubMigration{version: v, up: func(*gorm.DB) error {
			order = append(order, v)
			return nil
		}}
	}
	m := NewMigrator(db, record("003_b"), record("002_a"))

	status, err := m.Status(context.Background())
	if err != nil {
		t.Fatalf("status error: %v", err)
	}
	if len(status) != 2 || status[0].AppliedAt != nil || status[1].AppliedAt != nil {
		t.Fatalf("expected two pending migrations, got %+v", status)
	}

	ran, err := m.Apply(context.Background())
	if err != nil {
		t.Fatalf("apply error: %v", err)
	}
	if fmt.Sprint(ran) != "[002_a 003_b]" || fmt.Sprint(order) != "[002_a 003_b]" {
		t.Fatalf("unexpected order ran=%v order=%v", ran, order)
	}
}

func TestMigratorFailureLeavesNoRecord(t *testing.T) {
	db, _ := openTestDB(t, "failure")

	m := NewMigrator(db, stubMigration{version: "002_broken", up: func(tx *gorm.DB) error {
		if err := tx.Exec(`CREATE TABLE half_done (id INTEGER)`).Error; err != nil {
			return err
		}
		return stderrors.New("boom")
	}})
	ran, err := m.Apply(context.Background())
	if err == nil || !errors.IsKind(err, errors.KindStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if len(ran) != 0 {
		t.Fatalf("expected nothing ran, got %v", ran)
	}
	status, err := m.Status(context.Background())
	if err != nil || status[0].AppliedAt != nil {
		t.Fatalf("broken migration must stay pending: %+v (%v)", status, err)
	}
	if db.Migrator().HasTable("half_done") {
		t.Fatalf("failed migration must roll back")
	}
}
