package repo

import (
	"context"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type row struct {
	ID   uint
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "base.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&row{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestNewBaseStoresConnection(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	if base.db != db {
		t.Fatalf("expected base db to match provided connection")
	}
	if base.IsPostgres() {
		t.Fatalf("sqlite connection reported as postgres")
	}
}

func TestBaseDBBindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	if withCtx.Statement == nil || withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through")
	}

	if base.DB(nil) != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBaseWithTx(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	if got := base.WithTx(nil); got.db != db {
		t.Fatalf("nil tx should keep the connection")
	}

	tx := db.Begin()
	defer tx.Rollback()
	bound := base.WithTx(tx)
	if err := bound.DB(context.Background()).Create(&row{Name: "in-tx"}).Error; err != nil {
		t.Fatalf("create in tx: %v", err)
	}
	var count int64
	if err := bound.DB(context.Background()).Model(&row{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected row visible inside tx, got %d", count)
	}
}

func TestForUpdateOnSqliteSelects(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)
	if err := db.Create(&row{Name: "a"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	var got row
	if err := base.ForUpdate(context.Background()).First(&got).Error; err != nil {
		t.Fatalf("select for update: %v", err)
	}
	if got.Name != "a" {
		t.Fatalf("unexpected row %+v", got)
	}
}
