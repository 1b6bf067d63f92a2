// Package dbtest opens throwaway sqlite databases migrated with every model.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/angelmondragon/carehub-backend/pkg/db"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
)

// Open returns a client over a fresh file-backed sqlite database in t.TempDir().
func Open(t testing.TB) *db.Client {
	t.Helper()
	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "carehub.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	client := db.NewFromGorm(conn)
	t.Cleanup(func() { _ = client.Close() })
	return client
}
