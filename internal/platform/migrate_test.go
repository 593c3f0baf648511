package platform

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenSQLiteMigrates(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "dealmodel.db")

	db, err := Open(ctx, DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"models", "scenarios", "archives"} {
		var name string
		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = $1`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	// Running again is a no-op.
	if err := AutoMigrate(db, DriverSQLite); err != nil {
		t.Errorf("second AutoMigrate: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x"); err == nil {
		t.Error("expected error for unsupported driver")
	}
	if err := AutoMigrate(nil, "mysql"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
