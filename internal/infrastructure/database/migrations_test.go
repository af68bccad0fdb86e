package database

import (
	"context"
	"testing"
	"testing/fstest"
)

// useMigrations swaps MigrationsFS for the duration of a test.
func useMigrations(t *testing.T, files fstest.MapFS) {
	t.Helper()

	origFS, origDir := MigrationsFS, MigrationsDir
	MigrationsFS, MigrationsDir = files, "."
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
}

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101_000000_users.up.sql": {Data: []byte(
			"CREATE TABLE test_users (id TEXT PRIMARY KEY, email TEXT NOT NULL);")},
		"20260101_000000_users.down.sql": {Data: []byte(
			"DROP TABLE test_users;")},
		"20260102_000000_tokens.up.sql": {Data: []byte(
			"CREATE TABLE test_tokens (id TEXT PRIMARY KEY, used INTEGER NOT NULL DEFAULT 0);")},
		"20260102_000000_tokens.down.sql": {Data: []byte(
			"DROP TABLE test_tokens;")},
		"README.md": {Data: []byte("ignored")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()

	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("checking table %s: %v", name, err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrations())
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, table := range []string{"test_users", "test_tokens"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s missing after Migrate", table)
		}
	}

	// Second run is a no-op.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 2 and 0", len(applied), len(pending))
	}
	if applied[0].Version != "20260101_000000" {
		t.Errorf("first applied = %s, want 20260101_000000", applied[0].Version)
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, testMigrations())
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "test_tokens") {
		t.Error("test_tokens should be dropped by MigrateDown")
	}
	if !tableExists(t, db, "test_users") {
		t.Error("test_users should survive a single MigrateDown")
	}

	_, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "tokens" {
		t.Errorf("pending = %+v, want the tokens migration", pending)
	}
}

func TestMigrate_NoMigrations(t *testing.T) {
	useMigrations(t, nil)
	MigrationsFS = nil
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
	if err := db.MigrateDown(context.Background()); err != nil {
		t.Fatalf("MigrateDown() with nothing applied error = %v", err)
	}
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	files := testMigrations()
	files["20260103_000000_broken.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE broken (;")}
	useMigrations(t, files)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() should fail on broken SQL")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("applied = %d, want 2 (earlier migrations stay committed)", len(applied))
	}
	if len(pending) != 1 || pending[0].Version != "20260103_000000" {
		t.Errorf("pending = %+v, want the broken migration", pending)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"20260301_120000_auth_schema.up.sql", "20260301_120000", true, true},
		{"20260301_120000_auth_schema.down.sql", "20260301_120000", false, true},
		{"20260301_120000_auth_schema.sql", "", false, false},
		{"notes.txt", "", false, false},
		{"bad.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.name)
			if version != tt.wantVersion || isUp != tt.wantUp || ok != tt.wantOK {
				t.Errorf("parseMigrationFilename(%q) = (%q, %v, %v), want (%q, %v, %v)",
					tt.name, version, isUp, ok, tt.wantVersion, tt.wantUp, tt.wantOK)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	if got := extractMigrationName("20260301_120000_auth_schema.up.sql"); got != "auth_schema" {
		t.Errorf("extractMigrationName() = %q, want auth_schema", got)
	}
}
