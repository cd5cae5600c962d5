package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/chopmart/chopmart-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, found %d", suffix, len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks ...string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestDeliveryFeesMigration(t *testing.T) {
	assertContains(t, readMigration(t, "create_delivery_fees"),
		"CREATE TABLE IF NOT EXISTS delivery_fees",
		"CHECK (fee >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_delivery_fees_pair",
		"ON delivery_fees (origin_zone, destination_zone)",
		"DROP TABLE IF EXISTS delivery_fees",
	)
}

func TestDeliveryJobsMigration(t *testing.T) {
	assertContains(t, readMigration(t, "create_delivery_jobs"),
		"CREATE TABLE IF NOT EXISTS delivery_jobs",
		"version integer NOT NULL DEFAULT 1",
		"WHERE status = 'quoted'",
		"CREATE TABLE IF NOT EXISTS delivery_job_events",
		"FOREIGN KEY (job_id) REFERENCES delivery_jobs(id) ON DELETE CASCADE",
		"ux_delivery_job_events_version",
		"DROP TABLE IF EXISTS delivery_jobs",
	)
}

func TestOrdersMigrationKeepsFullPrecision(t *testing.T) {
	assertContains(t, readMigration(t, "create_orders"),
		"CREATE TABLE IF NOT EXISTS orders",
		"total numeric(20,6) NOT NULL",
		"line_total numeric(20,6) NOT NULL",
		"CHECK (quantity >= 1)",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS order_line_items",
	)
}

func TestValidateDir(t *testing.T) {
	n, err := migrate.ValidateDir("migrations")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 migrations, got %d", n)
	}
}

func TestEmbeddedMatchesDisk(t *testing.T) {
	n, err := migrate.ValidateFS(migrate.Embedded())
	if err != nil {
		t.Fatalf("validate embedded: %v", err)
	}
	onDisk, _ := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if n != len(onDisk) {
		t.Fatalf("embedded has %d migrations, disk has %d", n, len(onDisk))
	}
}

func TestValidateFSRejectsDownBeforeUp(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101000000_swapped.sql": {Data: []byte("-- +goose Down\nDROP TABLE x;\n-- +goose Up\nCREATE TABLE x();\n")},
	}
	if _, err := migrate.ValidateFS(fsys); err == nil {
		t.Fatal("expected ordering error")
	}
	fsys = fstest.MapFS{
		"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
	}
	if _, err := migrate.ValidateFS(fsys); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	if _, err := migrate.ValidateDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected missing dir error")
	}
	dir := t.TempDir()
	if _, err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected empty dir error")
	}

	if err := os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected filename error")
	}
	if err := os.Remove(filepath.Join(dir, "bad-name.sql")); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "20260101000000_no_down.sql"), []byte("-- +goose Up\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected missing down annotation error")
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Rider Ratings!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_rider_ratings.sql") {
		t.Fatalf("unexpected file name %s", path)
	}
	if n, err := migrate.ValidateDir(dir); err != nil || n != 1 {
		t.Fatalf("generated migration should validate: n=%d err=%v", n, err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatal("expected empty sanitized name error")
	}
}

func TestCreateSQLMigrationSortsAfterFutureVersions(t *testing.T) {
	dir := t.TempDir()
	future := "29990101000000_from_the_future.sql"
	if err := os.WriteFile(filepath.Join(dir, future), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	path, err := migrate.CreateSQLMigration(dir, "next")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := filepath.Base(path); got != "29990101000001_next.sql" {
		t.Fatalf("expected version after the newest file, got %s", got)
	}
}
