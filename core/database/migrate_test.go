package database

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	coreconfig "github.com/m3rciful/tourbot/core/config"
)

func TestListMigrationFilesOnlyUp(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"0002_applications_index.up.sql",
		"0001_create_applications.up.sql",
		"0001_create_applications.down.sql",
		"README.md",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	got := listMigrationFiles(dir)
	want := []string{"0001_create_applications.up.sql", "0002_applications_index.up.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("files = %v, want %v", got, want)
	}
}

func TestAppliedBetween(t *testing.T) {
	files := []string{"0001_a.up.sql", "0002_b.up.sql", "0003_c.up.sql", "junk.up.sql"}

	if got := appliedBetween(files, 1, 3); !reflect.DeepEqual(got, []string{"0002_b.up.sql", "0003_c.up.sql"}) {
		t.Fatalf("1..3 = %v", got)
	}
	if got := appliedBetween(files, 3, 3); len(got) != 0 {
		t.Fatalf("no change = %v", got)
	}
	if got := appliedBetween(files, 0, 2); !reflect.DeepEqual(got, []string{"0001_a.up.sql", "0002_b.up.sql"}) {
		t.Fatalf("0..2 = %v", got)
	}
}

func TestDSN(t *testing.T) {
	got := dsn(coreconfig.DatabaseConfig{
		Host: "db", Port: "5432", User: "tour", Password: "p@ss word", Name: "tourbot", SSLMode: "disable",
	})
	want := "postgres://tour:p%40ss%20word@db:5432/tourbot?sslmode=disable"
	if got != want {
		t.Fatalf("dsn = %s, want %s", got, want)
	}
}

func TestResolveMigrationsDir(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	got, err := resolveMigrationsDir("")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != filepath.Join(cwd, "migrations") {
		t.Fatalf("default dir = %s", got)
	}

	abs := t.TempDir()
	got, err = resolveMigrationsDir(abs)
	if err != nil || got != abs {
		t.Fatalf("explicit dir = %s, %v", got, err)
	}
}
