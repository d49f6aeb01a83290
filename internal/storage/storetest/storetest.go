// Package storetest opens throwaway stores for tests. SQLite is always
// available; PostgreSQL runs when POSTGRES_URL is set and is skipped otherwise.
package storetest

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mmynk/estatesale/internal/storage"
	"github.com/mmynk/estatesale/internal/storage/postgres"
	"github.com/mmynk/estatesale/internal/storage/sqlite"
)

// Opener returns a fresh, empty store that is closed when the test ends.
type Opener func(t *testing.T) storage.Store

// SQLite opens a store on a file in the test's temp dir.
func SQLite(t *testing.T) storage.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// Postgres opens a store in a new schema of the POSTGRES_URL database and
// drops the schema when the test ends.
func Postgres(t *testing.T) storage.Store {
	t.Helper()
	connStr := os.Getenv("POSTGRES_URL")
	if connStr == "" {
		t.Skip("POSTGRES_URL not set")
	}

	ctx := context.Background()
	admin, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		admin.Close()
		t.Fatalf("failed to create schema: %v", err)
	}

	store, err := postgres.New(ctx, withSearchPath(connStr, schema))
	if err != nil {
		admin.ExecContext(ctx, "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
		if _, err := admin.ExecContext(ctx, "DROP SCHEMA "+schema+" CASCADE"); err != nil {
			t.Logf("failed to drop schema %s: %v", schema, err)
		}
		admin.Close()
	})
	return store
}

// withSearchPath adds a search_path run-time parameter to a URL or
// key=value connection string.
func withSearchPath(connStr, schema string) string {
	if strings.Contains(connStr, "://") {
		u, err := url.Parse(connStr)
		if err == nil {
			q := u.Query()
			q.Set("search_path", schema)
			u.RawQuery = q.Encode()
			return u.String()
		}
	}
	return connStr + " search_path=" + schema
}

// ForEach runs fn once per backend as a subtest named after it.
func ForEach(t *testing.T, fn func(t *testing.T, open Opener)) {
	backends := []struct {
		name string
		open Opener
	}{
		{"sqlite", SQLite},
		{"postgres", Postgres},
	}
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, b.open)
		})
	}
}
