// Package testdb provides helpers for store integration tests that run
// against a real PostgreSQL instance. Tests using it skip themselves unless a
// test database URL is present in the environment, so the default `go test`
// run needs no external services.
package testdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

// Timeout bounds individual test database operations.
const Timeout = 5 * time.Second

// URL returns the test database URL from the environment, preferring
// TASKPILOT_TEST_DATABASE_URL and falling back to DATABASE_URL.
func URL() string {
	if url := os.Getenv("TASKPILOT_TEST_DATABASE_URL"); url != "" {
		return url
	}
	return os.Getenv("DATABASE_URL")
}

// SkipIfNoDatabase skips the test when no test database is configured.
func SkipIfNoDatabase(t *testing.T) {
	t.Helper()
	if URL() == "" {
		t.Skip("set TASKPILOT_TEST_DATABASE_URL to run database integration tests")
	}
}

// Open connects to the test database, runs the migrations to the latest
// version and registers cleanup. Call SkipIfNoDatabase first.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("pgx", URL())
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Ping(), "test database is not reachable")

	migrationsDir, err := findMigrationsDir()
	require.NoError(t, err)

	require.NoError(t, goose.SetDialect("postgres"))
	goose.SetLogger(goose.NopLogger())
	require.NoError(t, goose.Up(db, migrationsDir), "failed to migrate test database")

	return db
}

// WithTx runs fn inside a transaction that is always rolled back, keeping
// tests isolated from each other without per-test table truncation.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.Begin()
	require.NoError(t, err, "failed to begin transaction")

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Errorf("failed to roll back test transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// findMigrationsDir walks up from the working directory until it finds the
// repository root (marked by go.mod) and returns its migrations directory.
func findMigrationsDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			migrations := filepath.Join(dir, "migrations")
			if _, err := os.Stat(migrations); err != nil {
				return "", fmt.Errorf("migrations directory not found at %s", migrations)
			}
			return migrations, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("repository root not found from working directory")
		}
		dir = parent
	}
}
