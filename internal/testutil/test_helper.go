// Package testutil holds database helpers for integration tests. Tests
// that use it skip unless TEST_DB_URL points at a scratch database.
package testutil

import (
	"context"
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
)

func ProjectRoot() string {
	_, file, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(file), "../../")
	return root
}

// DbInit connects to TEST_DB_URL, resets the schema and runs migrations.
// It skips the calling test when TEST_DB_URL is unset.
func DbInit(t *testing.T) (*pgxpool.Pool, *sql.DB, string) {
	t.Helper()

	root := ProjectRoot()

	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil {
		log.Printf("failed to load .env file: %+v", err)
	}

	testURL := os.Getenv("TEST_DB_URL")
	if testURL == "" {
		t.Skip("TEST_DB_URL environment variable is not set")
	}

	migDir := filepath.Join(root, "sql", "schema")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbPool, err := pgxpool.New(ctx, testURL)
	if err != nil {
		t.Fatalf("could not connect to the postgresql database: %v", err)
	}

	_ = goose.SetDialect("postgres")

	dbForGoose := stdlib.OpenDBFromPool(dbPool)
	if err := goose.Reset(dbForGoose, migDir); err != nil {
		dbForGoose.Close()
		t.Fatalf("goose.Reset() error = %+v", err)
	}
	if err := goose.Up(dbForGoose, migDir); err != nil {
		dbForGoose.Close()
		t.Fatalf("goose.Up() error = %+v", err)
	}

	return dbPool, dbForGoose, migDir
}

// DbCleanup rolls the schema back down and releases connections.
func DbCleanup(t *testing.T, pool *pgxpool.Pool, dbForGoose *sql.DB, migDir string) {
	t.Helper()

	if err := goose.Reset(dbForGoose, migDir); err != nil {
		t.Logf("goose.Reset() error = %+v", err)
	}
	if err := dbForGoose.Close(); err != nil {
		t.Logf("db.Close() error = %+v", err)
	}
	pool.Close()
}
