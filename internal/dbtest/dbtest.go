// Package dbtest creates throwaway PostgreSQL databases for integration tests.
package dbtest

import (
	"fmt"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// EnvURL names the variable holding the admin connection URL
const EnvURL = "DBHELPER_TEST_DATABASE_URL"

// TestDB provides a test database connection
type TestDB struct {
	DB      *sqlx.DB
	DBName  string
	ConnStr string

	baseConnStr string
	t           testing.TB
}

// New creates a fresh database next to the one EnvURL points at. The test
// is skipped when EnvURL is unset or -short is given.
func New(t testing.TB) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	baseConnStr := os.Getenv(EnvURL)
	if baseConnStr == "" {
		t.Skipf("%s not set", EnvURL)
	}

	admin, err := sqlx.Connect("postgres", baseConnStr)
	if err != nil {
		t.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer admin.Close()

	dbName := fmt.Sprintf("dbhelper_test_%d", time.Now().UnixNano())
	if _, err := admin.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName)); err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	u, err := url.Parse(baseConnStr)
	if err != nil {
		t.Fatalf("Invalid %s: %v", EnvURL, err)
	}
	u.Path = "/" + dbName
	testConnStr := u.String()

	db, err := sqlx.Connect("postgres", testConnStr)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	tdb := &TestDB{
		DB:          db,
		DBName:      dbName,
		ConnStr:     testConnStr,
		baseConnStr: baseConnStr,
		t:           t,
	}
	t.Cleanup(tdb.Cleanup)
	return tdb
}

// Exec runs setup SQL and fails the test on error
func (tdb *TestDB) Exec(query string) {
	tdb.t.Helper()
	if _, err := tdb.DB.Exec(query); err != nil {
		tdb.t.Fatalf("Failed to execute setup SQL: %v", err)
	}
}

// Cleanup drops the test database
func (tdb *TestDB) Cleanup() {
	tdb.DB.Close()

	admin, err := sqlx.Connect("postgres", tdb.baseConnStr)
	if err != nil {
		tdb.t.Logf("Failed to connect for cleanup: %v", err)
		return
	}
	defer admin.Close()

	_, err = admin.Exec(`
		SELECT pg_terminate_backend(pg_stat_activity.pid)
		FROM pg_stat_activity
		WHERE pg_stat_activity.datname = $1
		AND pid <> pg_backend_pid()
	`, tdb.DBName)
	if err != nil {
		tdb.t.Logf("Failed to terminate connections: %v", err)
	}

	if _, err := admin.Exec("DROP DATABASE IF EXISTS " + pq.QuoteIdentifier(tdb.DBName)); err != nil {
		tdb.t.Logf("Failed to drop test database: %v", err)
	}
}
