package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/readweb/internal/config"
	"github.com/xxxsen/readweb/internal/db"
)

// OpenTestDB returns a migrated, empty database. It uses sqlite in the
// test's temp dir unless TEST_DB_HOST points at a postgres server, in which
// case the tables are truncated first. Postgres runs need -p 1.
func OpenTestDB(t *testing.T) (*sqlx.DB, func()) {
	t.Helper()
	cfg := config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "readweb_test.db"),
	}
	if host := os.Getenv("TEST_DB_HOST"); host != "" {
		cfg = config.DatabaseConfig{
			Driver:   config.DriverPostgres,
			Host:     host,
			Port:     envInt("TEST_DB_PORT", 5432),
			User:     envOr("TEST_DB_USER", "readweb"),
			Password: envOr("TEST_DB_PASSWORD", "readweb_pass"),
			DBName:   envOr("TEST_DB_NAME", "readweb_test"),
			SSLMode:  "disable",
		}
	}
	conn, err := db.Open(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if cfg.Driver == config.DriverPostgres {
		if _, err := conn.Exec(`TRUNCATE summary_records, comments, novels RESTART IDENTITY CASCADE`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
	}
	return conn, func() {
		_ = conn.Close()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
