package db

import (
	"embed"
	"errors"
	"fmt"
	"path"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/xxxsen/readweb/internal/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

func init() {
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
}

func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := cfg.DSN
	switch cfg.Driver {
	case config.DriverPostgres:
		if dsn == "" {
			sslmode := cfg.SSLMode
			if sslmode == "" {
				sslmode = "disable"
			}
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslmode)
		}
	case config.DriverSQLite:
		if dsn == "" {
			dsn = "file:" + cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	conn, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if cfg.Driver == config.DriverSQLite {
		// sqlite allows a single writer; one connection avoids SQLITE_BUSY under load.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// ApplyMigrations brings the schema up to date using the migration set that
// matches the connection's driver.
func ApplyMigrations(conn *sqlx.DB) error {
	driverName := conn.DriverName()
	source, err := iofs.New(migrationsFS, path.Join("migrations", driverName))
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	defer source.Close()

	var target database.Driver
	switch driverName {
	case config.DriverPostgres:
		target, err = postgres.WithInstance(conn.DB, &postgres.Config{})
	case config.DriverSQLite:
		target, err = sqlite.WithInstance(conn.DB, &sqlite.Config{})
	default:
		return fmt.Errorf("unsupported database driver: %s", driverName)
	}
	if err != nil {
		return fmt.Errorf("create migration target: %w", err)
	}
	if driverName == config.DriverPostgres {
		// releases the dedicated conn; the pool itself stays open.
		defer target.Close()
	}

	m, err := migrate.NewWithInstance("iofs", source, driverName, target)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
