package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"family-ledger-go/internal/config"
	"family-ledger-go/pkg/logger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded migrations for the configured driver on a
// dedicated connection, so closing the migrator never touches the pool the
// repositories use.
func Migrate(cfg config.Config, log logger.Logger) error {
	log = logger.OrNop(log).Component("db")

	var (
		driverName string
		dsn        string
		dir        string
	)
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		driverName, dsn, dir = "postgres", cfg.DB.GetDSN(), "migrations/postgres"
	case config.StoreDriverSQLite:
		driverName, dsn, dir = "sqlite3", sqliteDSN(cfg.Store.SQLitePath), "migrations/sqlite"
	default:
		return nil
	}

	migrateDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	var driver database.Driver
	if driverName == "postgres" {
		driver, err = postgres.WithInstance(migrateDB, &postgres.Config{})
	} else {
		driver, err = sqlite3.WithInstance(migrateDB, &sqlite3.Config{})
	}
	if err != nil {
		return fmt.Errorf("create %s driver: %w", driverName, err)
	}

	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driverName, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	log.Info("db: migrations applied", "driver", cfg.Store.Driver, "version", version, "dirty", dirty)
	return nil
}
