package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"family-ledger-go/internal/config"
	"family-ledger-go/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
)

// Open connects to the configured snapshot store. The memory driver has no
// database and must not reach this function.
func Open(cfg config.Config, log logger.Logger) (*gorm.DB, error) {
	log = logger.OrNop(log).Component("db")

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		return NewPostgres(cfg.DB, log)
	case config.StoreDriverSQLite:
		return NewSQLite(cfg.Store.SQLitePath, log)
	default:
		return nil, fmt.Errorf("store driver %q has no database", cfg.Store.Driver)
	}
}

func NewPostgres(cfg config.DBConfig, log logger.Logger) (*gorm.DB, error) {
	log = logger.OrNop(log)
	if cfg.DSN != "" {
		log.Info("db: connecting using DSN")
	} else {
		log.Info("db: connecting to postgres", "host", cfg.Host, "port", cfg.Port, "dbname", cfg.Name, "sslmode", cfg.SSLMode)
	}

	gormDB, err := gorm.Open(postgres.Open(cfg.GetDSN()), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := configurePool(gormDB, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime); err != nil {
		return nil, err
	}

	log.Info("db: connected", "driver", config.StoreDriverPostgres)
	return gormDB, nil
}

// NewSQLite opens (and creates) the database file. SQLite allows a single
// writer, so the pool is capped at one connection.
func NewSQLite(path string, log logger.Logger) (*gorm.DB, error) {
	log = logger.OrNop(log)
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	log.Info("db: opening sqlite", "path", path)
	gormDB, err := gorm.Open(sqlite.Open(sqliteDSN(path)), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := configurePool(gormDB, 1, 1, 0); err != nil {
		return nil, err
	}

	log.Info("db: connected", "driver", config.StoreDriverSQLite)
	return gormDB, nil
}

func sqliteDSN(path string) string {
	return path + "?_busy_timeout=5000&_foreign_keys=on"
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
}

func configurePool(gormDB *gorm.DB, maxOpen, maxIdle int, connMaxLifetime time.Duration) error {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("db handle: %w", err)
	}

	if maxOpen == 0 {
		maxOpen = defaultMaxOpenConns
	}
	if maxIdle == 0 {
		maxIdle = defaultMaxIdleConns
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = defaultConnMaxLifetime
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}

// Close releases the pool behind gormDB.
func Close(gormDB *gorm.DB) error {
	if gormDB == nil {
		return nil
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
