package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"authgate/internal/platform/config"
	"authgate/internal/platform/errors"
	"authgate/internal/platform/storage/migrations"
)

// Open connects to the configured durable store backend.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite", "":
		if cfg.DSN != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
				return nil, errors.Wrap(errors.KindStorage, "database.open", "failed to create data directory", err)
			}
		}
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, errors.New(
			errors.KindStorage,
			"database.open",
			fmt.Sprintf("unsupported database driver: %s", cfg.Driver),
		)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "database.open", "failed to open database", err)
	}
	return db, nil
}

// Migrate applies every schema migration that has not run yet.
func Migrate(db *gorm.DB) error {
	manager := NewMigrationManager(db)
	manager.AddMigration(&migrations.Migration001Initial{})

	if err := manager.RunMigrations(); err != nil {
		return errors.Wrap(errors.KindStorage, "database.migrate", "failed to run migrations", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
