package database

import (
	"fmt"
	"time"

	"github.com/appdotbuilder/vehicle-refuel-manager/internal/config"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/logger"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const slowQueryThreshold = 200 * time.Millisecond

// NewConnection opens the configured database and migrates the schema.
func NewConnection(cfg config.DatabaseConfig, log logrus.FieldLogger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLogger(log, slowQueryThreshold),
		TranslateError: true, // unique violations surface as gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, err
	}

	if cfg.Driver == config.DriverSQLite {
		// one connection keeps in-memory databases alive and serializes sqlite writers
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the tables and indexes of the workflow.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.RefuelingRequest{},
	)
}
