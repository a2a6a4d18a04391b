package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"alchemiser/src/database/migrations"
	"alchemiser/src/model"
)

// MainDB is the primary read/write database connection used by the application.
var MainDB *gorm.DB

// Open connects to dsn with the given driver without touching the schema.
func Open(driver, dsn string, gormLogLevel int) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres, "":
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(gormLogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get DB from GORM: %w", err)
	}
	if driver == DriverSQLite {
		// sqlite serialises writers anyway
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(1 * time.Hour)
	}
	return db, nil
}

// Migrate brings the error record schema up to date.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.ErrorRecordEntity{},
		&migrations.DataMigration{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations: %w", err)
	}
	return nil
}

// InitMainDB initializes the main (read/write) database connection and runs migrations.
// This should be called once at application startup.
func InitMainDB() error {
	config := GetConfig()
	db, err := Open(config.Driver, config.DatabaseURLMain, config.GormLogLevel)
	if err != nil {
		return err
	}

	// Assign to the global variable only after a successful connection.
	MainDB = db
	logrus.WithField("driver", config.Driver).Info("[database] MainDB connection established")

	if err := Migrate(MainDB); err != nil {
		return err
	}
	logrus.Info("[database] MainDB migrations completed")
	return nil
}

// Ping checks the connection is alive.
func Ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialised")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}
