package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"alchemiser/src/model"
)

// ReadOnlyDB serves report and search queries. The database user for this
// connection should have SELECT-only permissions.
var ReadOnlyDB *gorm.DB

// InitReadOnlyDB opens DATABASE_URL_READONLY, or reuses MainDB when it is
// unset. It does not run any migrations.
func InitReadOnlyDB() error {
	config := GetConfig()
	if config.DatabaseURLReadOnly == "" {
		if MainDB == nil {
			return fmt.Errorf("no read-only database configured and MainDB not initialised")
		}
		ReadOnlyDB = MainDB
		logrus.Info("[ReadOnlyDB] reusing MainDB connection")
		return nil
	}

	db, err := Open(config.Driver, config.DatabaseURLReadOnly, config.GormLogLevel)
	if err != nil {
		return err
	}
	if err := Ping(context.Background(), db); err != nil {
		return fmt.Errorf("failed to ping ReadOnlyDB: %w", err)
	}

	var count int64
	if err := db.Model(&model.ErrorRecordEntity{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to access error_records: %w", err)
	}
	logrus.WithField("count", count).Info("[ReadOnlyDB] error_records reachable")

	ReadOnlyDB = db
	return nil
}
