package repository

import (
	"context"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"alchemiser/src/database"
	"alchemiser/src/model"
)

const defaultSearchLimit = 500

// ErrorRecordRepository persists error records so a session report can be
// rebuilt after the process that produced it has exited.
type ErrorRecordRepository struct {
	db *gorm.DB
}

// NewErrorRecordRepository creates a new repository instance using the main database.
func NewErrorRecordRepository() *ErrorRecordRepository {
	return &ErrorRecordRepository{
		db: database.MainDB,
	}
}

// NewErrorRecordRepositoryWithDB is used by tests and by callers holding a transaction.
func NewErrorRecordRepositoryWithDB(db *gorm.DB) *ErrorRecordRepository {
	return &ErrorRecordRepository{db: db}
}

// ErrorSearchOptions filters persisted records. Zero values are ignored.
type ErrorSearchOptions struct {
	Category      model.Category
	Severity      model.Severity
	CorrelationID string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// Create stores one record. The record context is expected to be redacted already.
func (r *ErrorRecordRepository) Create(ctx context.Context, record model.ErrorRecord) error {
	entity, err := model.NewErrorRecordEntity(record)
	if err != nil {
		return fmt.Errorf("encode error record %s: %w", record.ID, err)
	}

	if err := r.db.WithContext(ctx).Create(&entity).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "ErrorRecordRepository",
			"op":        "Create",
			"record_id": record.ID,
		}).WithError(err).Error("Failed to persist error record")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":      "ErrorRecordRepository",
		"op":        "Create",
		"record_id": record.ID,
		"category":  record.Category,
	}).Debug("Error record persisted")
	return nil
}

// FindByCorrelationID returns the records of one session in creation order.
func (r *ErrorRecordRepository) FindByCorrelationID(ctx context.Context, correlationID string, limit int) ([]model.ErrorRecord, error) {
	return r.Search(ctx, ErrorSearchOptions{CorrelationID: correlationID, Limit: limit})
}

// Search returns matching records ordered by created_at, then id.
func (r *ErrorRecordRepository) Search(ctx context.Context, opts ErrorSearchOptions) ([]model.ErrorRecord, error) {
	query := r.db.WithContext(ctx).Model(&model.ErrorRecordEntity{})

	if opts.CorrelationID != "" {
		query = query.Where("correlation_id = ?", opts.CorrelationID)
	}
	if opts.Category != "" {
		query = query.Where("category = ?", opts.Category)
	}
	if opts.Severity != "" {
		query = query.Where("severity = ?", opts.Severity)
	}
	if opts.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *opts.CreatedAfter)
	}
	if opts.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *opts.CreatedBefore)
	}

	query = query.Order("created_at ASC, id ASC")
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	var entities []model.ErrorRecordEntity
	if err := query.Find(&entities).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "ErrorRecordRepository",
			"op":   "Search",
		}).WithError(err).Error("Failed to search error records")
		return nil, err
	}

	records := make([]model.ErrorRecord, 0, len(entities))
	for _, e := range entities {
		records = append(records, e.ToRecord())
	}
	return records, nil
}

// DeleteOlderThan removes records created before cutoff and returns how many were removed.
func (r *ErrorRecordRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&model.ErrorRecordEntity{})
	if result.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "ErrorRecordRepository",
			"op":     "DeleteOlderThan",
			"cutoff": cutoff,
		}).WithError(result.Error).Error("Failed to purge error records")
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ClampLimit bounds a caller supplied page size.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > defaultSearchLimit {
		return defaultSearchLimit
	}
	return limit
}
