package model

import (
	"encoding/json"
	"time"
)

// ErrorRecordEntity is the persisted form of an ErrorRecord, kept for auditing
// and for rebuilding session reports after the process exits.
type ErrorRecordEntity struct {
	ID uint `gorm:"primaryKey" json:"id"`

	RecordID      string `gorm:"size:36;uniqueIndex" json:"record_id"`
	CorrelationID string `gorm:"size:100;index" json:"correlation_id"`

	// Where the error happened
	Module    string  `gorm:"size:100;index" json:"module"` // e.g. "portfolio"
	Operation string  `gorm:"size:100" json:"operation"`    // e.g. "rebalance"
	OrderID   *string `gorm:"size:100;index" json:"order_id,omitempty"`

	// Error information
	ExceptionType string `gorm:"size:255" json:"exception_type"`
	Message       string `gorm:"type:text" json:"message"`
	Code          string `gorm:"size:100" json:"code"`
	Transient     bool   `json:"transient"`

	Category Category `gorm:"size:20;index" json:"category"`
	Severity Severity `gorm:"size:20;index" json:"severity"`

	SuggestedAction string `gorm:"type:text" json:"suggested_action,omitempty"`

	// Redacted context stored as JSON
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName allows you to control the exact table name for error records.
func (ErrorRecordEntity) TableName() string {
	return "error_records"
}

// NewErrorRecordEntity flattens a record for storage. The context must already be redacted.
func NewErrorRecordEntity(r ErrorRecord) (ErrorRecordEntity, error) {
	e := ErrorRecordEntity{
		RecordID:        r.ID,
		CorrelationID:   r.CorrelationID,
		Module:          r.Module,
		Operation:       r.Operation,
		ExceptionType:   r.ExceptionType,
		Message:         r.Message,
		Code:            r.Code,
		Transient:       r.Transient,
		Category:        r.Category,
		Severity:        r.Severity,
		SuggestedAction: r.SuggestedAction,
		CreatedAt:       r.CreatedAt.UTC(),
	}
	if r.OrderID != nil {
		id := *r.OrderID
		e.OrderID = &id
	}
	if len(r.Context) > 0 {
		raw, err := json.Marshal(r.Context)
		if err != nil {
			return ErrorRecordEntity{}, err
		}
		e.Context = string(raw)
	}
	return e, nil
}

// ToRecord rebuilds the in-memory record. An unreadable context is kept under
// the "raw_context" key rather than dropped.
func (e ErrorRecordEntity) ToRecord() ErrorRecord {
	r := ErrorRecord{
		ID:              e.RecordID,
		ExceptionType:   e.ExceptionType,
		Message:         e.Message,
		Category:        ParseCategory(string(e.Category)),
		Severity:        ParseSeverity(string(e.Severity)),
		Code:            e.Code,
		Transient:       e.Transient,
		CreatedAt:       e.CreatedAt.UTC(),
		CorrelationID:   e.CorrelationID,
		Operation:       e.Operation,
		Module:          e.Module,
		SuggestedAction: e.SuggestedAction,
	}
	if e.OrderID != nil {
		id := *e.OrderID
		r.OrderID = &id
	}
	if e.Context != "" {
		ctx := map[string]any{}
		if err := json.Unmarshal([]byte(e.Context), &ctx); err != nil {
			ctx = map[string]any{"raw_context": e.Context}
		}
		r.Context = ctx
	}
	return r
}
