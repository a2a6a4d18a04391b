package model

import "time"

const EventTypeErrorNotificationRequested = "ErrorNotificationRequested"

// ErrorNotificationEvent is published when accumulated errors warrant an alert.
// Report and Summary are already redacted.
type ErrorNotificationEvent struct {
	EventID       string           `json:"event_id"`
	EventType     string           `json:"event_type"`
	CorrelationID string           `json:"correlation_id"`
	CausationID   string           `json:"causation_id,omitempty"`
	Source        string           `json:"source"`
	Severity      Severity         `json:"severity"`
	Title         string           `json:"title"`
	Reason        string           `json:"reason"`
	Report        string           `json:"report"`
	Summary       map[Category]int `json:"summary"`
	ErrorCount    int              `json:"error_count"`
	Timestamp     time.Time        `json:"timestamp"`
}
