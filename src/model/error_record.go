package model

import "time"

// ErrorRecord is one classified error occurrence. Records are never mutated
// after they are appended to a handler; callers receive copies.
type ErrorRecord struct {
	ID              string         `json:"id"`
	ExceptionType   string         `json:"exception_type"`
	Message         string         `json:"message"`
	Category        Category       `json:"category"`
	Severity        Severity       `json:"severity"`
	Code            string         `json:"code,omitempty"`
	Transient       bool           `json:"transient"`
	Context         map[string]any `json:"context,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	OrderID         *string        `json:"order_id,omitempty"`
	CorrelationID   string         `json:"correlation_id,omitempty"`
	Operation       string         `json:"operation,omitempty"`
	Module          string         `json:"module,omitempty"`
	SuggestedAction string         `json:"suggested_action,omitempty"`
}

// Clone returns a deep copy so the caller cannot reach the retained record.
func (r ErrorRecord) Clone() ErrorRecord {
	out := r
	out.Context = CloneContext(r.Context)
	if r.OrderID != nil {
		id := *r.OrderID
		out.OrderID = &id
	}
	return out
}

// CloneContext deep-copies nested maps and slices; other values are copied by assignment.
func CloneContext(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneContext(val)
	case []any:
		cp := make([]any, len(val))
		for i := range val {
			cp[i] = cloneValue(val[i])
		}
		return cp
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// ErrorCategorySummary counts retained records per category.
type ErrorCategorySummary struct {
	Counts map[Category]int `json:"counts"`
	Total  int              `json:"total"`
}

// Count returns zero for categories without records.
func (s ErrorCategorySummary) Count(c Category) int {
	return s.Counts[c]
}

// NotificationDecision says whether accumulated errors warrant an outbound alert.
type NotificationDecision struct {
	Notify bool   `json:"notify"`
	Reason string `json:"reason"`
}
