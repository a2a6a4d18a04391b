package model

import "strings"

// Category is the coarse-grained bucket an error is classified into.
type Category string

const (
	CategoryData          Category = "DATA"
	CategoryTrading       Category = "TRADING"
	CategoryConfiguration Category = "CONFIGURATION"
	CategoryNotification  Category = "NOTIFICATION"
	CategoryUnknown       Category = "UNKNOWN"
)

// Categories returns every category in the order used by summaries and reports.
func Categories() []Category {
	return []Category{
		CategoryData,
		CategoryTrading,
		CategoryConfiguration,
		CategoryNotification,
		CategoryUnknown,
	}
}

// ParseCategory is case-insensitive. Anything unrecognised maps to CategoryUnknown.
func ParseCategory(s string) Category {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Categories() {
		if c == known {
			return c
		}
	}
	return CategoryUnknown
}

// Severity is orthogonal to Category.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities, unknown values rank as ERROR.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 3
	default:
		return 2
	}
}

// ParseSeverity defaults to SeverityError for unrecognised input.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToUpper(strings.TrimSpace(s))) {
	case SeverityInfo:
		return SeverityInfo
	case SeverityWarning, "WARN":
		return SeverityWarning
	case SeverityCritical, "FATAL":
		return SeverityCritical
	default:
		return SeverityError
	}
}

// MaxSeverity returns the highest of the given severities, SeverityInfo when empty.
func MaxSeverity(severities ...Severity) Severity {
	max := SeverityInfo
	for _, s := range severities {
		if s.Rank() > max.Rank() {
			max = s
		}
	}
	return max
}
