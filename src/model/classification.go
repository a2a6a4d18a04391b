package model

// Classification is what a classifier derives from an error.
type Classification struct {
	Category  Category `json:"category"`
	Severity  Severity `json:"severity"`
	Code      string   `json:"code,omitempty"`
	Transient bool     `json:"transient"`
}

// OrderClassificationResult is the classification of an error raised by an
// order-related operation. OrderID is nil when no identifier was given or the
// given one could not be normalised; NormalizationError explains the latter.
type OrderClassificationResult struct {
	Category           Category `json:"category"`
	Severity           Severity `json:"severity"`
	Code               string   `json:"code,omitempty"`
	Transient          bool     `json:"transient"`
	OrderID            *string  `json:"order_id,omitempty"`
	NormalizationError string   `json:"normalization_error,omitempty"`
}
