package errhandling

import (
	"context"
	"time"

	"alchemiser/src/metrics"
	"alchemiser/src/model"
	"alchemiser/src/redact"
)

type Classifier interface {
	Classify(err error) (model.Classification, error)
}

// IdentifierNormalizer fails with a typed error on malformed input.
type IdentifierNormalizer interface {
	Normalize(raw any) (string, error)
}

// EventPublisher must not block on delivery; see events.Async.
type EventPublisher interface {
	Publish(ctx context.Context, event model.ErrorNotificationEvent) error
}

// RetryPolicy returns the final error once its attempts are exhausted.
type RetryPolicy interface {
	Run(ctx context.Context, op func(ctx context.Context) error) error
}

// RecordStore persists records beyond the in-memory buffer.
type RecordStore interface {
	Create(ctx context.Context, record model.ErrorRecord) error
}

// Advisor is implemented by classifiers that know how to remediate a category.
type Advisor interface {
	SuggestedAction(category model.Category) string
}

// Dependencies are the collaborators of a Handler. Classifier, Normalizer and
// Publisher are required; the rest are optional.
type Dependencies struct {
	Classifier Classifier
	Normalizer IdentifierNormalizer
	Publisher  EventPublisher

	Store    RecordStore
	Metrics  *metrics.Metrics
	Redactor *redact.Redactor
	Clock    func() time.Time
}
