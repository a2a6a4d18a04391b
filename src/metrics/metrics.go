// Package metrics exposes Prometheus counters for the error handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"alchemiser/src/model"
)

const (
	OutcomePublished = "published"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Metrics is safe to use through a nil pointer; every method becomes a no-op.
type Metrics struct {
	recorded      *prometheus.CounterVec
	evicted       prometheus.Counter
	notifications *prometheus.CounterVec
	normalization prometheus.Counter
}

// New registers the collectors on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		recorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alchemiser_errors_recorded_total",
			Help: "Errors recorded by the handler",
		}, []string{"category", "severity"}),
		evicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "alchemiser_errors_evicted_total",
			Help: "Records dropped from the bounded error buffer",
		}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alchemiser_error_notifications_total",
			Help: "Error notification attempts by outcome",
		}, []string{"outcome"}),
		normalization: factory.NewCounter(prometheus.CounterOpts{
			Name: "alchemiser_identifier_normalization_failures_total",
			Help: "Order identifiers that could not be normalised",
		}),
	}
}

func (m *Metrics) Recorded(category model.Category, severity model.Severity) {
	if m == nil {
		return
	}
	m.recorded.WithLabelValues(string(category), string(severity)).Inc()
}

func (m *Metrics) Evicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evicted.Add(float64(n))
}

func (m *Metrics) Notification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) NormalizationFailed() {
	if m == nil {
		return
	}
	m.normalization.Inc()
}
