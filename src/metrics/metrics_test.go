package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alchemiser/src/model"
)

func TestCountersAccumulate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Recorded(model.CategoryTrading, model.SeverityError)
	m.Recorded(model.CategoryTrading, model.SeverityError)
	m.Recorded(model.CategoryData, model.SeverityWarning)
	m.Evicted(3)
	m.Evicted(0)
	m.Notification(OutcomePublished)
	m.Notification(OutcomeSkipped)
	m.NormalizationFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.recorded.WithLabelValues("TRADING", "ERROR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recorded.WithLabelValues("DATA", "WARNING")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.evicted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues(OutcomePublished)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.normalization))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 4)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Recorded(model.CategoryData, model.SeverityError)
		m.Evicted(1)
		m.Notification(OutcomeFailed)
		m.NormalizationFailed()
	})
}
