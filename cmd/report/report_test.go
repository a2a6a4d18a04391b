package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alchemiser/src/model"
)

type stubFinder struct {
	records []model.ErrorRecord
	err     error

	gotID    string
	gotLimit int
}

func (s *stubFinder) FindByCorrelationID(_ context.Context, correlationID string, limit int) ([]model.ErrorRecord, error) {
	s.gotID = correlationID
	s.gotLimit = limit
	return s.records, s.err
}

func TestReportPrintsPersistedRun(t *testing.T) {
	log, hook := logrustest.NewNullLogger()
	finder := &stubFinder{records: []model.ErrorRecord{{
		ID:            "rec-1",
		ExceptionType: "*failure.OperationalError",
		Message:       "DATA/STALE_QUOTE: no usable last price",
		Category:      model.CategoryData,
		Severity:      model.SeverityError,
		Code:          "STALE_QUOTE",
		CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		CorrelationID: "run-9",
		Operation:     "market_data",
		Module:        "preflight",
		Context:       map[string]any{"api_key": "abc123"},
	}}}
	var out bytes.Buffer

	r := &Report{
		Log:           logrus.NewEntry(log),
		Out:           &out,
		CorrelationID: "run-9",
		Config:        &Config{Limit: 50},
		records:       finder,
	}
	require.NoError(t, r.Start())

	assert.Equal(t, "run-9", finder.gotID)
	assert.Equal(t, 50, finder.gotLimit)
	assert.Contains(t, out.String(), "== DATA (1) ==")
	assert.Contains(t, out.String(), "STALE_QUOTE")
	assert.NotContains(t, out.String(), "abc123")
	require.NotEmpty(t, hook.AllEntries())
}

func TestReportRequiresCorrelationID(t *testing.T) {
	r := &Report{Config: &Config{Limit: 10}}
	require.Error(t, r.Start())
}

func TestReportPropagatesRepositoryError(t *testing.T) {
	log, _ := logrustest.NewNullLogger()
	r := &Report{
		Log:           logrus.NewEntry(log),
		Out:           &bytes.Buffer{},
		CorrelationID: "run-1",
		Config:        &Config{Limit: 10},
		records:       &stubFinder{err: errors.New("connection refused")},
	}
	err := r.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
