package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alchemiser/src/model"
	"alchemiser/src/redact"
	"alchemiser/src/repository"
)

type mockErrorSearcher struct {
	records     []model.ErrorRecord
	err         error
	options     repository.ErrorSearchOptions
	calledCount int
}

func (m *mockErrorSearcher) Search(_ context.Context, options repository.ErrorSearchOptions) ([]model.ErrorRecord, error) {
	m.calledCount++
	m.options = options
	return m.records, m.err
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSearchErrorsHandlerPassesFilters(t *testing.T) {
	createdAt := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	repo := &mockErrorSearcher{records: []model.ErrorRecord{{ID: "r-1", Category: model.CategoryData, CreatedAt: createdAt}}}

	rr := serve(SearchErrorsHandler(repo),
		"/errors?category=data&severity=warn&correlationId=c-1&createdFrom=2025-04-01T00:00:00Z&page=3&pageSize=10")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, model.CategoryData, repo.options.Category)
	assert.Equal(t, model.SeverityWarning, repo.options.Severity)
	assert.Equal(t, "c-1", repo.options.CorrelationID)
	require.NotNil(t, repo.options.CreatedAfter)
	assert.Nil(t, repo.options.CreatedBefore)
	assert.Equal(t, 10, repo.options.Limit)
	assert.Equal(t, 20, repo.options.Offset)

	var got []model.ErrorRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "r-1", got[0].ID)
}

func TestSearchErrorsHandlerRejectsBadInput(t *testing.T) {
	for _, target := range []string{
		"/errors?category=broker",
		"/errors?createdFrom=yesterday",
		"/errors?createdTo=2025-13-01",
		"/errors?page=0",
		"/errors?pageSize=abc",
	} {
		repo := &mockErrorSearcher{}
		rr := serve(SearchErrorsHandler(repo), target)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
		assert.Zero(t, repo.calledCount, target)
	}
}

func TestSearchErrorsHandlerRepositoryFailure(t *testing.T) {
	rr := serve(SearchErrorsHandler(&mockErrorSearcher{err: errors.New("db down")}), "/errors")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestErrorReportHandler(t *testing.T) {
	repo := &mockErrorSearcher{records: []model.ErrorRecord{{
		ID:        "r-1",
		Message:   "rejected",
		Category:  model.CategoryTrading,
		Severity:  model.SeverityError,
		Context:   map[string]any{"api_secret": "shh"},
		CreatedAt: time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC),
	}}}
	h := ErrorReportHandler(repo, redact.New())

	rr := serve(h, "/errors/report")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(h, "/errors/report?correlationId=c-9")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "c-9", repo.options.CorrelationID)
	assert.Equal(t, repository.ClampLimit(0), repo.options.Limit)
	assert.Contains(t, rr.Body.String(), "== TRADING (1) ==")
	assert.NotContains(t, rr.Body.String(), "shh")
}
