package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	logger "github.com/sirupsen/logrus"

	"alchemiser/src/model"
	"alchemiser/src/redact"
	"alchemiser/src/report"
	"alchemiser/src/repository"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type errorSearcher interface {
	Search(ctx context.Context, options repository.ErrorSearchOptions) ([]model.ErrorRecord, error)
}

// SearchErrorsHandler lists persisted error records.
// Supports pagination and filters (category, severity, correlationId, createdFrom, createdTo).
func SearchErrorsHandler(repo errorSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := repository.ErrorSearchOptions{CorrelationID: q.Get("correlationId")}

		if categoryParam := q.Get("category"); categoryParam != "" {
			category := model.ParseCategory(categoryParam)
			if !strings.EqualFold(string(category), strings.TrimSpace(categoryParam)) {
				http.Error(w, "invalid category", http.StatusBadRequest)
				return
			}
			opts.Category = category
		}
		if severityParam := q.Get("severity"); severityParam != "" {
			opts.Severity = model.ParseSeverity(severityParam)
		}

		var ok bool
		if opts.CreatedAfter, ok = parseTimeParam(w, q.Get("createdFrom"), "createdFrom"); !ok {
			return
		}
		if opts.CreatedBefore, ok = parseTimeParam(w, q.Get("createdTo"), "createdTo"); !ok {
			return
		}

		page := 1
		if pageParam := q.Get("page"); pageParam != "" {
			parsedPage, err := strconv.Atoi(pageParam)
			if err != nil || parsedPage <= 0 {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
			page = parsedPage
		}

		pageSize := 50
		if sizeParam := q.Get("pageSize"); sizeParam != "" {
			parsedSize, err := strconv.Atoi(sizeParam)
			if err != nil || parsedSize <= 0 {
				http.Error(w, "invalid pageSize", http.StatusBadRequest)
				return
			}
			pageSize = repository.ClampLimit(parsedSize)
		}
		opts.Limit = pageSize
		opts.Offset = (page - 1) * pageSize

		records, err := repo.Search(r.Context(), opts)
		if err != nil {
			logger.WithError(err).Error("failed to search error records")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			logger.WithError(err).Error("failed to encode error search response")
		}
	}
}

// ErrorReportHandler renders the plain-text report of one session.
func ErrorReportHandler(repo errorSearcher, redactor *redact.Redactor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.URL.Query().Get("correlationId")
		if correlationID == "" {
			http.Error(w, "correlationId is required", http.StatusBadRequest)
			return
		}

		records, err := repo.Search(r.Context(), repository.ErrorSearchOptions{
			CorrelationID: correlationID,
			Limit:         repository.ClampLimit(0),
		})
		if err != nil {
			logger.WithError(err).WithField("correlation_id", correlationID).Error("failed to load error report")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := w.Write([]byte(report.Build(records, redactor))); err != nil {
			logger.WithError(err).Error("failed to write error report")
		}
	}
}

func parseTimeParam(w http.ResponseWriter, value, name string) (*time.Time, bool) {
	if value == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return nil, false
	}
	return &parsed, true
}
