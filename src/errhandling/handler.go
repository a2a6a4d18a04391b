// Package errhandling accumulates classified error records for one workflow
// invocation and decides when they warrant an outbound notification.
//
// A Handler never panics or returns errors to the code it observes. Failures
// of its own collaborators are logged and folded into the records instead.
package errhandling

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"alchemiser/src/failure"
	"alchemiser/src/metrics"
	"alchemiser/src/model"
	"alchemiser/src/redact"
	"alchemiser/src/report"
)

const (
	codeUnclassified  = "UNCLASSIFIED"
	codePublishFailed = "PUBLISH_FAILED"
	storeTimeout      = 5 * time.Second
)

// ErrorContext describes where an error happened. OrderID may be any raw
// identifier; it is normalised before it reaches the record.
type ErrorContext struct {
	Operation     string
	Module        string
	OrderID       any
	CorrelationID string
	Extra         map[string]any
}

type Handler struct {
	logger     *logrus.Entry
	cfg        Config
	blocking   map[model.Category]bool
	classifier Classifier
	normalizer IdentifierNormalizer
	publisher  EventPublisher
	writer     *recordWriter
	metrics    *metrics.Metrics
	redactor   *redact.Redactor
	now        func() time.Time

	mu      sync.RWMutex
	records *ring
}

// NewHandler fails when a required collaborator is missing or cfg is invalid.
func NewHandler(logger *logrus.Entry, cfg Config, deps Dependencies) (*Handler, error) {
	if deps.Classifier == nil {
		return nil, errors.New("errhandling: classifier is required")
	}
	if deps.Normalizer == nil {
		return nil, errors.New("errhandling: identifier normalizer is required")
	}
	if deps.Publisher == nil {
		return nil, errors.New("errhandling: event publisher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("errhandling: %w", err)
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	h := &Handler{
		logger:     logger.WithField("component", "error_handler"),
		cfg:        cfg,
		blocking:   cfg.blockingSet(),
		classifier: deps.Classifier,
		normalizer: deps.Normalizer,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		redactor:   deps.Redactor,
		now:        deps.Clock,
		records:    newRing(cfg.MaxRecords),
	}
	if h.redactor == nil {
		h.redactor = redact.New(cfg.RedactExtraKeys...)
	}
	if h.now == nil {
		h.now = time.Now
	}
	if deps.Store != nil {
		h.writer = newRecordWriter(deps.Store, h.logger, cfg.StoreBuffer)
	}
	return h, nil
}

// HandleError classifies err, appends the resulting record and returns a copy
// of it. A nil err records nothing and returns the zero record.
func (h *Handler) HandleError(err error, ec ErrorContext) (rec model.ErrorRecord) {
	if err == nil {
		h.logger.Debug("HandleError called with nil error")
		return model.ErrorRecord{}
	}
	defer func() {
		if r := recover(); r != nil {
			h.logger.WithField("panic", fmt.Sprint(r)).Error("error handler failed while recording an error")
		}
	}()

	ctx := model.CloneContext(ec.Extra)
	if ctx == nil {
		ctx = map[string]any{}
	}

	cls, cerr := h.classify(err)
	if cerr != nil {
		cls = fallbackClassification()
		ctx["classification_error"] = cerr.Error()
		h.logger.WithError(cerr).WithField("error_type", exceptionType(err)).
			Warn("classification failed, recording as UNKNOWN")
	}

	var orderID *string
	if ec.OrderID != nil {
		if id, nerr := h.normalizeOrderID(ec.OrderID); nerr != nil {
			ctx["order_id_raw"] = fmt.Sprint(ec.OrderID)
			ctx["order_id_error"] = nerr.Error()
		} else {
			orderID = &id
		}
	}

	rec = model.ErrorRecord{
		ID:              uuid.NewString(),
		ExceptionType:   exceptionType(err),
		Message:         h.redactor.Text(err.Error()),
		Category:        cls.Category,
		Severity:        cls.Severity,
		Code:            cls.Code,
		Transient:       cls.Transient,
		Context:         h.redactor.Map(ctx),
		CreatedAt:       h.now().UTC(),
		OrderID:         orderID,
		CorrelationID:   ec.CorrelationID,
		Operation:       ec.Operation,
		Module:          ec.Module,
		SuggestedAction: h.suggestedAction(cls.Category),
	}
	if len(rec.Context) == 0 {
		rec.Context = nil
	}

	h.append(rec)
	h.metrics.Recorded(rec.Category, rec.Severity)
	h.logRecord(rec)
	h.persist(rec.Clone())
	return rec.Clone()
}

// ClassifyOrderError classifies err for an order-related failure without
// recording it. A malformed orderID is logged and yields a nil OrderID.
func (h *Handler) ClassifyOrderError(err error, orderID any) model.OrderClassificationResult {
	cls, cerr := h.classify(err)
	if cerr != nil {
		h.logger.WithError(cerr).Warn("order error classification failed, using UNKNOWN")
		cls = fallbackClassification()
	}
	res := model.OrderClassificationResult{
		Category:  cls.Category,
		Severity:  cls.Severity,
		Code:      cls.Code,
		Transient: cls.Transient,
	}
	if orderID == nil {
		return res
	}
	id, nerr := h.normalizeOrderID(orderID)
	if nerr != nil {
		res.NormalizationError = nerr.Error()
		return res
	}
	res.OrderID = &id
	return res
}

func (h *Handler) Summary() model.ErrorCategorySummary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := model.ErrorCategorySummary{Counts: make(map[model.Category]int)}
	h.records.each(func(rec model.ErrorRecord) {
		s.Counts[rec.Category]++
		s.Total++
	})
	return s
}

// HasBlockingErrors reports whether any retained record is in a category
// listed by Config.BlockingCategories.
func (h *Handler) HasBlockingErrors() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	blocking := false
	h.records.each(func(rec model.ErrorRecord) {
		if h.blocking[rec.Category] {
			blocking = true
		}
	})
	return blocking
}

func (h *Handler) GenerateReport() string {
	return report.Build(h.Records(), h.redactor)
}

// ShouldNotify is true once at least one retained record is outside the
// NOTIFICATION category, so failing notifications never trigger more of them.
func (h *Handler) ShouldNotify() model.NotificationDecision {
	s := h.Summary()
	if s.Total == 0 {
		return model.NotificationDecision{Reason: "no errors recorded"}
	}
	actionable := s.Total - s.Count(model.CategoryNotification)
	if actionable == 0 {
		return model.NotificationDecision{Reason: "only NOTIFICATION errors recorded"}
	}
	return model.NotificationDecision{
		Notify: true,
		Reason: fmt.Sprintf("%d of %d recorded errors are outside NOTIFICATION", actionable, s.Total),
	}
}

// Records returns copies of the retained records, oldest first.
func (h *Handler) Records() []model.ErrorRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.records.snapshot()
}

func (h *Handler) RecordsByCategory(c model.Category) []model.ErrorRecord {
	var out []model.ErrorRecord
	for _, rec := range h.Records() {
		if rec.Category == c {
			out = append(out, rec)
		}
	}
	return out
}

func (h *Handler) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.records.len()
}

// Clear drops every retained record after waiting for queued store writes.
// Call it at session boundaries.
func (h *Handler) Clear() {
	h.Flush()
	h.mu.Lock()
	n := h.records.len()
	h.records.reset()
	h.mu.Unlock()
	h.logger.WithField("cleared", n).Debug("error records cleared")
}

func (h *Handler) append(rec model.ErrorRecord) {
	h.mu.Lock()
	evicted := h.records.push(rec)
	h.mu.Unlock()
	if evicted {
		h.metrics.Evicted(1)
		h.logger.WithField("max_records", h.cfg.MaxRecords).Debug("error buffer full, evicted oldest record")
	}
}

func (h *Handler) classify(err error) (cls model.Classification, cerr error) {
	defer func() {
		if r := recover(); r != nil {
			cls, cerr = model.Classification{}, failure.FromPanic(r)
		}
	}()
	cls, cerr = h.classifier.Classify(err)
	if cerr != nil {
		return cls, cerr
	}
	cls.Category = model.ParseCategory(string(cls.Category))
	if cls.Severity == "" {
		cls.Severity = model.SeverityError
	} else {
		cls.Severity = model.ParseSeverity(string(cls.Severity))
	}
	return cls, nil
}

// normalizeOrderID logs every failure with the raw value; the caller only
// decides where the failure ends up.
func (h *Handler) normalizeOrderID(raw any) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			id, err = "", failure.FromPanic(r)
		}
		if err != nil {
			h.metrics.NormalizationFailed()
			h.logger.WithError(err).WithFields(logrus.Fields{
				"raw_order_id": fmt.Sprint(raw),
				"raw_type":     fmt.Sprintf("%T", raw),
				"category":     model.CategoryUnknown,
			}).Warn("order id normalization failed")
		}
	}()
	return h.normalizer.Normalize(raw)
}

func (h *Handler) suggestedAction(c model.Category) string {
	if a, ok := h.classifier.(Advisor); ok {
		return a.SuggestedAction(c)
	}
	return ""
}

func (h *Handler) logRecord(rec model.ErrorRecord) {
	fields := logrus.Fields{
		"error_id":   rec.ID,
		"category":   rec.Category,
		"severity":   rec.Severity,
		"code":       rec.Code,
		"transient":  rec.Transient,
		"error_type": rec.ExceptionType,
	}
	if rec.Operation != "" {
		fields["operation"] = rec.Operation
	}
	if rec.Module != "" {
		fields["module"] = rec.Module
	}
	if rec.CorrelationID != "" {
		fields["correlation_id"] = rec.CorrelationID
	}
	if rec.OrderID != nil {
		fields["order_id"] = *rec.OrderID
	}
	if rec.Context != nil {
		fields["context"] = rec.Context
	}
	entry := h.logger.WithFields(fields)
	switch rec.Severity {
	case model.SeverityInfo:
		entry.Info(rec.Message)
	case model.SeverityWarning:
		entry.Warn(rec.Message)
	default:
		entry.Error(rec.Message)
	}
}

// Flush waits until every record handled so far has reached the record store.
func (h *Handler) Flush() {
	if h.writer != nil {
		h.writer.flush()
	}
}

// Close flushes pending store writes and stops the writer. Records handled
// afterwards are kept in memory only.
func (h *Handler) Close() {
	if h.writer != nil {
		h.writer.close()
	}
}

func (h *Handler) persist(rec model.ErrorRecord) {
	if h.writer != nil {
		h.writer.enqueue(rec)
	}
}

func fallbackClassification() model.Classification {
	return model.Classification{
		Category: model.CategoryUnknown,
		Severity: model.SeverityError,
		Code:     codeUnclassified,
	}
}

// exceptionType names the most specific type, looking through fmt.Errorf wrappers.
func exceptionType(err error) string {
	for {
		name := fmt.Sprintf("%T", err)
		if name != "*fmt.wrapError" {
			return name
		}
		next := errors.Unwrap(err)
		if next == nil {
			return name
		}
		err = next
	}
}
