package errhandling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"alchemiser/src/failure"
	"alchemiser/src/metrics"
	"alchemiser/src/model"
	"alchemiser/src/report"
)

// SendErrorNotificationIfNeeded publishes one ErrorNotificationEvent when
// ShouldNotify allows it and reports whether the publisher accepted it.
// Publish failures are logged and recorded as NOTIFICATION errors, never returned.
func (h *Handler) SendErrorNotificationIfNeeded(ctx context.Context, correlationID string) bool {
	decision := h.ShouldNotify()
	if !decision.Notify {
		h.metrics.Notification(metrics.OutcomeSkipped)
		h.logger.WithField("reason", decision.Reason).Debug("error notification not needed")
		return false
	}

	event := h.buildEvent(correlationID, decision)
	if err := h.publish(ctx, event); err != nil {
		h.metrics.Notification(metrics.OutcomeFailed)
		h.logger.WithError(err).WithField("event_id", event.EventID).Error("failed to publish error notification")
		if !failure.IsOperational(err) {
			err = failure.WrapTransient(err, model.CategoryNotification, codePublishFailed)
		}
		h.HandleError(err, ErrorContext{
			Operation:     "send_error_notification",
			Module:        "errhandling",
			CorrelationID: event.CorrelationID,
			Extra:         map[string]any{"event_id": event.EventID},
		})
		return false
	}
	h.metrics.Notification(metrics.OutcomePublished)
	h.logger.WithFields(logrus.Fields{
		"event_id":       event.EventID,
		"correlation_id": event.CorrelationID,
		"error_count":    event.ErrorCount,
	}).Info("error notification published")
	return true
}

func (h *Handler) buildEvent(correlationID string, decision model.NotificationDecision) model.ErrorNotificationEvent {
	records := h.Records()
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	summary := make(map[model.Category]int)
	severities := make([]model.Severity, 0, len(records))
	for _, rec := range records {
		summary[rec.Category]++
		severities = append(severities, rec.Severity)
	}
	severity := model.MaxSeverity(severities...)

	var causation string
	if n := len(records); n > 0 {
		causation = records[n-1].ID
	}

	return model.ErrorNotificationEvent{
		EventID:       uuid.NewString(),
		EventType:     model.EventTypeErrorNotificationRequested,
		CorrelationID: correlationID,
		CausationID:   causation,
		Source:        h.cfg.Source,
		Severity:      severity,
		Title:         fmt.Sprintf("[%s] %s: %d error(s) recorded", severity, h.cfg.Source, len(records)),
		Reason:        decision.Reason,
		Report:        report.Build(records, h.redactor),
		Summary:       summary,
		ErrorCount:    len(records),
		Timestamp:     h.now().UTC(),
	}
}

func (h *Handler) publish(ctx context.Context, event model.ErrorNotificationEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event publisher panicked: %v", r)
		}
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	return h.publisher.Publish(ctx, event)
}
