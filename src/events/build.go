package events

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"alchemiser/src/model"
)

// Log writes events to the logger. It is the sink used when no transport is configured.
type Log struct {
	Logger *logrus.Entry
}

func (l Log) Publish(_ context.Context, event model.ErrorNotificationEvent) error {
	logger := l.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	logger.WithFields(logrus.Fields{
		"event_id":       event.EventID,
		"correlation_id": event.CorrelationID,
		"severity":       event.Severity,
		"error_count":    event.ErrorCount,
	}).Warn(event.Title)
	return nil
}

// Pipeline is the configured publisher plus the function that releases it.
type Pipeline struct {
	Publisher Publisher
	async     *Async
	kafka     *Kafka
}

// Close drains queued events and flushes the Kafka producer, in that order.
func (p *Pipeline) Close() {
	if p.async != nil {
		_ = p.async.Close()
	}
	if p.kafka != nil {
		p.kafka.Close()
	}
}

// NewPipeline assembles the sinks named by cfg behind one async queue.
func NewPipeline(cfg Config, logger *logrus.Entry) (*Pipeline, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	p := &Pipeline{}
	var sinks Multi
	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhook(cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookTimeout))
	}
	if cfg.KafkaBroker != "" {
		k, err := NewKafka(cfg.KafkaBroker, cfg.KafkaTopic, logger)
		if err != nil {
			return nil, err
		}
		p.kafka = k
		sinks = append(sinks, k)
	}
	if len(sinks) == 0 {
		logger.Info("no notification transport configured, events will be logged")
		sinks = append(sinks, Log{Logger: logger})
	}
	opts := []AsyncOption{WithBufferSize(cfg.BufferSize)}
	if l := limiter(cfg.RatePerMinute, cfg.RateBurst); l != nil {
		opts = append(opts, WithRateLimit(l))
	}
	p.async = NewAsync(sinks, logger, opts...)
	p.Publisher = p.async
	return p, nil
}

func limiter(perMinute, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}
