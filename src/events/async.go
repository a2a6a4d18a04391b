package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"alchemiser/src/model"
)

const (
	defaultBufferSize   = 256
	defaultDrainTimeout = 5 * time.Second
	defaultSendTimeout  = 30 * time.Second
)

// AsyncOption configures an Async publisher.
type AsyncOption func(*Async)

// WithBufferSize sets the channel buffer capacity. Default: 256.
func WithBufferSize(n int) AsyncOption {
	return func(a *Async) {
		if n > 0 {
			a.bufSize = n
		}
	}
}

// WithOnError sets the callback invoked when the inner publisher fails.
// Default: logs a warning.
func WithOnError(f func(model.ErrorNotificationEvent, error)) AsyncOption {
	return func(a *Async) { a.errFunc = f }
}

// WithBlockOnFull makes Publish wait for buffer space instead of dropping the
// event. The wait still honours ctx.
func WithBlockOnFull() AsyncOption {
	return func(a *Async) { a.blockOnFull = true }
}

// WithSendTimeout bounds each delivery attempt of the inner publisher.
func WithSendTimeout(d time.Duration) AsyncOption {
	return func(a *Async) { a.sendTimeout = d }
}

// WithRateLimit spaces deliveries to the inner publisher. Events wait in the
// buffer while the limiter is empty.
func WithRateLimit(l *rate.Limiter) AsyncOption {
	return func(a *Async) { a.limiter = l }
}

// Async decouples the error handler from delivery. Publish enqueues and
// returns; a background goroutine drains the queue into the inner publisher.
type Async struct {
	inner       Publisher
	logger      *logrus.Entry
	ch          chan model.ErrorNotificationEvent
	done        chan struct{}
	errFunc     func(model.ErrorNotificationEvent, error)
	bufSize     int
	blockOnFull bool
	sendTimeout time.Duration
	limiter     *rate.Limiter

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts the drain goroutine immediately.
func NewAsync(inner Publisher, logger *logrus.Entry, opts ...AsyncOption) *Async {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	a := &Async{
		inner:       inner,
		logger:      logger.WithField("component", "async_publisher"),
		bufSize:     defaultBufferSize,
		sendTimeout: defaultSendTimeout,
	}
	a.errFunc = func(ev model.ErrorNotificationEvent, err error) {
		a.logger.WithError(err).
			WithField("event_id", ev.EventID).
			WithField("correlation_id", ev.CorrelationID).
			Warn("notification delivery failed")
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ch = make(chan model.ErrorNotificationEvent, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Publish enqueues the event. A full buffer drops the event with an error
// unless WithBlockOnFull was given.
func (a *Async) Publish(ctx context.Context, event model.ErrorNotificationEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return fmt.Errorf("%w: async publisher closed", ErrPublish)
	}

	if !a.blockOnFull {
		select {
		case a.ch <- event:
			return nil
		default:
			a.logger.WithField("event_id", event.EventID).Warn("notification buffer full, dropping event")
			return fmt.Errorf("%w: buffer full", ErrPublish)
		}
	}

	select {
	case a.ch <- event:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrPublish, ctx.Err())
	}
}

// Close stops accepting events, waits for the queue to drain (bounded by a
// timeout) and returns.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()

	select {
	case <-a.done:
	case <-time.After(defaultDrainTimeout):
		a.logger.Warn("notification drain timed out")
	}
	return nil
}

func (a *Async) drain() {
	defer close(a.done)
	for event := range a.ch {
		a.deliver(event)
	}
}

func (a *Async) deliver(event model.ErrorNotificationEvent) {
	defer func() {
		if r := recover(); r != nil {
			a.errFunc(event, fmt.Errorf("%w: publisher panic: %v", ErrPublish, r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), a.sendTimeout)
	defer cancel()
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			a.errFunc(event, fmt.Errorf("%w: rate limited: %v", ErrPublish, err))
			return
		}
	}
	if err := a.inner.Publish(ctx, event); err != nil {
		a.errFunc(event, err)
	}
}
