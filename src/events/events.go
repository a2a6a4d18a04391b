// Package events delivers error notification events to the outside world.
// Every publisher wraps its failures in ErrPublish so callers can recognise
// them without knowing the transport.
package events

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"

	"alchemiser/src/model"
)

// ErrPublish is wrapped by every delivery failure.
var ErrPublish = errors.New("publish notification")

// Publisher delivers one notification event.
type Publisher interface {
	Publish(ctx context.Context, event model.ErrorNotificationEvent) error
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Encode is the wire format shared by every transport.
func Encode(event model.ErrorNotificationEvent) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal: %v", ErrPublish, err)
	}
	return body, nil
}

// Decode is the inverse of Encode, used by consumers and tests.
func Decode(body []byte) (model.ErrorNotificationEvent, error) {
	var event model.ErrorNotificationEvent
	err := json.Unmarshal(body, &event)
	return event, err
}

// Multi fans an event out to every publisher concurrently and joins their
// errors in publisher order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event model.ErrorNotificationEvent) error {
	errs := make([]error, len(m))
	var g errgroup.Group
	for i, p := range m {
		if p == nil {
			continue
		}
		i, p := i, p
		g.Go(func() error {
			errs[i] = p.Publish(ctx, event)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Func adapts a function to Publisher.
type Func func(ctx context.Context, event model.ErrorNotificationEvent) error

func (f Func) Publish(ctx context.Context, event model.ErrorNotificationEvent) error {
	return f(ctx, event)
}
