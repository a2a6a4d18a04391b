package errhandling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alchemiser/src/failure"
	"alchemiser/src/model"
	"alchemiser/src/retry"
)

func quickPolicy(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRunSucceedsAfterTransientFailures(t *testing.T) {
	h, pub, _ := newTestHandler(t, DefaultConfig(), nil)
	calls := 0

	err := h.Run(context.Background(), ErrorContext{Operation: "fetch_prices"}, quickPolicy(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return failure.WrapTransient(errors.New("503"), model.CategoryData, "UPSTREAM_UNAVAILABLE")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Zero(t, h.Len())
	assert.Empty(t, pub.published())
}

func TestRunRecordsOperationalFailureAndNotifies(t *testing.T) {
	h, pub, _ := newTestHandler(t, DefaultConfig(), nil)
	calls := 0
	cause := failure.WrapTransient(errors.New("503"), model.CategoryData, "UPSTREAM_UNAVAILABLE")

	err := h.Run(context.Background(), ErrorContext{Operation: "fetch_prices", CorrelationID: "corr-9"}, quickPolicy(3),
		func(context.Context) error {
			calls++
			return cause
		})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	records := h.Records()
	require.Len(t, records, 1)
	assert.Equal(t, model.CategoryData, records[0].Category)
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", records[0].Code)
	assert.Equal(t, "operational", records[0].Context["failure_kind"])
	require.Len(t, pub.published(), 1)
	assert.Equal(t, "corr-9", pub.published()[0].CorrelationID)
}

func TestRunWithPropagationReturnsOriginalError(t *testing.T) {
	h, _, _ := newTestHandler(t, DefaultConfig(), nil)
	cause := failure.New(model.CategoryTrading, "REJECTED", "insufficient buying power")

	err := h.Run(context.Background(), ErrorContext{}, nil, func(context.Context) error { return cause }, WithPropagation())

	require.ErrorIs(t, err, cause)
	assert.Equal(t, 1, h.Len())
}

func TestRunRecoversPanics(t *testing.T) {
	h, _, _ := newTestHandler(t, DefaultConfig(), nil)
	calls := 0

	var err error
	require.NotPanics(t, func() {
		err = h.Run(context.Background(), ErrorContext{Operation: "rebalance"}, quickPolicy(3), func(context.Context) error {
			calls++
			panic("index out of range")
		}, WithPropagation())
	})

	var p *failure.PanicError
	require.ErrorAs(t, err, &p)
	assert.Equal(t, 1, calls, "panics are not retried")

	rec := h.Records()[0]
	assert.Equal(t, model.CategoryUnknown, rec.Category)
	assert.Equal(t, model.SeverityCritical, rec.Severity)
	assert.Equal(t, "unexpected", rec.Context["failure_kind"])
	assert.Equal(t, "index out of range", rec.Context["panic_value"])
	assert.NotEmpty(t, rec.Context["stack"])
}

func TestRunWithoutNotification(t *testing.T) {
	h, pub, _ := newTestHandler(t, DefaultConfig(), nil)

	_ = h.Run(context.Background(), ErrorContext{}, retry.NoRetry(), func(context.Context) error {
		return errors.New("boom")
	}, WithoutNotification())

	assert.Equal(t, 1, h.Len())
	assert.Empty(t, pub.published())
}

func TestWrapDecoratesOperation(t *testing.T) {
	h, _, _ := newTestHandler(t, DefaultConfig(), nil)
	guard := h.Wrap(ErrorContext{Module: "portfolio"}, nil, WithPropagation())

	op := guard(func(context.Context) error { return errors.New("drift too large") })
	require.EqualError(t, op(context.Background()), "drift too large")
	assert.Equal(t, "portfolio", h.Records()[0].Module)
}

func TestHandleOperationalFailureAddsFailedStep(t *testing.T) {
	h, pub, _ := newTestHandler(t, DefaultConfig(), nil)
	opErr := &failure.OperationalError{Category: model.CategoryTrading, Code: "REJECTED", Op: "place_order", Err: errors.New("x")}
	extra := map[string]any{"symbol": "SPY"}

	h.handleOperationalFailure(context.Background(), opErr, opErr, ErrorContext{Extra: extra}, runOptions{})

	rec := h.Records()[0]
	assert.Equal(t, "place_order", rec.Context["failed_step"])
	assert.Equal(t, "SPY", rec.Context["symbol"])
	assert.Len(t, extra, 1, "caller context untouched")
	assert.Empty(t, pub.published())
}

func TestHandleUnexpectedFailure(t *testing.T) {
	h, pub, _ := newTestHandler(t, DefaultConfig(), nil)

	h.handleUnexpectedFailure(context.Background(), errors.New("nil map write"), ErrorContext{}, runOptions{notify: true})

	rec := h.Records()[0]
	assert.Equal(t, "unexpected", rec.Context["failure_kind"])
	assert.Nil(t, rec.Context["stack"])
	require.Len(t, pub.published(), 1)
}

func TestRunWithRetryHonoursNilPolicy(t *testing.T) {
	h, _, _ := newTestHandler(t, DefaultConfig(), nil)
	calls := 0
	err := h.runWithRetry(context.Background(), nil, func(context.Context) error {
		calls++
		return errors.New("once")
	})
	require.EqualError(t, err, "once")
	assert.Equal(t, 1, calls)
}
