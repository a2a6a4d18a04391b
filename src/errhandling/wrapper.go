package errhandling

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"alchemiser/src/failure"
)

// Operation is a unit of business work observed by a Handler.
type Operation func(ctx context.Context) error

type runOptions struct {
	propagate bool
	notify    bool
}

type RunOption func(*runOptions)

// WithPropagation returns the original error from Run after it is recorded.
func WithPropagation() RunOption {
	return func(o *runOptions) { o.propagate = true }
}

// WithoutNotification records failures but leaves notification to the caller,
// for workflows that notify once at the end.
func WithoutNotification() RunOption {
	return func(o *runOptions) { o.notify = false }
}

// Run executes op under policy. A final failure is recorded and, unless
// disabled, followed by SendErrorNotificationIfNeeded. Run returns nil after
// recording unless WithPropagation is given. A nil policy runs op once.
func (h *Handler) Run(ctx context.Context, ec ErrorContext, policy RetryPolicy, op Operation, opts ...RunOption) error {
	o := runOptions{notify: true}
	for _, opt := range opts {
		opt(&o)
	}

	err := h.runWithRetry(ctx, policy, op)
	if err == nil {
		return nil
	}
	if opErr, ok := failure.AsOperational(err); ok {
		h.handleOperationalFailure(ctx, err, opErr, ec, o)
	} else {
		h.handleUnexpectedFailure(ctx, err, ec, o)
	}
	if o.propagate {
		return err
	}
	return nil
}

// Wrap turns Run into a decorator.
func (h *Handler) Wrap(ec ErrorContext, policy RetryPolicy, opts ...RunOption) func(Operation) Operation {
	return func(op Operation) Operation {
		return func(ctx context.Context) error {
			return h.Run(ctx, ec, policy, op, opts...)
		}
	}
}

// runWithRetry converts panics from op or the policy into *failure.PanicError.
func (h *Handler) runWithRetry(ctx context.Context, policy RetryPolicy, op Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = failure.FromPanic(r)
		}
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	guarded := func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = failure.FromPanic(r)
			}
		}()
		return op(ctx)
	}
	if policy == nil {
		return guarded(ctx)
	}
	return policy.Run(ctx, guarded)
}

// handleOperationalFailure records a failure the code raising it already
// classified.
func (h *Handler) handleOperationalFailure(ctx context.Context, err error, opErr *failure.OperationalError, ec ErrorContext, o runOptions) {
	h.logger.WithFields(logrus.Fields{
		"operation": ec.Operation,
		"category":  opErr.Category,
		"code":      opErr.Code,
		"transient": opErr.Transient,
	}).Warn("operation failed")

	ec.Extra = withExtra(ec.Extra, "failure_kind", "operational")
	if opErr.Op != "" {
		ec.Extra["failed_step"] = opErr.Op
	}
	h.HandleError(err, ec)
	if o.notify {
		h.SendErrorNotificationIfNeeded(ctx, ec.CorrelationID)
	}
}

// handleUnexpectedFailure records anything else, including recovered panics,
// whose stack is kept in the record context.
func (h *Handler) handleUnexpectedFailure(ctx context.Context, err error, ec ErrorContext, o runOptions) {
	h.logger.WithError(err).WithField("operation", ec.Operation).Error("operation failed unexpectedly")

	ec.Extra = withExtra(ec.Extra, "failure_kind", "unexpected")
	var p *failure.PanicError
	if errors.As(err, &p) {
		ec.Extra["stack"] = p.Stack
		ec.Extra["panic_value"] = fmt.Sprint(p.Value)
	}
	h.HandleError(err, ec)
	if o.notify {
		h.SendErrorNotificationIfNeeded(ctx, ec.CorrelationID)
	}
}

// withExtra copies extra so the caller's map is never written to.
func withExtra(extra map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		out[k] = v
	}
	out[key] = value
	return out
}
