// Package retry runs operations under a bounded exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"alchemiser/src/failure"
)

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	JitterPercent uint64

	// RetryIf decides whether err is worth another attempt. Nil means Retryable.
	RetryIf func(err error) bool
	// OnRetry is called before each wait with the 1-based attempt that failed.
	OnRetry func(attempt int, err error)
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		JitterPercent: 10,
	}
}

// NoRetry runs the operation exactly once.
func NoRetry() Policy {
	return Policy{MaxAttempts: 1}
}

// Retryable retries everything except cancellation, recovered panics and
// operational errors declared permanent.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var p *failure.PanicError
	if errors.As(err, &p) {
		return false
	}
	if op, ok := failure.AsOperational(err); ok {
		return op.Transient
	}
	return true
}

func (p Policy) backoff() goretry.Backoff {
	initial := p.InitialDelay
	if initial <= 0 {
		initial = time.Millisecond
	}
	b := goretry.NewExponential(initial)
	if p.MaxDelay > 0 {
		b = goretry.WithCappedDuration(p.MaxDelay, b)
	}
	if p.JitterPercent > 0 {
		b = goretry.WithJitterPercent(p.JitterPercent, b)
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return goretry.WithMaxRetries(uint64(attempts-1), b)
}

// Run calls op until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done. The last error from op is returned unwrapped; when
// ctx ends the wait it is joined with the context error.
func (p Policy) Run(ctx context.Context, op func(ctx context.Context) error) error {
	retryIf := p.RetryIf
	if retryIf == nil {
		retryIf = Retryable
	}

	attempt := 0
	var last error
	err := goretry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		last = err
		if !retryIf(err) {
			return err
		}
		if attempt < p.MaxAttempts && p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		return goretry.RetryableError(err)
	})
	if err != nil && last != nil && ctx.Err() != nil && !errors.Is(last, ctx.Err()) {
		return errors.Join(last, err)
	}
	return err
}
