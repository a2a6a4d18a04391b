// Package failure holds the two failure variants the error handler
// distinguishes: known operational errors raised deliberately by business
// code, and everything else.
package failure

import (
	"errors"
	"fmt"
	"runtime/debug"

	"alchemiser/src/model"
)

// OperationalError is a failure the raising code already understands. The
// classifier trusts its Category, Code and Transient flag as declared.
type OperationalError struct {
	Category  model.Category
	Code      string
	Transient bool
	Op        string
	Err       error
}

func (e *OperationalError) Error() string {
	msg := string(e.Category)
	if e.Code != "" {
		msg += "/" + e.Code
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *OperationalError) Unwrap() error {
	return e.Err
}

// New creates an operational error with a plain message.
func New(category model.Category, code, message string) *OperationalError {
	return &OperationalError{Category: category, Code: code, Err: errors.New(message)}
}

// Wrap attaches a category and code to err. A nil err yields nil.
func Wrap(err error, category model.Category, code string) error {
	if err == nil {
		return nil
	}
	return &OperationalError{Category: category, Code: code, Err: err}
}

// WrapTransient is Wrap for failures that are expected to clear on retry.
func WrapTransient(err error, category model.Category, code string) error {
	if err == nil {
		return nil
	}
	return &OperationalError{Category: category, Code: code, Transient: true, Err: err}
}

// AsOperational finds the outermost OperationalError in err's chain.
func AsOperational(err error) (*OperationalError, bool) {
	var op *OperationalError
	if errors.As(err, &op) {
		return op, true
	}
	return nil, false
}

// IsOperational reports whether err is, or wraps, an OperationalError.
func IsOperational(err error) bool {
	_, ok := AsOperational(err)
	return ok
}

// PanicError carries a value recovered from a panicking operation.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// FromPanic converts a recovered value. Call it directly inside the deferred
// recover so the stack still points at the panic site.
func FromPanic(v any) *PanicError {
	return &PanicError{Value: v, Stack: string(debug.Stack())}
}
