// Package apperr defines the error taxonomy shared by the settlement core.
// Callers match with errors.Is against the sentinels; *Error adds context.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState an operation was attempted against a record not in the required state
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidArgument a required field is missing or malformed
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidAmount amount is zero, negative or finer than a cent
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds the requested amount exceeds the available balance
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNotQueued payment routed to a subscription without a queue entry
	ErrNotQueued = errors.New("subscription not queued")

	// ErrDuplicate uniqueness violation
	ErrDuplicate = errors.New("duplicate record")

	// ErrNotFound record not found
	ErrNotFound = errors.New("record not found")

	// ErrTransient lock timeout, deadlock or write conflict; safe to retry idempotent operations
	ErrTransient = errors.New("transient conflict")
)

// Error carries the failing operation and the entity it was applied to.
type Error struct {
	Op     string
	Kind   error
	Entity string
	ID     uint
	Msg    string
	Err    error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.Entity != "" {
		msg = fmt.Sprintf("%s (%s %d)", msg, e.Entity, e.ID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// Is matches the error kind so errors.Is(err, ErrInvalidState) works.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a contextual error of the given kind.
func New(op string, kind error, entity string, id uint, msg string) *Error {
	return &Error{Op: op, Kind: kind, Entity: entity, ID: id, Msg: msg}
}

// Wrap attaches a kind to an underlying cause.
func Wrap(op string, kind error, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// InvalidState reports an entity that is not in the state an operation requires.
func InvalidState(op, entity string, id uint, have, want string) *Error {
	return New(op, ErrInvalidState, entity, id, fmt.Sprintf("status is %s, want %s", have, want))
}

// NotFound reports a missing entity.
func NotFound(op, entity string, id uint) *Error {
	return New(op, ErrNotFound, entity, id, "")
}

// IsRetryable reports whether err is a transient concurrency failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Kind returns the taxonomy sentinel err belongs to, or nil when it is unclassified.
func Kind(err error) error {
	for _, kind := range []error{
		ErrInvalidState,
		ErrInvalidArgument,
		ErrInvalidAmount,
		ErrInsufficientFunds,
		ErrNotQueued,
		ErrDuplicate,
		ErrNotFound,
		ErrTransient,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
