package services

import (
	"errors"
	"fmt"
)

// ValidationError is returned for malformed input, before storage is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// SessionMismatchError means the presented session id is missing or is not
// the most recently issued one. The client must re-read and retry.
type SessionMismatchError struct {
	Reason string
}

func (e *SessionMismatchError) Error() string {
	return "session mismatch: " + e.Reason
}

// TableClosedError is terminal for the presenting client until staff reopen
// the table and the guest scans again.
type TableClosedError struct {
	TableID        uint
	RestaurantName string
	Message        string
}

func (e *TableClosedError) Error() string {
	return e.Message
}

// ApprovalRequiredError is a flow-control signal: a new approval request was
// created for the caller and the write was not applied.
type ApprovalRequiredError struct {
	RequestID string
	TimeLeft  int
}

func (e *ApprovalRequiredError) Error() string {
	return fmt.Sprintf("approval required (request %s)", e.RequestID)
}

// ApprovalPendingError is returned while an earlier request is still open.
type ApprovalPendingError struct {
	RequestID string
	TimeLeft  int
}

func (e *ApprovalPendingError) Error() string {
	return fmt.Sprintf("approval pending (request %s, %ds left)", e.RequestID, e.TimeLeft)
}

// TransientError wraps storage and transport failures. Writes are per-token
// replacements, so retrying the same request verbatim is safe.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Retryable() bool { return true }

func transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return e.What + " not found"
}

// NothingToPlaceError is returned by Place when the order has no items.
type NothingToPlaceError struct{}

func (e *NothingToPlaceError) Error() string {
	return "order has no items to place"
}

type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

// ConflictError reports a lifecycle transition that is not allowed from the
// current state.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// errVersionConflict signals a lost optimistic update; callers reload and retry.
var errVersionConflict = errors.New("version conflict")

// IsRetryable reports whether err may be retried verbatim.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}
