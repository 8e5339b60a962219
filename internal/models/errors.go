package models

import (
	"errors"
	"fmt"
)

// Kind classifies an extraction failure. A Kind can be used as an
// errors.Is target: errors.Is(err, models.KindGlobalTimeout).
type Kind string

// Failure kinds.
const (
	KindEmptySource    Kind = "EMPTY_SOURCE"
	KindUnstableSource Kind = "UNSTABLE_SOURCE"
	KindRowOpenFailure Kind = "ROW_OPEN_FAILURE"
	KindGlobalTimeout  Kind = "GLOBAL_TIMEOUT"
	KindExternalAbort  Kind = "EXTERNAL_ABORT"
	KindInterrupted    Kind = "INTERRUPTED"
	KindWriteFailure   Kind = "WRITE_FAILURE"
	KindInvalidConfig  Kind = "INVALID_CONFIG"
)

func (k Kind) Error() string { return string(k) }

// Error is the internal error type carrying a failure kind.
// Row is the 1-based row index the failure relates to, or 0.
type Error struct {
	Kind    Kind
	Message string
	Row     int
	Err     error // wrapped original error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Row > 0 {
		msg = fmt.Sprintf("%s (row %d)", msg, e.Row)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the Kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// NewError creates a new Error.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NewRowError creates a new Error bound to a row.
func NewRowError(kind Kind, row int, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Row: row, Err: err}
}

// KindOf returns the Kind carried by err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
