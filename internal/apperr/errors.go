// Package apperr holds the error taxonomy shared by the schedule, override and
// rotation services and mapped to HTTP status codes by the api package.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindImmutable         Kind = "immutable"
	KindConflict          Kind = "conflict"
	KindSnapshotWrite     Kind = "snapshot_write_failed"
	KindLayerUnavailable  Kind = "resolution_layer_unavailable"
	KindRotationBoardFail Kind = "rotation_board_failure"
)

// Error is a classified failure. Index points at the offending element of a
// batch request when the failure came from one.
type Error struct {
	Kind    Kind
	Message string
	Index   *int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Index != nil {
		msg = fmt.Sprintf("entry %d: %s", *e.Index, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind reports the classification as a plain string.
func (e *Error) ErrorKind() string { return string(e.Kind) }

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationAt is a validation failure for element i of a batch.
func ValidationAt(i int, format string, args ...any) *Error {
	idx := i
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...), Index: &idx}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Immutable(format string, args ...any) *Error {
	return &Error{Kind: KindImmutable, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the classification of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IndexOf returns the batch index attached to err, if any.
func IndexOf(err error) (int, bool) {
	var e *Error
	if errors.As(err, &e) && e.Index != nil {
		return *e.Index, true
	}
	return 0, false
}
