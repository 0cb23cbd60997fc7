// Package errs defines the stable error taxonomy the core reports through.
// Every error the core returns to a caller carries one of these kinds, a
// human message, and — where it helps — a remediation hint, per the
// contract in §7 of the specification this module implements.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a stable, inspectable error category. Callers should use
// errors.As against *Error and switch on Kind, never substring-match the
// message (substring matching is the documented legacy fallback only).
type Kind string

const (
	KindMissingTool         Kind = "missing_tool"
	KindWrongEngineDump      Kind = "wrong_engine_dump"
	KindVersionIncompatible Kind = "version_incompatible"
	KindPortUnavailable     Kind = "port_unavailable"
	KindNoPortsAvailable    Kind = "no_ports_available"
	KindProcessInitTimeout  Kind = "process_init_timeout"
	KindProcessReadyTimeout Kind = "process_ready_timeout"
	KindProcessStopTimeout  Kind = "process_stop_timeout"
	KindDownloadFailed      Kind = "download_failed"
	KindExtractFailed       Kind = "extract_failed"
	KindVerifyFailed        Kind = "verify_failed"
	KindNameConflict        Kind = "name_conflict"
	KindNotFound            Kind = "not_found"
	KindInvalidName         Kind = "invalid_name"
	KindInvalidDatabaseName Kind = "invalid_database_name"
	KindStorePersistFailed  Kind = "store_persist_failed"
	KindCancelledByCaller   Kind = "cancelled_by_caller"
	KindUnsupportedOperation Kind = "unsupported_operation"
	KindPreconditionFailed  Kind = "precondition_failed"
)

// Error is the concrete error type every core-level failure is wrapped in.
type Error struct {
	Kind        Kind
	Message     string
	Remediation string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no remediation hint and no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// WithRemediation attaches a remediation hint and returns the receiver for
// chaining at the construction site.
func (e *Error) WithRemediation(hint string) *Error {
	e.Remediation = hint
	return e
}

// Is enables errors.Is(err, errs.KindNotFound)-style matching by kind when
// the target is a bare Kind value wrapped via KindMarker.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	if other.Kind == "" {
		return false
	}
	return e.Kind == other.Kind
}

// KindMarker builds a sentinel *Error carrying only a Kind, suitable for
// errors.Is(err, errs.KindMarker(errs.KindNotFound)) comparisons in tests
// and callers that only care about the category.
func KindMarker(kind Kind) *Error {
	return &Error{Kind: kind}
}

// As extracts the Kind of err if it is (or wraps) an *Error, and ok=false
// otherwise.
func As(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
