// Package errors provides the coded error type used across the verification pipeline
package errors

// Always import as perr (platform/errors)

import (
	stderrs "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies an error for logs and the status server
// Values are logged by name, so only ever append
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for unclassified errors
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodeUnavailable is for transient failures where a later attempt may succeed
	ErrorCodeUnavailable

	// ErrorCodeConflict is for pipeline lifecycle violations (starting twice, loading while running)
	ErrorCodeConflict

	// ErrorCodeInvalidArgument is for bad input parameters
	ErrorCodeInvalidArgument

	// ErrorCodeValidation is for invalid options
	ErrorCodeValidation

	// ErrorCodeNotFound is for missing resources
	ErrorCodeNotFound

	// ErrorCodeDuplicateKey is for unique constraint violations
	ErrorCodeDuplicateKey

	// ErrorCodeDB is for other database errors
	ErrorCodeDB

	// ErrorCodeStoreConnect is for failing to reach the durable store or the audit sink
	ErrorCodeStoreConnect

	// ErrorCodeProbeRefused is for a mail server actively refusing the prober
	ErrorCodeProbeRefused

	// ErrorCodeProbeFailed is for any other probe failure
	ErrorCodeProbeFailed

	// ErrorCodeProbeTimeout is for a probe that did not resolve within its budget
	ErrorCodeProbeTimeout

	// ErrorCodeMalformedCandidate is for empty or unparseable candidate addresses
	ErrorCodeMalformedCandidate
)

type codeInfo struct {
	name   string
	status int
}

var codes = map[ErrorCode]codeInfo{
	ErrorCodeUnknown:            {"unknown", http.StatusInternalServerError},
	ErrorCodeUnavailable:        {"unavailable", http.StatusServiceUnavailable},
	ErrorCodeConflict:           {"conflict", http.StatusConflict},
	ErrorCodeInvalidArgument:    {"invalid_argument", http.StatusUnprocessableEntity},
	ErrorCodeValidation:         {"validation", http.StatusBadRequest},
	ErrorCodeNotFound:           {"not_found", http.StatusNotFound},
	ErrorCodeDuplicateKey:       {"duplicate_key", http.StatusConflict},
	ErrorCodeDB:                 {"db", http.StatusInternalServerError},
	ErrorCodeStoreConnect:       {"store_connect", http.StatusServiceUnavailable},
	ErrorCodeProbeRefused:       {"probe_refused", http.StatusBadGateway},
	ErrorCodeProbeFailed:        {"probe_failed", http.StatusBadGateway},
	ErrorCodeProbeTimeout:       {"probe_timeout", http.StatusGatewayTimeout},
	ErrorCodeMalformedCandidate: {"malformed_candidate", http.StatusUnprocessableEntity},
}

// String returns the snake_case name logged for the code
func (c ErrorCode) String() string {
	if ci, ok := codes[c]; ok {
		return ci.name
	}
	return fmt.Sprintf("code(%d)", uint16(c))
}

// HTTPStatusCode is the status the status server answers with for c
func HTTPStatusCode(c ErrorCode) int {
	if ci, ok := codes[c]; ok {
		return ci.status
	}
	return http.StatusInternalServerError
}

// ErrProbeRefused is returned by probe adapters when the remote refuses our address.
// Match with IsCode(err, ErrorCodeProbeRefused) since adapters usually wrap it
var ErrProbeRefused = New(ErrorCodeProbeRefused, "refuse")

// Error is a coded error. msg is for people, code is for logs and routing,
// field names the offending option when validation fails
type Error struct {
	orig  error
	msg   string
	code  ErrorCode
	field string
}

// Wire is the JSON form served by the status endpoint
type Wire struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return e.msg + ": " + e.orig.Error()
	}
	return e.msg
}

// Unwrap returns the wrapped cause
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Field returns the offending field, if any
func (e *Error) Field() string { return e.field }

// WireFrom converts any error into a Wire payload. Only our own message is exposed, not the cause
func WireFrom(err error) Wire {
	if err == nil {
		return Wire{}
	}
	if e, ok := As(err); ok {
		return Wire{Code: e.code, Message: e.msg, Field: e.field}
	}
	return Wire{Code: ErrorCodeUnknown, Message: err.Error()}
}

// Root returns the deepest wrapped cause
func Root(err error) error {
	for err != nil {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
	return nil
}

// CodeOf returns the outermost ErrorCode in err's chain, or Unknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether any *Error in err's chain carries code
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.code == code {
			return true
		}
		err = stderrs.Unwrap(err)
	}
	return false
}

// HTTPStatus returns the mapped HTTP status for any error
func HTTPStatus(err error) int { return HTTPStatusCode(CodeOf(err)) }

// As returns the outermost *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// WithField returns a copy of err naming field. Foreign errors pass through unchanged
func WithField(err error, field string) error {
	e, ok := As(err)
	if !ok {
		return err
	}
	c := *e
	c.field = field
	return &c
}

// New returns an *Error with code and msg
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf is the formatted variant of New
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns an *Error with code and msg around orig
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf is the formatted variant of Wrap
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// NotFoundf returns a not found error
func NotFoundf(format string, a ...any) error { return Newf(ErrorCodeNotFound, format, a...) }

// InvalidArgf returns an invalid argument error
func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }

// Conflictf returns a lifecycle conflict error
func Conflictf(format string, a ...any) error { return Newf(ErrorCodeConflict, format, a...) }

// Unavailablef returns an unavailable error
func Unavailablef(format string, a ...any) error { return Newf(ErrorCodeUnavailable, format, a...) }

// StoreConnectf wraps a failure to reach a backend
func StoreConnectf(orig error, format string, a ...any) error {
	return Wrapf(orig, ErrorCodeStoreConnect, format, a...)
}

// ProbeFailedf wraps a probe failure that is not a refusal
func ProbeFailedf(orig error, format string, a ...any) error {
	return Wrapf(orig, ErrorCodeProbeFailed, format, a...)
}

// Refused wraps orig so it matches ErrorCodeProbeRefused
func Refused(orig error, msg string) error {
	return Wrap(orig, ErrorCodeProbeRefused, msg)
}
