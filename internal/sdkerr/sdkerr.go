// Package sdkerr carries the engine error taxonomy. Every engine-raised
// failure is one of these kinds so callers can branch on KindOf without
// matching message strings.
package sdkerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindInvalidOptions: caller supplied contradictory or missing parameters.
	KindInvalidOptions Kind = "invalid_options"
	// KindNotSupported: operation not valid for this session type or auth mode.
	KindNotSupported Kind = "not_supported"
	// KindSession: lookup or lifecycle failure (no such session, terminate failed).
	KindSession Kind = "session"
	// KindGeneric: unexpected or wrapped failure.
	KindGeneric Kind = "generic"
	// KindCall: business-level call error reported via telemetry.
	KindCall Kind = "call"
)

type Error struct {
	Kind    Kind
	Msg     string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// WithDetails attaches lookup parameters so a session-kind failure reports
// what was asked for.
func (e *Error) WithDetails(kv map[string]any) *Error {
	e.Details = kv
	return e
}

// KindOf returns the taxonomy kind of err, or KindGeneric for foreign errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindGeneric
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}
