package resilience

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure for callers and API responses.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindFetch         Kind = "fetch"
	KindProvider      Kind = "provider"
	KindTimeout       Kind = "timeout"
	KindParse         Kind = "parse"
	KindUnknown       Kind = "unknown"
)

// Error is an explicitly classified failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New classifies err under kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Configf returns a configuration error. Configuration errors are raised
// before any network call is made.
func Configf(op, format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Op: op, Err: fmt.Errorf(format, args...)}
}

// Classified is implemented by error types that know their own kind.
type Classified interface {
	ErrorKind() Kind
}

// HTTPStatusError is implemented by the provider clients' APIError types.
type HTTPStatusError interface {
	HTTPStatus() int
}

// KindOf classifies any error chain. Explicit classification wins, then
// timeouts, then provider HTTP failures. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	var c Classified
	if errors.As(err, &c) {
		return c.ErrorKind()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var t interface{ Timeout() bool }
	if errors.As(err, &t) && t.Timeout() {
		return KindTimeout
	}

	var h HTTPStatusError
	if errors.As(err, &h) {
		return KindProvider
	}

	if errors.Is(err, ErrCircuitOpen) {
		return KindFetch
	}

	return KindUnknown
}

// StatusOf returns the upstream HTTP status carried by err, if any.
func StatusOf(err error) (int, bool) {
	var h HTTPStatusError
	if errors.As(err, &h) {
		return h.HTTPStatus(), true
	}
	return 0, false
}
