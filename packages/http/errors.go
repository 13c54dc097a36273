package http

import (
	"context"
	"errors"
	"fmt"
)

// Kind categorizes a failure so callers can decide whether to retry.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindUnsupported
	KindAlreadyConsumed
	KindEndOfStream
	KindCancelled
	KindTimeout
	KindLimitReached
	KindDisposed
	KindTransport
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindInvalidArgument: "invalid argument",
	KindUnsupported:     "unsupported operation",
	KindAlreadyConsumed: "body already consumed",
	KindEndOfStream:     "end of stream",
	KindCancelled:       "cancelled",
	KindTimeout:         "timeout",
	KindLimitReached:    "limit reached",
	KindDisposed:        "resource disposed",
	KindTransport:       "transport error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is the categorized error returned by this package.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so the sentinels below work
// with errors.Is regardless of Op and the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

var (
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrUnsupported     = &Error{Kind: KindUnsupported}
	ErrAlreadyConsumed = &Error{Kind: KindAlreadyConsumed}
	ErrEndOfStream     = &Error{Kind: KindEndOfStream}
	ErrCancelled       = &Error{Kind: KindCancelled}
	ErrTimeout         = &Error{Kind: KindTimeout}
	ErrLimitReached    = &Error{Kind: KindLimitReached}
	ErrDisposed        = &Error{Kind: KindDisposed}
	ErrTransport       = &Error{Kind: KindTransport}
)

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf classifies err. Context cancellation and deadlines map to the
// cancelled and timeout kinds; anything unrecognized is KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	return KindUnknown
}

// IsRetryable reports whether a failure of this kind may succeed when the
// same request is issued again.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindTransport:
		return true
	}
	return false
}
