package cmd

import (
	"errors"

	"github.com/abdul-hamid-achik/hitreq/packages/http"
)

// Exit codes for hitreq CLI
const (
	// ExitSuccess indicates the command completed and every check passed
	ExitSuccess = 0

	// ExitFailure indicates a failed check: an error status with --fail, a
	// schema or query mismatch, or a failed threshold
	ExitFailure = 1

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitTimeout indicates the request timed out
	ExitTimeout = 5

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64

	// ExitCancelled indicates the request was cancelled by an interrupt
	ExitCancelled = 130
)

// exitError carries the process exit code of a failed command. A nil Err
// exits silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode maps err to the process exit code. Dispatch errors are mapped by
// kind.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch http.KindOf(err) {
	case http.KindTransport:
		return ExitNetworkError
	case http.KindTimeout:
		return ExitTimeout
	case http.KindCancelled:
		return ExitCancelled
	case http.KindInvalidArgument:
		return ExitUsageError
	}
	return ExitFailure
}
