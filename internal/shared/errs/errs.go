// Package errs defines the error taxonomy shared by every execution component.
//
// Components return these sentinels (usually wrapped with fmt.Errorf and %w) so
// callers can branch with errors.Is and the tool layer can map any failure to a
// stable code via Code.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrBlocked           = errors.New("blocked command")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExists     = errors.New("session already exists")
	ErrSessionBusy       = errors.New("session busy")
	ErrJobNotFound       = errors.New("job not found")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrTimedOut          = errors.New("timed out")
	ErrTimedOutWaiting   = errors.New("timed out waiting")
	ErrLaunchFailed      = errors.New("launch failed")
	ErrIO                = errors.New("i/o error")
	ErrInvalidRange      = errors.New("invalid range")
	ErrUnavailable       = errors.New("lines unavailable")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// BlockedError is returned when the safety filter rejects a command.
type BlockedError struct {
	Category string
	Reason   string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked command (%s): %s", e.Category, e.Reason)
}

func (e *BlockedError) Unwrap() error { return ErrBlocked }

// Blocked builds a BlockedError.
func Blocked(category, reason string) error {
	return &BlockedError{Category: category, Reason: reason}
}

// codes is checked in order; ErrTimedOutWaiting must precede ErrTimedOut.
var codes = []struct {
	err  error
	code string
}{
	{ErrBlocked, "blocked_command"},
	{ErrSessionNotFound, "session_not_found"},
	{ErrSessionExists, "session_exists"},
	{ErrSessionBusy, "session_busy"},
	{ErrJobNotFound, "job_not_found"},
	{ErrResourceExhausted, "resource_exhausted"},
	{ErrTimedOutWaiting, "timed_out_waiting"},
	{ErrTimedOut, "timed_out"},
	{ErrLaunchFailed, "launch_failed"},
	{ErrIO, "io_error"},
	{ErrInvalidRange, "invalid_range"},
	{ErrUnavailable, "unavailable"},
	{ErrInvalidArgument, "invalid_argument"},
}

// Code maps err to a stable snake_case identifier. Unknown errors map to
// "internal"; nil maps to "".
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// Category extracts the safety category from a blocked error.
func Category(err error) (string, bool) {
	var be *BlockedError
	if errors.As(err, &be) {
		return be.Category, true
	}
	return "", false
}
