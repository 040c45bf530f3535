package link

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDialer is returned when a Session is constructed without a
	// Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order
	// to establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrAlreadyClosed is returned when Close is called on a Session that
	// has already been closed.
	ErrAlreadyClosed = errors.New("session already closed")

	// ErrNotConnected is returned when a Dialer hands back a nil
	// Transport without reporting an error.
	ErrNotConnected = errors.New("dialer returned no transport")

	// ErrLoopRunning is returned when Loop is called while a previous
	// Loop call is still running.
	ErrLoopRunning = errors.New("session loop already running")

	// ErrSessionClosed resolves every transaction that was still active
	// or queued when the session loop exited.
	ErrSessionClosed = errors.New("session closed")

	// ErrTimeout is returned when no final result line arrived within the
	// transaction's configured window. The session recovers on its own;
	// the next queued command dispatches immediately.
	ErrTimeout = errors.New("command timed out")
)

// ModemError is a failure reported by the modem itself through a final
// result line (ERROR, +CME ERROR, ...). It is not fatal to the session.
type ModemError struct {
	// Line is the final result line as received.
	Line string
	// Detail is the trailing +CME/+CMS code, or the result verb for bare
	// error results.
	Detail string
}

func (e *ModemError) Error() string {
	return fmt.Sprintf("modem error: %s", e.Line)
}
