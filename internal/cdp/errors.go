// File: internal/cdp/errors.go
package cdp

import (
	"errors"
	"fmt"
	"time"
)

// ErrClosed is wrapped by the ConnectionError returned for requests on a
// closed channel.
var ErrClosed = errors.New("command channel closed")

// ConnectionError is a transport failure: the channel could not be opened,
// or the connection dropped while a request was pending.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError means no correlated response arrived within the deadline.
type TimeoutError struct {
	ID     int64
	Method string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s command (id %d) timed out after %s", e.Method, e.ID, e.After)
}

// Timeout lets callers treat the error like a net.Error.
func (e *TimeoutError) Timeout() bool { return true }

// EvalError reports a command the target answered with an error payload, or
// an evaluation that threw inside the page.
type EvalError struct {
	Method  string
	Code    int64
	Message string
}

func (e *EvalError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s failed: %s (code %d)", e.Method, e.Message, e.Code)
	}
	return fmt.Sprintf("%s failed: %s", e.Method, e.Message)
}
