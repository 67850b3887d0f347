// File: internal/discovery/errors.go
package discovery

import (
	"errors"
	"fmt"
)

// ErrNoTargets is returned by callers when discovery succeeded but no target
// matched the configured prefix.
var ErrNoTargets = errors.New("no debuggable target matches the target prefix")

// DiscoveryError reports a failed query of the DevTools target list: the
// endpoint was unreachable, answered with a non-success status, or returned
// a body that is not a target list. It aborts the whole run.
type DiscoveryError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *DiscoveryError) Error() string {
	if e.StatusCode != 0 && e.Err == nil {
		return fmt.Sprintf("failed to fetch debugger list from %s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch debugger list from %s: %v", e.Endpoint, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }
