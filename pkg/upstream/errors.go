package upstream

import (
	"fmt"
	"time"
)

// TransportError is an attempt that produced no usable HTTP response:
// connection failures, TLS errors, timeouts, or a body that could not be read.
type TransportError struct {
	// Timeout is the attempt timeout that expired, zero otherwise.
	Timeout time.Duration

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("upstream request timed out after %s: %v", e.Timeout, e.Cause)
	}
	return fmt.Sprintf("upstream request failed: %v", e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether the attempt deadline expired.
func (e *TransportError) IsTimeout() bool {
	return e.Timeout > 0
}
