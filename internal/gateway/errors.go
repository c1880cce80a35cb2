// Package gateway defines the shared error set for external generative
// service adapters. Transport failures of any kind are normalized into one of
// three sentinel errors so that retry logic upstream stays uniform.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrUnavailable means the service could not be reached or answered with
	// a non-success status.
	ErrUnavailable = errors.New("service unavailable")

	// ErrTimeout means the call exceeded its configured deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrInvalidResponse means the service answered but the payload could not
	// be used (empty, malformed, or undecodable).
	ErrInvalidResponse = errors.New("invalid response")
)

// Classify maps a transport error onto the gateway error set. The original
// error text is preserved for logs; callers match with errors.Is.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
