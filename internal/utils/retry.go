// Package utils holds small helpers shared by the network code.
package utils

import (
	"context"
	"errors"
	"net"
	"os"
	"time"
)

// RetryDelays are the pauses between attempts of WithRetry.
var RetryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// Retriable is implemented by errors that know whether a retry may help,
// e.g. an HTTP 503 from the upstream.
type Retriable interface {
	Retriable() bool
}

// WithRetry runs fn, retrying transient failures after each of RetryDelays.
// It stops early when ctx is done and returns the last error.
func WithRetry(ctx context.Context, fn func() error) error {
	var err error
	for _, delay := range RetryDelays {
		err = fn()
		if err == nil || !IsRetriable(err) {
			return err
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
	return fn()
}

// IsRetriable reports whether err looks transient.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var r Retriable
	if errors.As(err, &r) {
		return r.Retriable()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return os.IsTimeout(err)
}
