// Package util holds small shared helpers.
package util

import (
	"context"
	"math/rand/v2"
	"time"

	"codescope/internal/errs"
)

const (
	// DefaultBaseDelay is the first retry delay for retriable provider errors.
	DefaultBaseDelay = 500 * time.Millisecond
	// DefaultMaxAttempts bounds retries across all provider call sites.
	DefaultMaxAttempts = 3
	maxBackoff         = 30 * time.Second
)

// Backoff returns the exponential backoff for the given attempt (1-based)
// with random jitter of up to 25% in either direction.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(d)/2)) - d/4
	return d + jitter
}

// Retry runs fn up to attempts times, sleeping with backoff between retries.
// Only errors marked retriable are retried; fatal errors return immediately.
// Cancellation is observed between attempts.
func Retry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = fn()
		if err == nil || !errs.IsRetriable(err) {
			return err
		}
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return errs.Wrap(errs.KindCancelled, "retry", ctx.Err())
		case <-time.After(Backoff(base, i)):
		}
	}
	return err
}
