// Package netutil holds the retry loop shared by the Telegram client and the
// database bootstrap.
package netutil

import (
	"context"
	"errors"
	"net"
	"time"
)

// Transient reports whether err looks like a network hiccup: a timeout or
// a refused dial. Cancellation is never transient.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Policy bounds a Retry loop.
type Policy struct {
	// Attempts is the total number of calls, at least one.
	Attempts int
	// Backoff returns the pause after the given failed attempt (1-based).
	Backoff func(attempt int) time.Duration
	// Retryable filters errors worth another attempt; nil retries all.
	Retryable func(error) bool
}

// Constant waits d between attempts.
func Constant(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// Linear waits d, 2d, 3d and so on.
func Linear(d time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration { return d * time.Duration(attempt) }
}

// Retry calls fn until it succeeds, the policy gives up or ctx is done.
// It returns the last error of fn, or ctx.Err() when interrupted while waiting.
func Retry(ctx context.Context, p Policy, fn func(attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt == attempts || (p.Retryable != nil && !p.Retryable(err)) {
			return err
		}
		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff(attempt)
		}
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
