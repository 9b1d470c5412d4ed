// Package resilience implements the bounded retry driver shared by every
// vendor client and the OAuth refresh flow (spec.md §4.2).
package resilience

import (
	"context"
	"time"
)

// Config controls retry behavior. Delay grows by Multiplier each attempt,
// capped at MaxDelay — a bounded growing delay, matching the contract in
// spec.md §4.2 even though the teacher's own retry loop uses a flat delay.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultConfig mirrors the teacher's flat 1s/3-attempt retry, expressed as a
// (trivially bounded) growing-delay config with Multiplier 1.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     time.Second,
		Multiplier:   1,
	}
}

// ShouldRetry classifies an error as retryable.
type ShouldRetry func(err error) bool

// Do executes fn, retrying per cfg while shouldRetry(err) is true and
// attempts remain. Attempt count starts at 1. The context governs both the
// inter-attempt sleep and any cancellation the caller wants to propagate.
func Do(ctx context.Context, cfg Config, shouldRetry ShouldRetry, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	delay := cfg.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts || !shouldRetry(lastErr) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if cfg.Multiplier > 1 {
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
	}
	return lastErr
}

// HTTPClassifier is the classification every vendor client uses: retry on
// 429 and 5xx, never on 401/403/404, never on parse/logic errors (any error
// that isn't an *HTTPStatusError is treated as non-retryable).
func HTTPClassifier(err error) bool {
	status, ok := StatusOf(err)
	if !ok {
		return false
	}
	if status == 401 || status == 403 || status == 404 {
		return false
	}
	return status == 429 || status >= 500
}

// HTTPStatusError is implemented by vendor-client errors that carry an
// upstream HTTP status code.
type HTTPStatusError interface {
	error
	StatusCode() int
}

// StatusOf extracts the HTTP status code from err, if it implements
// HTTPStatusError.
func StatusOf(err error) (int, bool) {
	if hse, ok := err.(HTTPStatusError); ok {
		return hse.StatusCode(), true
	}
	return 0, false
}
