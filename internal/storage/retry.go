package storage

import (
	"time"

	"courier/internal/logger"
)

// WithRetry runs fn until it succeeds or attempts are exhausted, sleeping
// delay between tries. The last error is returned when every attempt fails.
// Intended for transient database failures (dropped connections, deadlocks).
func WithRetry(attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt < attempts {
			logger.Warningf("operation failed (attempt %d/%d), retrying in %v: %v", attempt, attempts, delay, lastErr)
			time.Sleep(delay)
		}
	}
	return lastErr
}
