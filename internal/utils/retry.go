package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Retry calls fn up to maxAttempts times, doubling delay after each failure.
// It gives up early when ctx is done. Used for startup dependencies only;
// deliveries are never retried.
func Retry(ctx context.Context, logger *logrus.Entry, maxAttempts int, delay time.Duration, fn func(context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		logger.WithError(lastErr).Warnf("Attempt %d/%d failed", attempt, maxAttempts)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("gave up after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}
