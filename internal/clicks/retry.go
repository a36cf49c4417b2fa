package clicks

import (
	"context"
	"log/slog"
	"time"
)

const (
	attemptTimeout = 2 * time.Second
	backoffBase    = 50 * time.Millisecond
)

// retryWrite runs fn up to maxAttempts times with exponential backoff.
// Each attempt gets a fresh timeout detached from any request context.
// The error from the final attempt is returned so the caller can log and
// drop; tracking writes are never retried beyond the bound.
func retryWrite(ctx context.Context, logger *slog.Logger, maxAttempts int, op string, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		err = fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}

		logger.Warn("click write attempt failed",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.String("error", err.Error()))

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffBase << (attempt - 1)):
			}
		}
	}
	return err
}
