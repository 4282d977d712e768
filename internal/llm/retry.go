// internal/llm/retry.go
package llm

import (
	"context"
	"time"

	"content-workers/internal/common/errors"
	"content-workers/internal/common/logger"
)

// RetryPolicy is a capped exponential backoff around provider calls.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Delay returns the wait before retry number attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs op until it succeeds, fails with a non-retryable error, or MaxRetries retries are used.
// op must return *errors.StandardError values; the last one is returned.
func (p RetryPolicy) Do(ctx context.Context, log logger.Logger, op func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.Delay(attempt)
			log.Warn("retrying completion call", map[string]interface{}{
				"attempt": attempt,
				"delay":   delay.String(),
				"error":   lastErr,
			})

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.NewUpstreamTransientError(ctx.Err())
			case <-timer.C:
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		stdErr, ok := errors.As(err)
		if !ok || !stdErr.Retryable {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}

	return lastErr
}
