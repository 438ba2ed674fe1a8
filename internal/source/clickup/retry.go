package clickup

import (
	"context"
	"fmt"
	"time"
)

// retryPolicy retries an operation with exponential backoff. A retryable
// predicate decides which errors are transient; errors carrying an explicit
// wait hint (rate-limit Retry-After) override the computed backoff.
type retryPolicy struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	retryable      func(error) bool
	waitHint       func(error) (time.Duration, bool)
}

// do runs op until it succeeds, returns a non-retryable error, or the attempt
// budget is exhausted.
func (p retryPolicy) do(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if p.retryable != nil && !p.retryable(err) {
			return err
		}
		if attempt == p.maxAttempts {
			break
		}

		wait := p.backoff(attempt)
		if p.waitHint != nil {
			if hint, ok := p.waitHint(err); ok {
				wait = hint
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("after %d attempts: %w", p.maxAttempts, err)
}

func (p retryPolicy) backoff(attempt int) time.Duration {
	backoff := p.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > p.maxBackoff {
		backoff = p.maxBackoff
	}
	return backoff
}
