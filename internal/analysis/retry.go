package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/replicode-ai/replicode/internal/llm"
)

// RetryPolicy retries transient provider failures with exponential backoff.
// Analysis calls are one-shot preludes to a run, so transient 429s and 5xx
// responses are worth absorbing here; the replication loop itself never
// retries model calls.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	Retryable func(error) bool

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryable retries rate limits and server-side errors.
func DefaultRetryable(err error) bool {
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return false
}

// Do runs fn until it succeeds, the attempts are exhausted, the error is not
// retryable, or the context ends. Delay doubles per attempt.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	delay := p.BaseDelay
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == attempts-1 {
			return lastErr
		}

		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
