package b2b

import (
	"context"
	"time"
)

const (
	retryMax       = 2
	retryBaseDelay = time.Second
)

// WithRetry runs fn up to retryMax+1 times, retrying only transient network
// failures with exponential backoff. It belongs to callers of idempotent
// list/get operations; the client itself never retries.
func WithRetry[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	var err error
	for attempt := 0; ; attempt++ {
		result, err = fn(ctx)
		if err == nil || attempt >= retryMax || !IsTransient(err) {
			return result, err
		}
		if sleepErr := sleepWithContext(ctx, retryBaseDelay<<attempt); sleepErr != nil {
			return result, err
		}
	}
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
