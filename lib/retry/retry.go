// Package retry provides the bounded retry policy used for outbound
// Telegram calls: a few attempts with a jittered pre-call delay and a
// fixed pause between failed attempts.
package retry

import (
	"context"
	"math/rand"
	"time"
)

type Policy struct {
	Attempts   int
	JitterMin  time.Duration // random delay before every attempt
	JitterMax  time.Duration
	RetryDelay time.Duration // pause between failed attempts
	// Terminal reports errors that must not be retried.
	Terminal func(err error) bool
}

// Do runs fn under the policy. Terminal errors are returned
// immediately; otherwise the last error is returned once attempts are
// exhausted. Delays respect context cancellation.
func Do(ctx context.Context, p Policy, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.RetryDelay); err != nil {
				return err
			}
		}
		if err := sleep(ctx, jitter(p.JitterMin, p.JitterMax)); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.Terminal != nil && p.Terminal(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
