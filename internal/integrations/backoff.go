package integrations

import (
	"context"
	"errors"
	"time"
)

// Backoff retries rate-limited calls with exponentially growing delays.
type Backoff struct {
	Base        time.Duration
	MaxAttempts int

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, MaxAttempts: 3}
}

// Delay is the wait before retry number attempt, counted from zero.
func (b Backoff) Delay(attempt int) time.Duration {
	return b.Base * time.Duration(1<<attempt)
}

// Do calls fn until it succeeds, fails with something other than a rate
// limit, or runs out of attempts.
func (b Backoff) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := b.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := b.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !errors.Is(err, ErrRateLimited) || attempt == attempts-1 {
			return err
		}
		if serr := sleep(ctx, b.Delay(attempt)); serr != nil {
			return serr
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
