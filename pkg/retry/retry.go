package retry

import (
	"context"
	"time"
)

// Backoff selects how the delay grows between attempts.
type Backoff string

const (
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

// Options controls retry behavior.
type Options struct {
	Attempts int
	Delay    time.Duration
	Backoff  Backoff
	MaxDelay time.Duration
}

// DefaultOptions returns the default retry policy.
func DefaultOptions() Options {
	return Options{
		Attempts: 3,
		Delay:    500 * time.Millisecond,
		Backoff:  BackoffLinear,
		MaxDelay: 30 * time.Second,
	}
}

// Do runs fn up to opts.Attempts times, sleeping between failures.
// It returns the last error if all attempts fail, or the context error
// if the context is cancelled while waiting.
func Do(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == opts.Attempts {
			break
		}

		wait := opts.Delay
		if opts.Backoff == BackoffExponential {
			wait = opts.Delay << (attempt - 1)
		}
		if wait > opts.MaxDelay {
			wait = opts.MaxDelay
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
