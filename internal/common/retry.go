package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrRateLimit indicates that an API rate limit has been exceeded.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrMaxRetries indicates that all retry attempts have been exhausted.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// RetryOptions configures retry behavior for network collaborators. Zero
// fields take the defaults of 3 attempts, 100ms initial delay, 30s maximum
// delay and a doubling multiplier.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 100 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2.0
	}
	return o
}

// RetryableError marks whether a failed call may be repeated. Errors that are
// not wrapped in a RetryableError are retried.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// backoff yields exponentially growing delays capped at the maximum.
type backoff struct {
	next time.Duration
	opts RetryOptions
}

func (b *backoff) delay(err error) time.Duration {
	if errors.Is(err, ErrRateLimit) || errors.Is(err, ErrPlaidRateLimit) {
		return b.opts.MaxDelay
	}
	d := b.next
	b.next = min(time.Duration(float64(b.next)*b.opts.Multiplier), b.opts.MaxDelay)
	return d
}

// WithRetry runs operation until it succeeds, returns a permanent error, the
// attempts run out or ctx is done.
func WithRetry(ctx context.Context, operation func() error, opts RetryOptions) error {
	opts = opts.withDefaults()
	b := &backoff{next: opts.InitialDelay, opts: opts}

	for attempt := 1; ; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		var marked *RetryableError
		if errors.As(err, &marked) && !marked.Retryable {
			return err
		}
		if attempt >= opts.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, attempt, err)
		}

		wait := b.delay(err)
		slog.Warn("Operation failed, retrying",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"delay", wait,
			"error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
