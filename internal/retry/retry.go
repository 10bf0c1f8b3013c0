package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

type Class int

const (
	Retryable Class = iota
	Fatal
)

type Policy struct {
	MaxAttempts int           // total attempts, e.g. 3
	BaseDelay   time.Duration // e.g. 5s
	MaxDelay    time.Duration // backoff cap; ignored when Fixed
	Jitter      time.Duration // e.g. 100ms (<= BaseDelay recommended)

	// Fixed keeps the wait at BaseDelay between attempts instead of
	// exponential backoff. Transaction resubmission uses this: the point of
	// the wait is to let a nonce race or mempool hiccup clear, not to back
	// off a saturated service.
	Fixed bool

	// Classify decides whether an error is retryable.
	// If nil, default: retry on any non-nil error.
	Classify func(error) Class

	// OnRetry is optional hook for logging/metrics.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Do runs fn until it succeeds, fails fatally, or attempts are exhausted.
// It returns the number of retries consumed (0 on first-attempt success)
// alongside the final error.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) (retries int, err error) {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}

	classify := p.Classify
	if classify == nil {
		classify = func(err error) Class {
			if err == nil {
				return Fatal // unused
			}
			return Retryable
		}
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		err := fn(ctx)
		if err == nil {
			return attempt - 1, nil
		}
		lastErr = err

		if classify(err) == Fatal {
			return attempt - 1, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		wait := p.BaseDelay
		if !p.Fixed {
			// exponential backoff with cap
			wait = p.BaseDelay << (attempt - 1)
			if wait > p.MaxDelay {
				wait = p.MaxDelay
			}
		}
		if p.Jitter > 0 {
			wait += time.Duration(rand.Int63n(int64(p.Jitter)))
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt - 1, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = errors.New("retry: exhausted with no error (unexpected)")
	}
	return p.MaxAttempts - 1, lastErr
}
