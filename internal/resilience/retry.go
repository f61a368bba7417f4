// Package resilience retries operations that fail for passing reasons.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior with exponential backoff and jitter.
type Policy struct {
	// Name labels retry log lines.
	Name string

	// Attempts is the total number of tries, including the first.
	// Default: 3.
	Attempts int

	// Backoff is the delay before the first retry, doubled after each
	// further failure up to MaxBackoff. Defaults: 250ms and 5s.
	Backoff    time.Duration
	MaxBackoff time.Duration

	// Jitter is the +/- fraction applied to each delay. Default: 0.
	Jitter float64

	// Retryable decides whether an error is worth another try.
	// Default: IsTransient.
	Retryable func(err error) bool
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Backoff <= 0 {
		p.Backoff = 250 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 5 * time.Second
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// Do runs fn until it succeeds, returns a non-retryable error, runs out
// of attempts, or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := Retry(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Retry is Do for functions that return a value.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := range p.Attempts {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !p.Retryable(err) || attempt == p.Attempts-1 {
			break
		}

		delay := backoff(attempt, p)
		zap.L().Warn("resilience: retrying",
			zap.String("operation", p.Name),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func backoff(attempt int, p Policy) time.Duration {
	delay := float64(p.Backoff) * math.Pow(2, float64(attempt))
	delay = min(delay, float64(p.MaxBackoff))
	if p.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * p.Jitter
	}
	return time.Duration(max(delay, 0))
}
