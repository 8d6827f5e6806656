package egress

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/jittakal/mqttpubstore/internal/errors"
)

// RetryConfig controls sink write retries.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	Jitter            bool
}

// DefaultRetryConfig returns the retry settings used when none are configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// Backoff returns the delay before retry number attempt (1-based).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	if c.InitialBackoff <= 0 {
		return 0
	}
	multiplier := c.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}

	d := float64(c.InitialBackoff)
	for range attempt - 1 {
		d *= multiplier
		if c.MaxBackoff > 0 && d >= float64(c.MaxBackoff) {
			d = float64(c.MaxBackoff)
			break
		}
	}

	// Jitter within [d/2, d)
	if c.Jitter && d >= 2 {
		d = d/2 + rand.Float64()*(d/2)
	}
	return time.Duration(d)
}

// retry calls fn until it succeeds, fails with a non-retryable error, runs out
// of attempts or ctx ends. It returns the number of attempts made and the last
// error. onRetry is called before every retry.
func retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error, onRetry func(attempt int, err error)) (int, error) {
	maxAttempts := max(cfg.MaxAttempts, 1)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return attempt, nil
		}
		if ctx.Err() != nil || attempt >= maxAttempts || !errors.IsRetryable(err) {
			return attempt, err
		}

		if onRetry != nil {
			onRetry(attempt, err)
		}

		timer := time.NewTimer(cfg.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, err
		case <-timer.C:
		}
	}
}
