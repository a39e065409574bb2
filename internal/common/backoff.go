package common

import (
	"context"
	"time"
)

// BackoffConfig defines bounded exponential backoff behavior. Used by
// the tracker's poll loop for transient provider errors; kept here so
// retry timing lives in one place instead of per-call-site sleeps.
type BackoffConfig struct {
	// MaxRetries is the maximum number of retry attempts
	MaxRetries int

	// InitialBackoff is the wait time before the first retry
	InitialBackoff time.Duration

	// MaxBackoff is the maximum wait time between retries
	MaxBackoff time.Duration

	// Multiplier is applied to the backoff on each retry
	Multiplier float64
}

// Default retry constants for transient provider errors.
const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 2 * time.Second
	DefaultMaxBackoff     = 30 * time.Second
	DefaultMultiplier     = 2.0
)

// NewDefaultBackoffConfig returns a BackoffConfig with sensible
// defaults for transient search-provider errors.
func NewDefaultBackoffConfig() *BackoffConfig {
	return &BackoffConfig{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		Multiplier:     DefaultMultiplier,
	}
}

// Delay computes the backoff duration for a given zero-based attempt,
// capped at MaxBackoff.
func (c *BackoffConfig) Delay(attempt int) time.Duration {
	d := c.InitialBackoff
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * c.Multiplier)
		if d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	if d > c.MaxBackoff {
		return c.MaxBackoff
	}
	return d
}

// Sleep waits for the attempt's backoff duration or until the context
// is cancelled, whichever comes first.
func (c *BackoffConfig) Sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(c.Delay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
