package etsy

import "time"

// RetryConfig bounds the exponential backoff applied to transient API and
// token endpoint failures.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns the standard policy: 5 attempts, delays of
// 1s, 2s, 4s, 8s doubling up to a 60s cap.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Second,
		MaxDelay:    60 * time.Second,
	}
}

// Delay returns the backoff before retry number attempt (0-based: the delay
// after the first failed try is Delay(0)).
func (c RetryConfig) Delay(attempt int) time.Duration {
	d := c.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}
