package worker

import (
	"math"
	"time"
)

// RetryPolicy bounds the attempt loop of the transfer engine
type RetryPolicy struct {
	MaxAttempts    int
	InitialDelayMs int
	MaxDelayMs     int
	Multiplier     float64
}

// DefaultRetryPolicy returns the standard policy: three attempts,
// delays starting at one second and doubling up to thirty seconds
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialDelayMs: 1000,
		MaxDelayMs:     30000,
		Multiplier:     2,
	}
}

// Backoff returns the delay to wait after the given failed attempt
// (1-based): initialDelay * multiplier^(attempt-1), capped at
// maxDelay. Deterministic, no jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.InitialDelayMs) * math.Pow(p.Multiplier, float64(attempt-1))
	if maxDelay := float64(p.MaxDelayMs); delay > maxDelay {
		delay = maxDelay
	}
	return time.Duration(delay) * time.Millisecond
}
