package loom

import (
	"math"
	"time"
)

// RetryPolicy controls the exponential backoff applied by the fan-out
// coordinator between attempts of a failing call. The attempt budget itself
// lives on the ActivityCall so that it is recorded in history.
type RetryPolicy struct {
	InitialInterval time.Duration
	BackoffFactor   float64
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns a sensible default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: time.Second,
		BackoffFactor:   2.0,
		MaxInterval:     30 * time.Second,
	}
}

// backoff returns the delay before the given attempt number (1-based, so the
// first retry is attempt 2). A zero InitialInterval disables waiting, which
// tests use to avoid stepping fake clocks through retries.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.InitialInterval <= 0 || attempt < 2 {
		return 0
	}

	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}

	d := time.Duration(float64(p.InitialInterval) * math.Pow(factor, float64(attempt-2)))
	if p.MaxInterval > 0 && d > p.MaxInterval {
		d = p.MaxInterval
	}

	return d
}
