// Package backoff computes retry delays from attempt counts.
package backoff

import (
	"math"
	"time"
)

// Strategy maps an attempt number, starting at 1, to a delay.
type Strategy func(attempts uint) time.Duration

// Constant waits interval after every attempt.
func Constant(interval time.Duration) Strategy {
	return func(uint) time.Duration {
		return interval
	}
}

// Linear waits baseDelay times the attempt number: 1s, 2s, 3s, ...
func Linear(baseDelay time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		return clamp(float64(baseDelay) * float64(attempts))
	}
}

// Exponential waits baseDelay * base^(attempts-1). Exponential(time.Second, 3)
// gives 1s, 3s, 9s, ...
func Exponential(baseDelay time.Duration, base float64) Strategy {
	return func(attempts uint) time.Duration {
		if attempts == 0 {
			attempts = 1
		}
		return clamp(float64(baseDelay) * math.Pow(base, float64(attempts-1)))
	}
}

// BinaryExponential doubles the delay after each attempt.
func BinaryExponential(baseDelay time.Duration) Strategy {
	return Exponential(baseDelay, 2)
}

// clamp converts a delay to a Duration, saturating on overflow.
func clamp(delay float64) time.Duration {
	if delay >= math.MaxInt64 || math.IsInf(delay, 1) || math.IsNaN(delay) {
		return math.MaxInt64
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}
