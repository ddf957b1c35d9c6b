package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/tunegate/tunegate-server/pkg/retry/backoff"
)

// Strategy decides whether another attempt should follow a failed one.
// Strategies may block, for example to back off.
type Strategy func(attempts uint, err error) bool

// Limit caps the total number of attempts, including the first.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors retries only errors matching one of the targets.
func RetriableErrors(targets ...error) Strategy {
	return RetriableFunc(func(err error) bool {
		return matchesAny(err, targets)
	})
}

// NonRetriableErrors retries every error except those matching a target.
func NonRetriableErrors(targets ...error) Strategy {
	return RetriableFunc(func(err error) bool {
		return !matchesAny(err, targets)
	})
}

// RetriableFunc retries while isRetriable reports true.
func RetriableFunc(isRetriable func(error) bool) Strategy {
	return func(_ uint, err error) bool {
		return isRetriable(err)
	}
}

// Context stops retrying once ctx is done.
func Context(ctx context.Context) Strategy {
	return func(uint, error) bool {
		return ctx.Err() == nil
	}
}

// Backoff sleeps for the delay given by strategy, capped at maxBackoff.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return BackoffContext(context.Background(), strategy, maxBackoff)
}

// BackoffContext is Backoff with a sleep that ends early, declining further
// attempts, once ctx is done.
func BackoffContext(ctx context.Context, strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return func(attempts uint, _ error) bool {
		return sleep(ctx, capDelay(strategy(attempts), maxBackoff))
	}
}

// BackoffWithJitter is Backoff with the capped delay moved uniformly by up to
// jitter (a fraction of the delay) in either direction.
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	return func(attempts uint, _ error) bool {
		delay := float64(capDelay(strategy(attempts), maxBackoff))
		offset := (2*rand.Float64() - 1) * jitter
		return sleep(context.Background(), time.Duration(delay*(1+offset)))
	}
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func capDelay(delay, max time.Duration) time.Duration {
	if delay > max {
		return max
	}
	return delay
}

// sleep is replaced in tests. It reports false if ctx ended the sleep.
var sleep = func(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
