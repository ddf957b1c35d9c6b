package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter limits operations based on a provided key.
type Limiter interface {
	Allow(key string) (bool, error)
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalRateLimiter is an in memory Limiter with a token bucket per key.
type LocalRateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*entry

	now func() time.Time
}

// NewLocalRateLimiter returns an in memory limiter allowing limit operations
// per second per key, with bursts of up to burst operations. A burst below one
// defaults to the limit.
func NewLocalRateLimiter(limit rate.Limit, burst int) *LocalRateLimiter {
	if burst < 1 {
		burst = int(limit)
		if burst < 1 {
			burst = 1
		}
	}

	return &LocalRateLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*entry),
		now:      time.Now,
	}
}

// Allow implements limiter.Allow.
func (l *LocalRateLimiter) Allow(key string) (bool, error) {
	l.mu.Lock()
	e, ok := l.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = l.now()
	l.mu.Unlock()

	return e.limiter.Allow(), nil
}

// Prune forgets keys not seen within idle, returning how many were removed.
func (l *LocalRateLimiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)

	var removed int
	for key, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *LocalRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.limiters)
}

// NoLimiter never limits operations
type NoLimiter struct {
}

// Allow implements limiter.Allow.
func (n *NoLimiter) Allow(key string) (bool, error) {
	return true, nil
}
