// Package sync provides keyed locking over a bounded set of mutexes.
package sync

import (
	base "sync"
)

const pointsPerStripe = 200

// StripedLock maps an unbounded key space onto a fixed number of mutexes.
// Keys that share a stripe contend with each other, so the stripe count sets
// the trade off between memory and contention.
type StripedLock struct {
	locks []base.Mutex
	ring  *ring
}

// NewStripedLock returns a StripedLock with the given number of stripes. At
// least one stripe is always allocated.
func NewStripedLock(stripes uint) *StripedLock {
	if stripes == 0 {
		stripes = 1
	}

	return &StripedLock{
		locks: make([]base.Mutex, stripes),
		ring:  newRing(int(stripes), pointsPerStripe),
	}
}

// Get returns the mutex guarding key. The same key always maps to the same
// mutex.
func (l *StripedLock) Get(key []byte) *base.Mutex {
	return &l.locks[l.ring.stripe(key)]
}

// Do runs fn while holding the lock for key.
func (l *StripedLock) Do(key []byte, fn func()) {
	mu := l.Get(key)
	mu.Lock()
	defer mu.Unlock()

	fn()
}
