package testutil

import (
	"time"

	"github.com/pkg/errors"
)

// WaitFor polls condition every interval until it holds, failing once
// timeout has elapsed. The condition is always checked at least once.
func WaitFor(timeout, interval time.Duration, condition func() bool) error {
	if interval <= 0 || timeout < interval {
		return errors.Errorf("invalid poll: timeout %v, interval %v", timeout, interval)
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !condition() {
		if !time.Now().Before(deadline) {
			return errors.Errorf("condition not met within %v", timeout)
		}
		<-ticker.C
	}
	return nil
}
