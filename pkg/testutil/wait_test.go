package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitFor(t *testing.T) {
	require.NoError(t, WaitFor(50*time.Millisecond, 10*time.Millisecond, func() bool { return true }))

	var calls int
	require.NoError(t, WaitFor(time.Second, 5*time.Millisecond, func() bool {
		calls++
		return calls == 3
	}))
	assert.Equal(t, 3, calls)

	start := time.Now()
	require.Error(t, WaitFor(50*time.Millisecond, 10*time.Millisecond, func() bool { return false }))
	assert.True(t, time.Since(start) >= 50*time.Millisecond)
}

func TestWaitFor_InvalidInterval(t *testing.T) {
	assert.Error(t, WaitFor(50*time.Millisecond, 100*time.Millisecond, func() bool { return true }))
	assert.Error(t, WaitFor(50*time.Millisecond, 0, func() bool { return true }))
}
