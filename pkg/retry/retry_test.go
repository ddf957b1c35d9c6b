package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tunegate/tunegate-server/pkg/retry/backoff"
)

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	var calls int
	attempts, err := Retry(func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.EqualValues(t, 3, attempts)
}

func TestRetry_ReturnsLastError(t *testing.T) {
	var calls int
	attempts, err := Retry(func() error {
		calls++
		return errors.New("attempt " + string(rune('0'+calls)))
	}, Limit(3))

	assert.EqualError(t, err, "attempt 3")
	assert.EqualValues(t, 3, attempts)
}

func TestRetry_StopsAtFirstDecliningStrategy(t *testing.T) {
	slept := useFakeSleep(t)

	_, err := Retry(
		func() error { return errors.New("permanent") },
		RetriableErrors(errors.New("other")),
		Backoff(backoff.Constant(time.Second), time.Second),
	)

	assert.EqualError(t, err, "permanent")
	assert.Empty(t, *slept)
}

func TestRetrier(t *testing.T) {
	retriable := errors.New("retriable")
	r := NewRetrier(Limit(4), RetriableErrors(retriable))

	attempts, err := r.Retry(func() error { return nil })
	assert.NoError(t, err)
	assert.EqualValues(t, 1, attempts)

	attempts, err = r.Retry(func() error { return errors.New("unknown") })
	assert.Error(t, err)
	assert.EqualValues(t, 1, attempts)

	attempts, err = r.Retry(func() error { return retriable })
	assert.ErrorIs(t, err, retriable)
	assert.EqualValues(t, 4, attempts)
}

func TestRealSleep(t *testing.T) {
	start := time.Now()
	attempts, err := Retry(
		func() error { return errors.New("err") },
		Limit(2),
		Backoff(backoff.Constant(100*time.Millisecond), time.Second),
	)

	assert.Error(t, err)
	assert.EqualValues(t, 2, attempts)
	assert.True(t, time.Since(start) >= 100*time.Millisecond)
	assert.True(t, time.Since(start) < time.Second)
}
