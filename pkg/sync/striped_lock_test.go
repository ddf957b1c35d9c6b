package sync

import (
	"fmt"
	base "sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripedLock_Counters(t *testing.T) {
	const workers = 64
	const increments = 1000

	l := NewStripedLock(4)
	counts := make([]int, workers)

	start := make(chan struct{})
	var wg base.WaitGroup
	for i := 0; i < workers; i++ {
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func(worker int) {
				defer wg.Done()
				<-start

				key := []byte(fmt.Sprintf("worker%d", worker))
				for k := 0; k < increments/4; k++ {
					l.Do(key, func() { counts[worker]++ })
				}
			}(i)
		}
	}

	close(start)
	wg.Wait()

	for _, count := range counts {
		assert.Equal(t, increments, count)
	}
}

func TestStripedLock_Consistent(t *testing.T) {
	l := NewStripedLock(16)

	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("mint%d", i))
		assert.True(t, l.Get(key) == l.Get(key))
	}
}

func TestStripedLock_ZeroStripes(t *testing.T) {
	l := NewStripedLock(0)
	assert.True(t, l.Get([]byte("a")) == l.Get([]byte("b")))
}
