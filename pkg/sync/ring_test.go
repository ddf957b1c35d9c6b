package sync

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_Distribution(t *testing.T) {
	const stripes = 8
	const keys = 10000

	r := newRing(stripes, pointsPerStripe)

	counts := make([]int, stripes)
	for i := 0; i < keys; i++ {
		stripe := r.stripe([]byte(fmt.Sprintf("key%d", i)))
		require.True(t, stripe >= 0 && stripe < stripes)
		counts[stripe]++
	}

	// Every stripe gets a reasonable share of the key space.
	for _, count := range counts {
		assert.True(t, count > keys/stripes/3, "count %d", count)
	}
}

func TestRing_Stable(t *testing.T) {
	a := newRing(4, 10)
	b := newRing(4, 10)

	for i := 0; i < 1000; i++ {
		key := []byte(fmt.Sprintf("key%d", i))
		assert.Equal(t, a.stripe(key), b.stripe(key))
	}
}
