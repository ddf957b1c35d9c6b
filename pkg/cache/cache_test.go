package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_InsertWithinBudget(t *testing.T) {
	c := New[string](3, 0)

	require.NoError(t, c.Insert("A", "valueA", 1))
	require.NoError(t, c.Insert("B", "valueB", 1))
	require.NoError(t, c.Insert("C", "valueC", 1))

	assert.Equal(t, 3, c.GetWeight())
	assert.Equal(t, 3, c.GetBudget())
	assert.Equal(t, 3, c.Len())
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string](2, 0)

	require.NoError(t, c.Insert("A", "valueA", 1))
	require.NoError(t, c.Insert("B", "valueB", 1))

	// Touch A so B becomes the eviction candidate.
	_, ok := c.Retrieve("A")
	require.True(t, ok)

	require.NoError(t, c.Insert("C", "valueC", 1))
	assert.Equal(t, 2, c.GetWeight())

	_, ok = c.Retrieve("B")
	assert.False(t, ok)

	v, ok := c.Retrieve("A")
	assert.True(t, ok)
	assert.Equal(t, "valueA", v)

	v, ok = c.Retrieve("C")
	assert.True(t, ok)
	assert.Equal(t, "valueC", v)
}

func TestCache_HeavyEntryEvictsMany(t *testing.T) {
	c := New[int](4, 0)

	for i := 0; i < 4; i++ {
		require.NoError(t, c.Insert(fmt.Sprintf("k%d", i), i, 1))
	}
	require.NoError(t, c.Insert("big", 100, 3))

	assert.Equal(t, 4, c.GetWeight())
	assert.Equal(t, 2, c.Len())
	_, ok := c.Retrieve("k3")
	assert.True(t, ok)
	_, ok = c.Retrieve("k0")
	assert.False(t, ok)
}

func TestCache_InsertDuplicateRejected(t *testing.T) {
	c := New[string](2, 0)

	require.NoError(t, c.Insert("dupe", "first", 1))
	assert.Equal(t, ErrKeyExists, c.Insert("dupe", "second", 1))

	c.Upsert("dupe", "second", 1)
	v, ok := c.Retrieve("dupe")
	require.True(t, ok)
	assert.Equal(t, "second", v)
	assert.Equal(t, 1, c.GetWeight())
}

func TestCache_Expiry(t *testing.T) {
	c := New[string](10, time.Minute).(*cache[string])

	now := time.Now()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Insert("A", "valueA", 1))
	_, ok := c.Retrieve("A")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = c.Retrieve("A")
	assert.False(t, ok)
	assert.Equal(t, 0, c.GetWeight())

	require.NoError(t, c.Insert("B", "valueB", 1))
	now = now.Add(2 * time.Minute)
	assert.NoError(t, c.Insert("B", "valueB2", 1))
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := New[string](10, 0)

	require.NoError(t, c.Insert("A", "valueA", 2))
	require.NoError(t, c.Insert("B", "valueB", 3))

	c.Delete("A")
	c.Delete("missing")
	assert.Equal(t, 3, c.GetWeight())
	_, ok := c.Retrieve("A")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.GetWeight())
	assert.Equal(t, 0, c.Len())
	_, ok = c.Retrieve("B")
	assert.False(t, ok)
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int](50, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("%d-%d", worker, j%20)
				c.Upsert(key, j, 1)
				c.Retrieve(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.GetWeight(), 50)
}
