package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU[string, int](2, nil)

	c.Set("a", 1)
	c.Set("b", 2)
	_, ok := c.Get("a") // a is now most recent
	require.True(t, ok)

	c.Set("c", 3)
	_, ok = c.Get("b")
	assert.False(t, ok, "b should be evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_Cost(t *testing.T) {
	c := NewLRU[string, []byte](10, func(b []byte) int64 { return int64(len(b)) })

	c.Set("big", make([]byte, 11))
	_, ok := c.Get("big")
	assert.False(t, ok, "item > capacity should not be cached")

	c.Set("k", make([]byte, 4))
	assert.Equal(t, int64(4), c.Size())

	c.Set("k", make([]byte, 8))
	assert.Equal(t, int64(8), c.Size())

	c.Set("j", make([]byte, 5))
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, int64(5), c.Size())

	c.Set("j", make([]byte, 20))
	assert.Equal(t, 0, c.Len(), "oversized update drops the entry")
	assert.Equal(t, int64(0), c.Size())
}

func TestLRU_RemoveInvalidate(t *testing.T) {
	c := NewLRU[string, int](10, nil)
	for i := range 5 {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	assert.True(t, c.Remove("k0"))
	assert.False(t, c.Remove("k0"))

	c.Invalidate(func(k string) bool { return k == "k1" || k == "k2" })
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(2), c.Size())
}

func TestLRU_Disabled(t *testing.T) {
	c := NewLRU[string, int](0, nil)
	c.Set("a", 1)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestLRU_Stats(t *testing.T) {
	c := NewLRU[int, int](4, nil)
	c.Set(1, 1)
	c.Get(1)
	c.Get(2)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[int, int](16, nil)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				c.Set(g*100+i, i)
				c.Get(i)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 16)
}
