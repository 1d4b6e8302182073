package lru

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheEvictsOldest(t *testing.T) {
	c := New[int, []byte](3)
	for i := 0; i < 3; i++ {
		c.Add(i, []byte{byte(i)})
	}

	// touch 0 so 1 becomes the oldest
	_, ok := c.Get(0)
	assert.True(t, ok)

	c.Add(3, []byte{3})
	_, ok = c.Get(1)
	assert.False(t, ok)

	for _, k := range []int{0, 2, 3} {
		v, ok := c.Get(k)
		assert.True(t, ok, "track %d", k)
		assert.Equal(t, []byte{byte(k)}, v)
	}
	assert.Equal(t, 3, c.Len())
}

func TestCacheReplaceRemove(t *testing.T) {
	c := New[string, int](0)
	c.Add("a", 1)
	c.Add("a", 2)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	c.Add("b", 3)
	_, ok = c.Get("a")
	assert.False(t, ok, "capacity clamps to one")

	c.Remove("b")
	assert.Equal(t, 0, c.Len())

	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}
