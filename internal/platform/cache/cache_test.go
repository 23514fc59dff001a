package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache_GetSet(t *testing.T) {
	c := New[int](4, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("a", 2)
	v, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestTTLCache_Expiry(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := New[string](4, 5*time.Second)
	c.now = func() time.Time { return clock }

	c.Set("k", "v")

	clock = clock.Add(4 * time.Second)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	clock = clock.Add(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry should be removed on access")
}

func TestTTLCache_CapacityEviction(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := New[int](2, time.Minute)
	c.now = func() time.Time { return clock }

	c.Set("first", 1)
	clock = clock.Add(time.Second)
	c.Set("second", 2)
	clock = clock.Add(time.Second)
	c.Set("third", 3)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("first")
	assert.False(t, ok, "entry closest to expiry should have been evicted")
	_, ok = c.Get("second")
	assert.True(t, ok)
	_, ok = c.Get("third")
	assert.True(t, ok)
}

func TestTTLCache_Delete(t *testing.T) {
	c := New[int](4, time.Minute)
	c.Set("k", 1)
	c.Delete("k")

	_, ok := c.Get("k")
	assert.False(t, ok)
	c.Delete("k") // deleting an absent key is a no-op
}
