package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Second)
	c.now = func() time.Time { return now }
	c.Set("k", "v")

	now = now.Add(2 * time.Second)
	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("x", "1")
	c.Set("y", "2")
	now = now.Add(2 * time.Second)
	assert.Equal(t, 2, c.CleanExpired())
	assert.Zero(t, c.Size())
}

func TestLRUDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("u1|2025-01", 1)
	c.Set("u1|2025-02", 2)
	c.Set("u10|2025-01", 3)
	c.Set("u2|2025-01", 4)

	assert.Equal(t, 2, c.DeletePrefix("u1|"))
	_, ok := c.Get("u10|2025-01")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestManagerStopIsIdempotent(t *testing.T) {
	m := NewManager()
	m.Register(NewLRUCache[int](1, time.Minute))
	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}

func TestLRUStats(t *testing.T) {
	c := NewLRUCache[int](1, time.Minute)
	assert.Zero(t, c.Stats().HitRate())

	c.Set("a", 1)
	_, _ = c.Get("a")
	_, _ = c.Get("missing")
	c.Set("b", 2)
	_, _ = c.Get("a")

	st := c.Stats()
	assert.Equal(t, Stats{Hits: 1, Misses: 2, Evictions: 1}, st)
	assert.InDelta(t, 1.0/3, st.HitRate(), 1e-9)
}
