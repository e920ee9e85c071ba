package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMapStoreSetGet(t *testing.T) {
	s := NewMapStore()

	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Set("key", "value", time.Minute)
	val, ok := s.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", val)
	assert.Equal(t, 1, s.Len())
}

func TestMapStoreExpiry(t *testing.T) {
	s := NewMapStore()
	s.Set("short", 1, 10*time.Millisecond)
	s.Set("forever", 2, 0)

	time.Sleep(20 * time.Millisecond)

	_, ok := s.Get("short")
	assert.False(t, ok)
	val, ok := s.Get("forever")
	assert.True(t, ok)
	assert.Equal(t, 2, val)
}

func TestMapStorePurgeExpired(t *testing.T) {
	s := NewMapStore()
	s.Set("a", 1, 5*time.Millisecond)
	s.Set("b", 2, time.Minute)

	time.Sleep(10 * time.Millisecond)
	s.PurgeExpired()

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []string{"b"}, s.Keys())
}

func TestMapStoreDelete(t *testing.T) {
	s := NewMapStore()
	s.Set("key", "value", time.Minute)
	assert.True(t, s.Delete("key"))
	assert.False(t, s.Delete("key"))
}

func TestLRUStoreEvictsOldest(t *testing.T) {
	s := NewLRUStore(2)
	s.Set("a", 1, time.Minute)
	s.Set("b", 2, time.Minute)

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := s.Get("a")
	assert.True(t, ok)

	s.Set("c", 3, time.Minute)
	assert.Equal(t, 2, s.Len())

	_, ok = s.Get("b")
	assert.False(t, ok)
	_, ok = s.Get("a")
	assert.True(t, ok)
	_, ok = s.Get("c")
	assert.True(t, ok)
}

func TestLRUStoreUpdateDoesNotGrow(t *testing.T) {
	s := NewLRUStore(2)
	s.Set("a", 1, time.Minute)
	s.Set("a", 2, time.Minute)
	s.Set("b", 3, time.Minute)

	assert.Equal(t, 2, s.Len())
	val, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, val)
}

func TestLRUStoreExpiry(t *testing.T) {
	s := NewLRUStore(10)
	s.Set("short", 1, 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	_, ok := s.Get("short")
	assert.False(t, ok)

	s.Set("a", 1, 5*time.Millisecond)
	s.Set("b", 2, time.Minute)
	time.Sleep(10 * time.Millisecond)
	s.PurgeExpired()
	assert.Equal(t, []string{"b"}, s.Keys())
}

func TestLRUStorePurge(t *testing.T) {
	s := NewLRUStore(10)
	s.Set("a", 1, time.Minute)
	s.Set("b", 2, time.Minute)
	s.Purge()
	assert.Equal(t, 0, s.Len())
	_, ok := s.Get("a")
	assert.False(t, ok)
}

func TestLRUStorePanicsOnBadCapacity(t *testing.T) {
	assert.Panics(t, func() {
		NewLRUStore(0)
	})
}
