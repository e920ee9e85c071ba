package cache

import (
	"sync"
	"time"
)

// LocalStore is the in-process L1 tier. Implementations must be safe for
// concurrent use. Two implementations are provided: a bounded LRU
// (NewLRUStore) and an unbounded map with per-entry expiry (NewMapStore).
// The strategy is chosen at construction time, not probed at runtime.
type LocalStore interface {
	// Get returns the live value for key, or false if absent or expired.
	Get(key string) (any, bool)
	// Set stores val under key. ttl <= 0 stores without expiry.
	Set(key string, val any, ttl time.Duration)
	// Delete removes key, reporting whether it was present.
	Delete(key string) bool
	// Keys returns all non-expired keys.
	Keys() []string
	// Len returns the number of stored entries, expired included.
	Len() int
	// PurgeExpired removes entries past their expiry.
	PurgeExpired()
	// Purge removes all entries.
	Purge()
}

type localEntry struct {
	val     any
	expires time.Time // zero means no expiry
}

func (e *localEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && e.expires.Before(now)
}

type mapStore struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

var _ LocalStore = (*mapStore)(nil)

// NewMapStore returns an unbounded LocalStore backed by a plain map.
// Expired entries are dropped lazily on read and by PurgeExpired.
func NewMapStore() LocalStore {
	return &mapStore{entries: make(map[string]*localEntry)}
}

func (s *mapStore) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(s.entries, key)
		return nil, false
	}
	return e.val, true
}

func (s *mapStore) Set(key string, val any, ttl time.Duration) {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = &localEntry{val: val, expires: expires}
	s.mu.Unlock()
}

func (s *mapStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	return ok
}

func (s *mapStore) Keys() []string {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if !e.expired(now) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (s *mapStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *mapStore) PurgeExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
		}
	}
}

func (s *mapStore) Purge() {
	s.mu.Lock()
	s.entries = make(map[string]*localEntry)
	s.mu.Unlock()
}
