package cache

import (
	"container/list"
	"sync"
	"time"
)

type lruEntry struct {
	key     string
	val     any
	expires time.Time
}

func (e *lruEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && e.expires.Before(now)
}

type lruStore struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	index    map[string]*list.Element
}

var _ LocalStore = (*lruStore)(nil)

// NewLRUStore returns a bounded LocalStore that evicts the least recently
// used entry once capacity is exceeded. Panics if capacity < 1.
func NewLRUStore(capacity int) LocalStore {
	if capacity < 1 {
		panic("cache: NewLRUStore requires capacity >= 1")
	}
	return &lruStore{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

func (s *lruStore) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.index[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*lruEntry)
	if e.expired(time.Now()) {
		s.remove(el)
		return nil, false
	}
	s.order.MoveToFront(el)
	return e.val, true
}

func (s *lruStore) Set(key string, val any, ttl time.Duration) {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.index[key]; ok {
		e := el.Value.(*lruEntry)
		e.val = val
		e.expires = expires
		s.order.MoveToFront(el)
		return
	}
	s.index[key] = s.order.PushFront(&lruEntry{key: key, val: val, expires: expires})
	if s.order.Len() > s.capacity {
		if oldest := s.order.Back(); oldest != nil {
			s.remove(oldest)
		}
	}
}

func (s *lruStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.index[key]
	if ok {
		s.remove(el)
	}
	return ok
}

func (s *lruStore) Keys() []string {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.index))
	for el := s.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*lruEntry)
		if !e.expired(now) {
			keys = append(keys, e.key)
		}
	}
	return keys
}

func (s *lruStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *lruStore) PurgeExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var next *list.Element
	for el := s.order.Front(); el != nil; el = next {
		next = el.Next()
		if el.Value.(*lruEntry).expired(now) {
			s.remove(el)
		}
	}
}

func (s *lruStore) Purge() {
	s.mu.Lock()
	s.order.Init()
	s.index = make(map[string]*list.Element)
	s.mu.Unlock()
}

// remove requires s.mu to be held.
func (s *lruStore) remove(el *list.Element) {
	s.order.Remove(el)
	delete(s.index, el.Value.(*lruEntry).key)
}
