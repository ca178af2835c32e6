package cache

import (
	"sync"
	"time"
)

const (
	// DefaultTTL is the fallback TTL when the store is constructed without one.
	DefaultTTL = 5 * time.Minute

	// DefaultCapacity is the fallback entry capacity.
	DefaultCapacity = 512

	// cleanupCeiling bounds the number of tail entries inspected by the
	// amortized expiry pass that runs before each insert.
	cleanupCeiling = 16
)

// node is an intrusive doubly linked list element owned by the store.
// Head is most-recently-used, tail is least-recently-used.
type node struct {
	key     string
	payload []byte

	prev *node
	next *node

	// storedAt is refreshed on every Set for the same key. Reads promote
	// the node but do not touch it.
	storedAt time.Time
}

// Store is a bounded in-memory payload cache with LRU eviction and TTL expiry.
//
// All state is guarded by a single mutex; the recency list is never exposed
// outside the store. Reads and writes both count as use: Get and Set promote
// the entry to most-recently-used. TTL and capacity are independent
// constraints.
type Store struct {
	mu   sync.Mutex
	m    map[string]*node
	head *node // MRU
	tail *node // LRU

	capacity int
	ttl      time.Duration

	// now is replaceable in tests.
	now func() time.Time
}

// NewStore creates a store with the given entry capacity and TTL.
// Non-positive values fall back to DefaultCapacity / DefaultTTL.
func NewStore(capacity int, ttl time.Duration) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		m:        make(map[string]*node, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the payload for key and promotes the entry to most-recently-used.
// An entry whose age has reached the TTL is removed and reported as a miss.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[key]
	if !ok {
		MemoryMisses.Inc()
		return nil, false
	}

	if s.expired(n) {
		s.removeNode(n)
		MemoryExpirations.Inc()
		MemoryMisses.Inc()
		return nil, false
	}

	s.moveToFront(n)
	MemoryHits.Inc()
	return n.payload, true
}

// Set inserts or replaces the payload for key and promotes the entry to
// most-recently-used. The entry timestamp is refreshed on replacement.
//
// Before a new key is admitted, a bounded window at the least-recently-used
// end is scanned for expired entries; if the store is still at capacity after
// that, the least-recently-used entry is evicted.
func (s *Store) Set(key string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.m[key]; ok {
		n.payload = payload
		n.storedAt = s.now()
		s.moveToFront(n)
		return
	}

	s.cleanupTailLocked()

	if len(s.m) >= s.capacity && s.tail != nil {
		s.removeNode(s.tail)
		MemoryEvictions.Inc()
	}

	n := &node{key: key, payload: payload, storedAt: s.now()}
	s.m[key] = n
	s.pushFront(n)
	MemoryEntries.Set(float64(len(s.m)))
}

// Remove deletes the entry for key if present.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.m[key]; ok {
		s.removeNode(n)
	}
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m = make(map[string]*node, s.capacity)
	s.head = nil
	s.tail = nil
	MemoryEntries.Set(0)
}

// SweepExpired removes every expired entry and returns how many were removed.
// Intended for periodic maintenance, not the request path.
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for n := s.tail; n != nil; {
		prev := n.prev
		if s.expired(n) {
			s.removeNode(n)
			MemoryExpirations.Inc()
			removed++
		}
		n = prev
	}
	return removed
}

// Len returns the number of resident entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// expired reports whether n's age has reached the TTL. Caller holds mu.
func (s *Store) expired(n *node) bool {
	return s.now().Sub(n.storedAt) >= s.ttl
}

// cleanupTailLocked scans a bounded window from the LRU end and removes any
// expired entries found there. The window is the smaller of cleanupCeiling and
// a quarter of the current size, which keeps the per-insert cost O(window).
// Caller holds mu.
func (s *Store) cleanupTailLocked() {
	window := len(s.m) / 4
	if window > cleanupCeiling {
		window = cleanupCeiling
	}
	n := s.tail
	for i := 0; i < window && n != nil; i++ {
		prev := n.prev
		if s.expired(n) {
			s.removeNode(n)
			MemoryExpirations.Inc()
		}
		n = prev
	}
}

// pushFront inserts n at MRU. Caller holds mu.
func (s *Store) pushFront(n *node) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}

// moveToFront promotes n to MRU. Caller holds mu.
func (s *Store) moveToFront(n *node) {
	if s.head == n {
		return
	}
	s.unlink(n)
	s.pushFront(n)
}

// unlink detaches n from the list without touching the map. Caller holds mu.
func (s *Store) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		s.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		s.tail = n.prev
	}
	n.prev = nil
	n.next = nil
}

// removeNode unlinks n and deletes it from the map. Caller holds mu.
func (s *Store) removeNode(n *node) {
	s.unlink(n)
	delete(s.m, n.key)
	MemoryEntries.Set(float64(len(s.m)))
}
