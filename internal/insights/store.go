package insights

import (
	"sync"
	"time"
)

const (
	// DefaultTTL is how long a computed payload stays fresh.
	DefaultTTL = 15 * time.Minute

	// inflightWindow is how long an in-flight marker is trusted. A marker
	// older than this is treated as abandoned, whatever happened to the
	// fetch that set it.
	inflightWindow = 10 * time.Second
)

// Clock supplies the current time. Injected so tests can drive expiry and
// marker aging deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// Key identifies one cached window: canonical page id + days.
type Key struct {
	PageID string
	Days   int
}

type storeEntry struct {
	payload   Payload
	expiresAt time.Time
}

// Store owns the payload cache and the in-flight table. Entries age out
// lazily at read time; there is no background sweeper. A stale entry is kept
// around as a fallback value until a fresh fetch overwrites it.
type Store struct {
	mu       sync.Mutex
	clock    Clock
	ttl      time.Duration
	entries  map[Key]storeEntry
	inflight map[Key]time.Time
}

// NewStore creates a Store. ttl <= 0 falls back to DefaultTTL, a nil clock
// to the system clock.
func NewStore(ttl time.Duration, clock Clock) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Store{
		clock:    clock,
		ttl:      ttl,
		entries:  make(map[Key]storeEntry),
		inflight: make(map[Key]time.Time),
	}
}

// Fresh returns the cached payload for key if its expiry is still in the
// future.
func (s *Store) Fresh(key Key) (Payload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || !entry.expiresAt.After(s.clock.Now()) {
		return Payload{}, false
	}
	return entry.payload, true
}

// Stale returns whatever entry exists for key, expired or not. Used as a
// fallback value while a refresh is in flight.
func (s *Store) Stale(key Key) (Payload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return Payload{}, false
	}
	return entry.payload, true
}

// Put stores payload for key with expiry = now + TTL. Only successful
// fetches call this; entries are never partially updated.
func (s *Store) Put(key Key, payload Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = storeEntry{
		payload:   payload,
		expiresAt: s.clock.Now().Add(s.ttl),
	}
}

// BeginFetch tries to claim the in-flight marker for key. If a marker
// younger than the liveness window exists, another fetch owns the key and
// (nil, false) is returned. Otherwise the marker is set to now and a release
// func is returned; the caller must run it on every exit path. The check and
// the set happen under one lock, so at most one fetch per key proceeds
// within the window.
func (s *Store) BeginFetch(key Key) (release func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if started, exists := s.inflight[key]; exists && now.Sub(started) < inflightWindow {
		return nil, false
	}

	s.inflight[key] = now
	// The release only removes the marker it set. If the fetch outlives the
	// liveness window and another caller takes over the key, the stale
	// owner's release must not clobber the new marker.
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if started, exists := s.inflight[key]; exists && started.Equal(now) {
			delete(s.inflight, key)
		}
	}, true
}

// Invalidate drops every cache entry and in-flight marker belonging to
// pageID, across all day windows. Used by the forced-refresh path.
func (s *Store) Invalidate(pageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.entries {
		if key.PageID == pageID {
			delete(s.entries, key)
		}
	}
	for key := range s.inflight {
		if key.PageID == pageID {
			delete(s.inflight, key)
		}
	}
}

// Len reports the number of cached entries. Useful in tests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
