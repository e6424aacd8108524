package banner

import (
	"sync"
	"time"
)

// DefaultSeenTTL is how long a sighting suppresses identical banner text.
const DefaultSeenTTL = 10 * time.Second

type seenKey struct {
	title, body string
}

// SeenSet remembers recent (title, body) pairs. Each entry is removed by its
// own timer when its TTL elapses.
type SeenSet struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[seenKey]*time.Timer
}

// NewSeenSet creates an empty set with the given TTL.
func NewSeenSet(ttl time.Duration) *SeenSet {
	if ttl <= 0 {
		ttl = DefaultSeenTTL
	}
	return &SeenSet{ttl: ttl, entries: make(map[seenKey]*time.Timer)}
}

// Add records a sighting and reports whether it is new. A pair already in
// the set is left alone; its original expiry stands.
func (s *SeenSet) Add(title, body string) bool {
	k := seenKey{title, body}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[k]; ok {
		return false
	}
	var t *time.Timer
	t = time.AfterFunc(s.ttl, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.entries[k]; ok && cur == t {
			delete(s.entries, k)
		}
	})
	s.entries[k] = t
	return true
}

// Contains reports whether the pair is currently suppressed.
func (s *SeenSet) Contains(title, body string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[seenKey{title, body}]
	return ok
}

// Len returns the number of live entries.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close cancels every pending removal and empties the set.
func (s *SeenSet) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.entries {
		t.Stop()
		delete(s.entries, k)
	}
}
