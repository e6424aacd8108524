package poller

import "sync"

// KnownSet is the bounded set of record ids the poller has already seen.
type KnownSet struct {
	ceiling int

	mu  sync.Mutex
	ids map[string]struct{}
}

// NewKnownSet creates an empty set that never holds more than ceiling ids.
func NewKnownSet(ceiling int) *KnownSet {
	return &KnownSet{ceiling: ceiling, ids: make(map[string]struct{})}
}

// Diff inserts every id of a query result and returns the ones that were
// not yet known, in query order. Membership update and trim happen under
// one lock so concurrent callers never see a half-applied cycle.
func (k *KnownSet) Diff(current []string) []string {
	k.mu.Lock()
	defer k.mu.Unlock()

	var fresh []string
	for _, id := range current {
		if _, ok := k.ids[id]; ok {
			continue
		}
		k.ids[id] = struct{}{}
		fresh = append(fresh, id)
	}
	k.trimLocked(current)
	return fresh
}

// Seed inserts ids without reporting which were new.
func (k *KnownSet) Seed(ids []string) {
	k.Diff(ids)
}

// Contains reports membership.
func (k *KnownSet) Contains(id string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.ids[id]
	return ok
}

// Len returns the number of ids held.
func (k *KnownSet) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.ids)
}

// Clear empties the set.
func (k *KnownSet) Clear() {
	k.mu.Lock()
	k.ids = make(map[string]struct{})
	k.mu.Unlock()
}

// trimLocked cuts the set to half the ceiling once it exceeds the ceiling.
// Which ids go is arbitrary, except that ids of the latest query result are
// kept: dropping one of those would make the next cycle report it again.
func (k *KnownSet) trimLocked(current []string) {
	if k.ceiling <= 0 || len(k.ids) <= k.ceiling {
		return
	}
	keep := make(map[string]struct{}, len(current))
	for _, id := range current {
		keep[id] = struct{}{}
	}
	target := k.ceiling / 2
	for id := range k.ids {
		if len(k.ids) <= target {
			break
		}
		if _, ok := keep[id]; ok {
			continue
		}
		delete(k.ids, id)
	}
}
