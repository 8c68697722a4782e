package tracker

import (
	"sync"
)

type slot struct {
	absent int
}

// Registry maps tracked game ids to slots, bounded by capacity. Insertion order is kept so
// ticks visit games oldest first.
type Registry struct {
	mu       sync.Mutex
	capacity int
	order    []string
	slots    map[string]*slot
	released map[string]struct{}
}

// NewRegistry creates a registry; capacity 0 means unlimited.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
		slots:    make(map[string]*slot),
		released: make(map[string]struct{}),
	}
}

// Tracked returns the tracked ids in the order they were taken.
func (r *Registry) Tracked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of occupied slots.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Has reports whether id occupies a slot.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.slots[id]
	return ok
}

// Full reports whether no slot is free.
func (r *Registry) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fullLocked()
}

func (r *Registry) fullLocked() bool {
	return r.capacity > 0 && len(r.order) >= r.capacity
}

// Track takes a slot for id. It fails when the registry is full, id is already tracked,
// or id was released and is still on the feed.
func (r *Registry) Track(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[id]; ok {
		return false
	}
	if _, ok := r.released[id]; ok {
		return false
	}
	if r.fullLocked() {
		return false
	}
	r.slots[id] = &slot{}
	r.order = append(r.order, id)
	return true
}

// Release frees id's slot and keeps it from being picked again while it stays on the feed.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removeLocked(id) {
		r.released[id] = struct{}{}
	}
}

func (r *Registry) removeLocked(id string) bool {
	if _, ok := r.slots[id]; !ok {
		return false
	}
	delete(r.slots, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Forget frees id's slot without remembering it, so it can be picked again.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

// IsReleased reports whether id was released and has not left the feed since.
func (r *Registry) IsReleased(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.released[id]
	return ok
}

// MarkSeen resets id's absence counter.
func (r *Registry) MarkSeen(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[id]; ok {
		s.absent = 0
	}
}

// MarkAbsent bumps and returns id's absence counter.
func (r *Registry) MarkAbsent(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return 0
	}
	s.absent++
	return s.absent
}

// PruneReleased forgets released ids that are no longer on the feed.
func (r *Registry) PruneReleased(onFeed func(id string) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.released {
		if !onFeed(id) {
			delete(r.released, id)
		}
	}
}
