package feed

import "sync"

// Recent is a fixed-capacity list kept newest-first. Entries are
// deduplicated only by the identity key, never by content.
//
// Every mutation installs a fresh slice, so a slice returned by Items is
// never modified afterwards and can be handed to renderers as is.
type Recent[T any] struct {
	mu       sync.Mutex
	capacity int
	key      func(T) string
	items    []T
}

// NewRecent returns an empty list. Capacities below 1 are raised to 1.
func NewRecent[T any](capacity int, key func(T) string) *Recent[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Recent[T]{capacity: capacity, key: key}
}

// Prepend puts items in front of the list, in the order given, and drops
// whatever falls past capacity. An existing entry with the same key as a
// new item is replaced.
func (r *Recent[T]) Prepend(items ...T) {
	if len(items) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(items))
	next := make([]T, 0, min(r.capacity, len(items)+len(r.items)))
	for _, it := range items {
		k := r.key(it)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		next = append(next, it)
	}
	for _, it := range r.items {
		if _, dup := seen[r.key(it)]; dup {
			continue
		}
		next = append(next, it)
	}
	if len(next) > r.capacity {
		next = next[:r.capacity:r.capacity]
	}
	r.items = next
}

// Remove drops the entry with the given key and reports whether it existed.
func (r *Recent[T]) Remove(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, it := range r.items {
		if r.key(it) == key {
			next := make([]T, 0, len(r.items)-1)
			next = append(next, r.items[:i]...)
			next = append(next, r.items[i+1:]...)
			r.items = next
			return true
		}
	}
	return false
}

// Items returns the current entries, newest first.
func (r *Recent[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items
}

func (r *Recent[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Recent[T]) Cap() int {
	return r.capacity
}

func (r *Recent[T]) Reset() {
	r.mu.Lock()
	r.items = nil
	r.mu.Unlock()
}
