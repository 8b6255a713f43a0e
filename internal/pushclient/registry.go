package pushclient

// registry is an ordered list of handlers keyed by a stable token.
// It is not safe for concurrent use; Client guards it with its mutex.
type registry[T any] struct {
	next    uint64
	entries []registration[T]
}

type registration[T any] struct {
	token uint64
	fn    T
}

func (r *registry[T]) add(fn T) uint64 {
	r.next++
	r.entries = append(r.entries, registration[T]{token: r.next, fn: fn})
	return r.next
}

func (r *registry[T]) remove(token uint64) {
	for i, e := range r.entries {
		if e.token == token {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return
		}
	}
}

// snapshot returns the handlers in registration order. The result is never
// mutated by later add/remove calls.
func (r *registry[T]) snapshot() []T {
	out := make([]T, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.fn
	}
	return out
}

func (r *registry[T]) clear() {
	r.entries = nil
}

func (r *registry[T]) len() int {
	return len(r.entries)
}
