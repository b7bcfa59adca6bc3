package ingest

// Ring is a fixed-capacity FIFO. Pushing onto a full ring evicts the oldest
// element. It is not safe for concurrent use; Source guards it.
type Ring[T any] struct {
	items []T
	head  int // index of the oldest element
	size  int
}

// NewRing returns an empty ring. Capacities below one are raised to one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends v and reports whether an element was evicted to make room.
func (r *Ring[T]) Push(v T) bool {
	if r.size < len(r.items) {
		r.items[(r.head+r.size)%len(r.items)] = v
		r.size++
		return false
	}
	r.items[r.head] = v
	r.head = (r.head + 1) % len(r.items)
	return true
}

// Last returns the newest element.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.items[(r.head+r.size-1)%len(r.items)], true
}

// Snapshot copies the contents, oldest first.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, r.size)
	for i := range out {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}
	return out
}

func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head, r.size = 0, 0
}

func (r *Ring[T]) Len() int { return r.size }
func (r *Ring[T]) Cap() int { return len(r.items) }
