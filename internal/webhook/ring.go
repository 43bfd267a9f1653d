package webhook

// Ring is a fixed capacity circular buffer overwriting its oldest item. It is not safe for concurrent use.
type Ring[T any] struct {
	items []T
	start int
	size  int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Ring[T]{
		items: make([]T, capacity),
	}
}

// Push appends item and reports whether the oldest item was overwritten.
func (r *Ring[T]) Push(item T) bool {
	capacity := len(r.items)

	if r.size < capacity {
		r.items[(r.start+r.size)%capacity] = item
		r.size++

		return false
	}

	r.items[r.start] = item
	r.start = (r.start + 1) % capacity

	return true
}

func (r *Ring[T]) Len() int {
	return r.size
}

func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// Items returns a copy of the buffer content, oldest first.
func (r *Ring[T]) Items() []T {
	ret := make([]T, r.size)

	for i := 0; i < r.size; i++ {
		ret[i] = r.items[(r.start+i)%len(r.items)]
	}

	return ret
}
