package mqtt3

const minRingSize = 64

// ring is a growable circular buffer. It is not safe for concurrent use;
// owners guard it with their own lock.
type ring[T any] struct {
	items []T
	head  int // next item to leave
	size  int
}

// Len returns the number of buffered items.
func (r *ring[T]) Len() int {
	return r.size
}

// push appends values, growing the buffer when needed.
func (r *ring[T]) push(values ...T) {
	if r.size+len(values) > len(r.items) {
		r.grow(r.size + len(values))
	}

	for len(values) > 0 {
		tail := (r.head + r.size) % len(r.items)
		end := len(r.items)
		if tail < r.head {
			end = r.head
		}

		n := copy(r.items[tail:end], values)
		r.size += n
		values = values[n:]
	}
}

// pop moves up to len(dst) items into dst and returns how many were moved.
func (r *ring[T]) pop(dst []T) int {
	n := 0
	for n < len(dst) && r.size > 0 {
		end := min(r.head+r.size, len(r.items))
		c := copy(dst[n:], r.items[r.head:end])

		// release references held by popped slots
		clear(r.items[r.head : r.head+c])

		r.head = (r.head + c) % len(r.items)
		r.size -= c
		n += c
	}

	if r.size == 0 {
		r.head = 0
	}
	return n
}

// grow reallocates so that at least need items fit, unwrapping the contents.
func (r *ring[T]) grow(need int) {
	size := max(len(r.items)*2, need, minRingSize)
	items := make([]T, size)

	if r.size > 0 {
		n := copy(items, r.items[r.head:min(r.head+r.size, len(r.items))])
		copy(items[n:], r.items[:r.size-n])
	}

	r.items = items
	r.head = 0
}
