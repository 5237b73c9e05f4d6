package frame

import "sync"

// Ring keeps the most recent frames with a fixed capacity.
type Ring struct {
	mu       sync.RWMutex
	data     []Frame
	capacity int
	size     int
	head     int // next write position
	tail     int // oldest element
}

// NewRing creates a ring holding up to capacity frames.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{
		data:     make([]Frame, capacity),
		capacity: capacity,
	}
}

// HandleFrame adds fr, overwriting the oldest frame when full.
func (r *Ring) HandleFrame(fr Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[r.head] = fr
	r.head = (r.head + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	} else {
		r.tail = (r.tail + 1) % r.capacity
	}
}

// Latest returns the newest frame.
func (r *Ring) Latest() (Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.size == 0 {
		return Frame{}, false
	}
	return r.data[(r.head-1+r.capacity)%r.capacity], true
}

// Recent returns up to n frames, newest first.
func (r *Ring) Recent(n int) []Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n = max(0, min(n, r.size))
	out := make([]Frame, n)
	pos := (r.head - 1 + r.capacity) % r.capacity
	for i := 0; i < n; i++ {
		out[i] = r.data[pos]
		pos = (pos - 1 + r.capacity) % r.capacity
	}
	return out
}

// All returns every retained frame in chronological order.
func (r *Ring) All() []Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.size == 0 {
		return nil
	}
	out := make([]Frame, r.size)
	cur := r.tail
	for i := 0; i < r.size; i++ {
		out[i] = r.data[cur]
		cur = (cur + 1) % r.capacity
	}
	return out
}

// Len returns the number of retained frames.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Clear empties the ring.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.data)
	r.size, r.head, r.tail = 0, 0, 0
}
