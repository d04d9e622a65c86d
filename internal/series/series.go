// Package series provides a fixed-capacity, insertion-ordered buffer per key.
// It backs both the per-asset reading history and the per-crew position track.
package series

import "sync"

// DefaultCapacity bounds each key's buffer unless overridden at construction.
const DefaultCapacity = 5000

// ring is a circular buffer. Once full, each append overwrites the oldest
// entry in place.
type ring[T any] struct {
	items []T
	start int
	count int
}

func (r *ring[T]) append(capacity int, item T) {
	if r.items == nil {
		r.items = make([]T, capacity)
	}
	if r.count < capacity {
		r.items[(r.start+r.count)%capacity] = item
		r.count++
		return
	}
	r.items[r.start] = item
	r.start = (r.start + 1) % capacity
}

func (r *ring[T]) snapshot() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.items[(r.start+i)%len(r.items)]
	}
	return out
}

// Bounded keeps one bounded buffer per key. Appends to different keys do not
// contend on buffer contents; all access is serialized by a single lock,
// which is sufficient at this scale.
type Bounded[K comparable, T any] struct {
	mu       sync.RWMutex
	capacity int
	buffers  map[K]*ring[T]
}

// New constructs a store with the given per-key capacity. Non-positive
// capacities fall back to DefaultCapacity.
func New[K comparable, T any](capacity int) *Bounded[K, T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bounded[K, T]{
		capacity: capacity,
		buffers:  make(map[K]*ring[T]),
	}
}

// Append stores item under key, evicting that key's oldest entry when the
// buffer is at capacity. O(1).
func (b *Bounded[K, T]) Append(key K, item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.buffers[key]
	if !ok {
		buf = &ring[T]{}
		b.buffers[key] = buf
	}
	buf.append(b.capacity, item)
}

// Get returns a copy of key's buffer in insertion order, oldest first.
// Unknown keys yield an empty slice.
func (b *Bounded[K, T]) Get(key K) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	buf, ok := b.buffers[key]
	if !ok {
		return []T{}
	}
	return buf.snapshot()
}

// Len reports the number of entries currently stored under key.
func (b *Bounded[K, T]) Len(key K) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	buf, ok := b.buffers[key]
	if !ok {
		return 0
	}
	return buf.count
}
