package ingest

import (
	"sync"

	"fieldops-gateway/internal/model"
)

const defaultAdvisoryCapacity = 500

// AdvisoryLog retains the most recent advisories in memory. It is a
// transient window for dashboards, not a durable audit store.
type AdvisoryLog struct {
	mu       sync.RWMutex
	buffer   []model.Advisory
	capacity int
}

// NewAdvisoryLog constructs a log bounded to capacity entries.
func NewAdvisoryLog(capacity int) *AdvisoryLog {
	if capacity <= 0 {
		capacity = defaultAdvisoryCapacity
	}
	return &AdvisoryLog{
		buffer:   make([]model.Advisory, 0, capacity),
		capacity: capacity,
	}
}

// Add appends an advisory, evicting the oldest entry when full.
func (l *AdvisoryLog) Add(a model.Advisory) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buffer) >= l.capacity {
		l.buffer = l.buffer[1:]
	}
	l.buffer = append(l.buffer, a)
}

// Recent returns up to count advisories, oldest first. A non-positive count
// returns everything retained.
func (l *AdvisoryLog) Recent(count int) []model.Advisory {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if count <= 0 || count > len(l.buffer) {
		count = len(l.buffer)
	}
	out := make([]model.Advisory, count)
	copy(out, l.buffer[len(l.buffer)-count:])
	return out
}
