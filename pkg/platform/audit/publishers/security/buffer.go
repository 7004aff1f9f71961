package security

import (
	"sync"

	audit "linkage/pkg/platform/audit"
)

// DefaultBufferCapacity bounds the security event backlog when no explicit
// capacity is configured.
const DefaultBufferCapacity = 10000

// RingBuffer is a fixed-capacity FIFO for security events. Writers never
// block: when the buffer is full the newest entry replaces the oldest.
// Safe for concurrent use.
type RingBuffer struct {
	mu      sync.Mutex
	slots   []audit.SecurityEvent
	start   int // index of the oldest event
	length  int
	dropped int64
}

// NewRingBuffer creates a ring buffer holding at most capacity events.
// Non-positive capacities fall back to DefaultBufferCapacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &RingBuffer{slots: make([]audit.SecurityEvent, capacity)}
}

// Enqueue adds an event, evicting the oldest entry when the buffer is full.
// It reports whether an eviction happened.
func (b *RingBuffer) Enqueue(event audit.SecurityEvent) (evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.length == len(b.slots) {
		// Full: the slot at start holds the oldest event, so writing
		// there and advancing start evicts it in one step.
		b.slots[b.start] = event
		b.start = (b.start + 1) % len(b.slots)
		b.dropped++
		return true
	}

	b.slots[(b.start+b.length)%len(b.slots)] = event
	b.length++
	return false
}

// DequeueBatch removes and returns up to n events in arrival order.
// It returns nil when the buffer is empty or n is non-positive.
func (b *RingBuffer) DequeueBatch(n int) []audit.SecurityEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.length {
		n = b.length
	}
	if n <= 0 {
		return nil
	}

	batch := make([]audit.SecurityEvent, 0, n)
	for ; n > 0; n-- {
		batch = append(batch, b.slots[b.start])
		b.slots[b.start] = audit.SecurityEvent{}
		b.start = (b.start + 1) % len(b.slots)
		b.length--
	}
	return batch
}

// Len returns the number of buffered events.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// Dropped returns how many events have been evicted since creation.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
