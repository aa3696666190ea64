package security

import (
	"sync"

	audit "parapet/pkg/platform/audit"
)

const defaultCapacity = 10000

// RingBuffer holds pending security events in arrival order. It never grows:
// once full, writing evicts the oldest entry. All methods are safe for
// concurrent use.
//
// Only the write cursor and the live count are tracked; the read position is
// derived as (next - size) mod capacity, which keeps every transition a
// one-field update.
type RingBuffer struct {
	mu      sync.Mutex
	slots   []audit.SecurityEvent
	next    int // slot the next write lands in
	size    int
	dropped int64
}

// NewRingBuffer allocates a buffer of the given capacity. Non-positive
// capacities fall back to the default.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &RingBuffer{slots: make([]audit.SecurityEvent, capacity)}
}

// oldest is the index of the least recent live event. Callers hold b.mu.
func (b *RingBuffer) oldest() int {
	n := len(b.slots)
	return (b.next - b.size + n) % n
}

// TryEnqueue appends the event if there is room, reporting whether it fit.
func (b *RingBuffer) TryEnqueue(event audit.SecurityEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == len(b.slots) {
		return false
	}
	b.slots[b.next] = event
	b.next = (b.next + 1) % len(b.slots)
	b.size++
	return true
}

// Enqueue appends the event unconditionally. At capacity the write lands on
// the oldest slot, which counts as a drop.
func (b *RingBuffer) Enqueue(event audit.SecurityEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	full := b.size == len(b.slots)
	b.slots[b.next] = event
	b.next = (b.next + 1) % len(b.slots)
	if full {
		b.dropped++
	} else {
		b.size++
	}
}

// DropOldest discards the least recent event, reporting whether one existed.
func (b *RingBuffer) DropOldest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return false
	}
	b.size--
	b.dropped++
	return true
}

// DequeueBatch removes and returns up to n events, oldest first.
func (b *RingBuffer) DequeueBatch(n int) []audit.SecurityEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return nil
	}

	batch := make([]audit.SecurityEvent, 0, n)
	idx := b.oldest()
	for range n {
		batch = append(batch, b.slots[idx])
		idx = (idx + 1) % len(b.slots)
	}
	b.size -= n
	return batch
}

// Len reports how many events are waiting.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Dropped reports how many events have been evicted or discarded so far.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
