// Package container implements container data structures.
package container

import (
	"sync"
	"sync/atomic"
)

const (
	// segmentBits determines the size of each segment.
	// 10 bits = 1024 slots per segment.
	segmentBits = 10
	segmentSize = 1 << segmentBits
	segmentMask = segmentSize - 1
)

// SlotArray is an append-only table of atomic pointer slots indexed by a
// dense uint32 key. Loads and stores are lock-free; the mutex only guards
// segment growth. Segments are never moved, so a slot's address is stable.
type SlotArray[T any] struct {
	segments atomic.Pointer[[]*segment[T]]
	mu       sync.Mutex // Protects growth
}

type segment[T any] struct {
	slots [segmentSize]atomic.Pointer[T]
}

// NewSlotArray creates an empty SlotArray.
func NewSlotArray[T any]() *SlotArray[T] {
	sa := &SlotArray[T]{}
	segments := make([]*segment[T], 0)
	sa.segments.Store(&segments)
	return sa
}

// Load returns the pointer stored at index, or nil if the slot is empty or
// was never allocated.
func (sa *SlotArray[T]) Load(index uint32) *T {
	segments := *sa.segments.Load()
	segIdx := int(index >> segmentBits)
	if segIdx >= len(segments) || segments[segIdx] == nil {
		return nil
	}
	return segments[segIdx].slots[index&segmentMask].Load()
}

// Store publishes v at index, growing the table if needed.
// Concurrent stores of the same value are benign.
func (sa *SlotArray[T]) Store(index uint32, v *T) {
	sa.slot(index).Store(v)
}

func (sa *SlotArray[T]) slot(index uint32) *atomic.Pointer[T] {
	segIdx := int(index >> segmentBits)

	// Fast path: segment exists
	segments := *sa.segments.Load()
	if segIdx < len(segments) && segments[segIdx] != nil {
		return &segments[segIdx].slots[index&segmentMask]
	}

	// Slow path: grow
	sa.mu.Lock()
	defer sa.mu.Unlock()

	// Reload under lock
	current := *sa.segments.Load()
	if segIdx < len(current) && current[segIdx] != nil {
		return &current[segIdx].slots[index&segmentMask]
	}

	grown := make([]*segment[T], max(segIdx+1, len(current)))
	copy(grown, current)
	if grown[segIdx] == nil {
		grown[segIdx] = &segment[T]{}
	}

	// Publish a fresh slice; readers holding the old one still see valid segments.
	sa.segments.Store(&grown)
	return &grown[segIdx].slots[index&segmentMask]
}
