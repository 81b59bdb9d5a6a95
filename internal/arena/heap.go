package arena

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/mmap"
)

// HeapStats is a snapshot of one Heap.
type HeapStats struct {
	Chunks        uint64
	BytesReserved uint64
	LiveSlots     uint64
	FreeSlots     uint64
	TotalAllocs   uint64
	TotalFrees    uint64
}

type chunk struct {
	heap    *Heap
	data    []byte
	mapping *mmap.Mapping // Holds the off-heap mapping
	base    uintptr
	index   uint32        // Index of this chunk in the heap
	next    atomic.Uint32 // next unused slot; MUST be atomic - bumped without locks
}

// Heap serves fixed-size slots for one isolated bucket.
type Heap struct {
	arena         *Arena
	spec          Spec
	stride        uintptr
	slotsPerChunk uint32
	usableBytes   int
	chunkBytes    int
	maxChunks     int

	current atomic.Pointer[chunk]

	mu        sync.Mutex // protects chunks and free
	chunks    []*chunk
	free      *freeSet
	freeCount atomic.Int64

	allocs atomic.Uint64
	frees  atomic.Uint64
}

// Spec returns the heap's slot description.
func (h *Heap) Spec() Spec { return h.spec }

// Stride returns the distance between consecutive slots.
func (h *Heap) Stride() uintptr { return h.stride }

// Alloc returns a zeroed slot.
func (h *Heap) Alloc() (unsafe.Pointer, error) {
	if h.arena.closed.Load() {
		return nil, ErrClosed
	}

	if h.freeCount.Load() > 0 {
		if p, ok := h.reuse(); ok {
			h.allocs.Add(1)
			return p, nil
		}
	}

	for {
		curr := h.current.Load()
		if curr != nil {
			if slot, ok := curr.bump(h.slotsPerChunk); ok {
				h.allocs.Add(1)
				return curr.slot(slot, h.stride), nil
			}
		}

		// Current chunk is full. Only one goroutine maps a new one.
		h.mu.Lock()
		if h.current.Load() != curr {
			h.mu.Unlock()
			continue
		}
		err := h.growLocked()
		h.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
}

func (c *chunk) bump(limit uint32) (uint32, bool) {
	for {
		old := c.next.Load()
		if old >= limit {
			return 0, false
		}
		if c.next.CompareAndSwap(old, old+1) {
			return old, true
		}
	}
}

func (c *chunk) slot(slot uint32, stride uintptr) unsafe.Pointer {
	return unsafe.Pointer(&c.data[uintptr(slot)*stride]) //nolint:gosec // unsafe is required for arena implementation
}

func (h *Heap) growLocked() error {
	if h.arena.closed.Load() {
		return ErrClosed
	}
	idx := len(h.chunks)
	if idx >= h.maxChunks {
		return ErrMaxChunksExceeded
	}

	if acq := h.arena.acquirer; acq != nil {
		if err := acq.AcquireMemory(int64(h.chunkBytes)); err != nil {
			return err
		}
	}

	mapping, err := mmap.MapAnon(h.chunkBytes)
	if err == nil && h.arena.guard {
		err = mapping.Guard(h.usableBytes, mmap.PageSize())
		if err != nil {
			_ = mapping.Close()
		}
	}
	if err != nil {
		if acq := h.arena.acquirer; acq != nil {
			acq.ReleaseMemory(int64(h.chunkBytes))
		}
		return fmt.Errorf("failed to map anonymous memory for chunk: %w", err)
	}

	c := &chunk{
		heap:    h,
		data:    mapping.Bytes()[:h.usableBytes:h.usableBytes],
		mapping: mapping,
		base:    mapping.Base(),
		index:   uint32(idx), //nolint:gosec // idx < MaxChunks
	}
	h.chunks = append(h.chunks, c)
	h.arena.register(c)

	// Make visible to Alloc
	h.current.Store(c)
	return nil
}

func (h *Heap) reuse() (unsafe.Pointer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.free.take()
	if !ok {
		return nil, false
	}
	h.freeCount.Add(-1)
	c := h.chunks[id/h.slotsPerChunk]
	return c.slot(id%h.slotsPerChunk, h.stride), true
}

func (h *Heap) release(c *chunk, offset uintptr) error {
	if offset%h.stride != 0 {
		return ErrMisalignedPointer
	}
	slot := uint32(offset / h.stride) //nolint:gosec // offset < usableBytes
	if slot >= c.next.Load() {
		// Inside the chunk but never handed out.
		return ErrForeignPointer
	}
	id := c.index*h.slotsPerChunk + slot

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.free.contains(id) {
		return ErrDoubleFree
	}
	start := uintptr(slot) * h.stride
	clear(c.data[start : start+h.stride])
	h.free.add(id)
	h.freeCount.Add(1)
	h.frees.Add(1)
	return nil
}

// Stats returns a snapshot of the heap's counters.
func (h *Heap) Stats() HeapStats {
	h.mu.Lock()
	chunks := uint64(len(h.chunks))
	freeSlots := h.free.len()
	h.mu.Unlock()

	allocs := h.allocs.Load()
	frees := h.frees.Load()
	return HeapStats{
		Chunks:        chunks,
		BytesReserved: chunks * uint64(h.chunkBytes), //nolint:gosec // chunkBytes > 0
		LiveSlots:     allocs - min(frees, allocs),
		FreeSlots:     freeSlots,
		TotalAllocs:   allocs,
		TotalFrees:    frees,
	}
}

func (h *Heap) String() string {
	s := h.Stats()
	return fmt.Sprintf("Heap{%s, stride: %d, chunks: %d, live: %d}", h.spec.Name, h.stride, s.Chunks, s.LiveSlots)
}
