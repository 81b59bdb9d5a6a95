package isoheap

import (
	"unsafe"

	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/arena"
)

// TypeDescriptor describes the objects a Bucket serves.
type TypeDescriptor struct {
	Size      uintptr
	Alignment uintptr
	Name      string
}

// ArenaHeap is an arena's handle for one bucket.
type ArenaHeap interface {
	// Alloc returns a zeroed object-sized slot.
	Alloc() (unsafe.Pointer, error)
}

// Arena is the allocator behind buckets. Free must resolve the owning heap
// from the pointer alone.
type Arena interface {
	NewHeap(desc TypeDescriptor) (ArenaHeap, error)
	Free(p unsafe.Pointer) error
}

// HeapReleaser is implemented by arenas that can discard a heap that never
// allocated. The registry uses it to undo a partially built size class
// table when a later bucket cannot be created.
type HeapReleaser interface {
	ReleaseHeap(h ArenaHeap) error
}

// heapStatser is implemented by arena heaps that expose occupancy.
type heapStatser interface {
	Stats() arena.HeapStats
}

// mmapArena adapts the internal slab arena to Arena.
type mmapArena struct {
	a *arena.Arena
}

func (m mmapArena) NewHeap(desc TypeDescriptor) (ArenaHeap, error) {
	h, err := m.a.NewHeap(arena.Spec{
		Size:      desc.Size,
		Alignment: desc.Alignment,
		Name:      desc.Name,
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (m mmapArena) Free(p unsafe.Pointer) error {
	return m.a.Free(p)
}

func (m mmapArena) ReleaseHeap(h ArenaHeap) error {
	ah, ok := h.(*arena.Heap)
	if !ok {
		return arena.ErrForeignHeap
	}
	return m.a.ReleaseHeap(ah)
}
