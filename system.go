package isoheap

import (
	"unsafe"

	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/mem"
)

// SystemAllocator is the plain allocator used under ForceDebugMalloc.
// Memory it returns lives on the Go heap and is visible to the race
// detector and other runtime tooling.
type SystemAllocator interface {
	Malloc(size, align uintptr) (unsafe.Pointer, error)
	Free(p unsafe.Pointer) error
}

var _ SystemAllocator = (*mem.Tracker)(nil)

// NewSystemAllocator returns the default SystemAllocator.
func NewSystemAllocator() SystemAllocator {
	return mem.NewTracker()
}
