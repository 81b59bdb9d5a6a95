package mem

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"unsafe"
)

// DefaultAlignment is used when no alignment is requested.
const DefaultAlignment = 16

var (
	// ErrUnknownPointer is returned when freeing a pointer the tracker did not hand out.
	ErrUnknownPointer = errors.New("mem: unknown pointer")
	// ErrInvalidAlignment is returned for alignments that are not a power of two.
	ErrInvalidAlignment = errors.New("mem: alignment must be a power of two")
	// ErrSizeTooLarge is returned when size plus alignment padding overflows int.
	ErrSizeTooLarge = errors.New("mem: size too large")
)

// AllocAligned allocates a byte slice of the given size aligned to align.
// The returned slice is guaranteed to start at a memory address divisible by align.
//
// Note: This function allocates slightly more memory than requested to ensure alignment.
// The underlying array is kept alive by the returned slice.
func AllocAligned(size, align int) []byte {
	if size <= 0 {
		return nil
	}
	if align <= 0 {
		align = DefaultAlignment
	}

	// We need enough space to shift the start pointer up to align-1 bytes
	buf := make([]byte, size+align)

	ptr := unsafe.Pointer(&buf[0]) //nolint:gosec // unsafe is required for memory alignment
	addr := uintptr(ptr)
	offset := (uintptr(align) - (addr & uintptr(align-1))) & uintptr(align-1)

	return buf[offset : offset+uintptr(size) : offset+uintptr(size)]
}

// Tracker is a malloc/free-style allocator over the Go heap.
type Tracker struct {
	mu    sync.Mutex
	live  map[uintptr][]byte
	bytes atomic.Int64
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{live: make(map[uintptr][]byte)}
}

// Malloc returns a zeroed block of size bytes aligned to align.
// A zero size yields a one-byte block so every call returns a distinct pointer.
func (t *Tracker) Malloc(size, align uintptr) (unsafe.Pointer, error) {
	if align == 0 {
		align = DefaultAlignment
	}
	if align&(align-1) != 0 || align > math.MaxInt {
		return nil, ErrInvalidAlignment
	}
	if size > math.MaxInt-align {
		return nil, ErrSizeTooLarge
	}
	buf := AllocAligned(int(max(size, 1)), int(align)) //nolint:gosec // bounded by caller
	p := unsafe.Pointer(&buf[0])                       //nolint:gosec // unsafe is required for raw allocation

	t.mu.Lock()
	t.live[uintptr(p)] = buf
	t.mu.Unlock()
	t.bytes.Add(int64(len(buf)))
	return p, nil
}

// Free releases a block returned by Malloc.
func (t *Tracker) Free(p unsafe.Pointer) error {
	if p == nil {
		return nil
	}
	t.mu.Lock()
	buf, ok := t.live[uintptr(p)]
	if ok {
		delete(t.live, uintptr(p))
	}
	t.mu.Unlock()
	if !ok {
		return ErrUnknownPointer
	}
	t.bytes.Add(-int64(len(buf)))
	return nil
}

// Owns reports whether p is a live block of this tracker.
func (t *Tracker) Owns(p unsafe.Pointer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.live[uintptr(p)]
	return ok
}

// Live returns the number of outstanding blocks.
func (t *Tracker) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// Bytes returns the number of outstanding bytes.
func (t *Tracker) Bytes() int64 {
	return t.bytes.Load()
}
