package mmap

import (
	"os"
	"sync/atomic"
	"unsafe"
)

// PageSize returns the system page size.
func PageSize() int {
	return os.Getpagesize()
}

// Mapping is an anonymous read-write memory mapping.
// It owns the underlying byte slice and is responsible for unmapping it.
type Mapping struct {
	data   []byte
	size   int
	closed atomic.Bool
	// unmap is the platform-specific function to unmap the memory.
	unmap func([]byte) error
}

// MapAnon maps size bytes of zeroed anonymous memory, rounded up to a whole
// number of pages.
func MapAnon(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	page := PageSize()
	size = (size + page - 1) &^ (page - 1)

	data, unmapFunc, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}

	return &Mapping{
		data:  data,
		size:  size,
		unmap: unmapFunc,
	}, nil
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil // Already closed
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}

// Bytes returns the underlying byte slice.
// Warning: The slice is valid only until Close() is called.
// Accessing the slice after Close() results in undefined behavior (likely a crash).
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return m.size
}

// Base returns the start address of the mapping.
func (m *Mapping) Base() uintptr {
	if len(m.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&m.data[0])) //nolint:gosec // address is only compared, never dereferenced
}

// Guard makes [offset, offset+size) inaccessible. Any access faults.
// Both offset and size must be page aligned.
func (m *Mapping) Guard(offset, size int) error {
	if m.closed.Load() {
		return ErrClosed
	}
	page := PageSize()
	if offset%page != 0 || size%page != 0 {
		return ErrUnaligned
	}
	if offset < 0 || size <= 0 || offset+size > m.size {
		return ErrOutOfBounds
	}
	return osGuard(m.data[offset : offset+size])
}
