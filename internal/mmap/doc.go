// Package mmap provides anonymous off-heap memory mappings.
//
// # Overview
//
// MapAnon returns read-write memory obtained directly from the kernel,
// outside the Go garbage collector's control. The arena uses it for slab
// chunks so isolated heaps never share pages with the Go heap.
//
// # Usage
//
//	m, err := mmap.MapAnon(64 << 10)
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes()
//
//	// Make the trailing page inaccessible
//	_ = m.Guard(m.Size()-mmap.PageSize(), mmap.PageSize())
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with MAP_ANON|MAP_PRIVATE, mprotect(2)
//   - Windows: VirtualAlloc / VirtualProtect
//
// # Thread Safety
//
// Close is idempotent and protected by atomic operations. Callers must
// ensure no goroutine touches Bytes() after Close returns.
package mmap
