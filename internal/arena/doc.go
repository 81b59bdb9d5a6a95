// Package arena provides the off-heap slab allocator backing isolated heaps.
//
// Each Heap serves fixed-size slots of one size class. Slots are carved from
// chunks obtained with anonymous mmap, so arena memory never shares pages
// with the Go heap or with another Heap.
//
// # Features
//
//   - Off-heap allocation via mmap (no GC pressure)
//   - Lock-free bump allocation within a chunk (CAS on the chunk cursor)
//   - Freed slots tracked in a roaring bitmap, reused in randomized order
//   - Freed slots are zeroed before they can be handed out again
//   - Optional guard page after every chunk
//   - Self-describing ownership: Free resolves the owning Heap from the pointer
//
// # Safety
//
// Free reports foreign, interior and double-freed pointers as errors instead
// of corrupting state. Arena memory is invisible to the garbage collector:
// never store Go pointers in it.
package arena
