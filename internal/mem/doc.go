// Package mem provides the plain Go-heap allocator used when isolated heaps
// are bypassed.
//
// # Aligned Allocation
//
// AllocAligned over-allocates and slices so the first byte sits on the
// requested power-of-two boundary.
//
// # Tracker
//
// Tracker hands out aligned blocks as raw pointers and keeps the backing
// slices reachable until Free, so the garbage collector never reclaims a
// block the caller still holds.
package mem
