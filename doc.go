// Package isoheap provides a type-segregated, security-hardened allocator.
//
// Every allocation call site is tied to a type identity. Objects are served
// from isolated buckets, and a type always lands in the same bucket of its
// size class. The bucket is chosen by a keyed hash of the type identity under
// a process-wide secret seed. A slot freed by one type is therefore never
// reused for an unrelated type that happens to hash elsewhere, which defeats
// the type-confusion step of most use-after-free exploits.
//
// # Quick Start
//
//	h, _ := isoheap.New()
//	defer h.Close()
//
//	type Node struct{ Left, Right uint32; Value float64 }
//
//	site, _ := isoheap.Site[Node](h)
//	n, _ := isoheap.Alloc[Node](h, site)
//	n.Value = 42
//	_ = isoheap.Free(h, n)
//
// Untyped call sites take an explicit identity and expected size:
//
//	site, _ := h.RegisterCallSite("WebCore::Node", 48, 16)
//	p, _ := h.Allocate(site, 48)
//	_ = h.Deallocate(p)
//
// # Allocation Path
//
//	Allocate(site, size)
//	  │
//	  ├─ fallback = ForceDebugMalloc ──────────────► system allocator
//	  ├─ size == site size && cache hit ───────────► bucket (fast path)
//	  └─ slow path
//	       ├─ resolve fallback policy (once)
//	       ├─ size mismatch ─► different-size entry (site, size, alignment)
//	       ├─ size class table (created once per class)
//	       ├─ bucket = overflow | keyed-hash(identity) mod N
//	       └─ populate cache, allocate from bucket
//
// # Fallback
//
// Isolation can be bypassed process-wide for diagnostic tooling. Setting
// ISOHEAP_USE_SYSTEM_MALLOC=1 or ISOHEAP_DISABLE=1, passing
// WithIsolationDisabled, or building with -race or -asan routes every
// allocation to a plain Go-heap allocator. The decision is taken once, on
// first allocation, and never changes.
//
// # Memory Rules
//
// Bucket memory lives outside the Go heap. Types stored in it must not
// contain Go pointers; Site rejects such types with ErrPointerType.
//
// # Thread Safety
//
// All Heap methods are safe for concurrent use. Steady-state allocation takes
// no locks in the dispatch layer.
package isoheap
