package arena

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/mmap"
)

// MemoryAcquirer is an interface for acquiring memory.
type MemoryAcquirer interface {
	AcquireMemory(amount int64) error
	ReleaseMemory(amount int64)
}

var (
	// ErrMaxChunksExceeded is returned when a heap exceeds the maximum number of chunks.
	ErrMaxChunksExceeded = errors.New("arena: max chunks exceeded")
	// ErrClosed is returned when the arena has been closed.
	ErrClosed = errors.New("arena: closed")
	// ErrInvalidSpec is returned for a heap spec the arena cannot serve.
	ErrInvalidSpec = errors.New("arena: invalid heap spec")
	// ErrForeignPointer is returned when freeing a pointer the arena does not own.
	ErrForeignPointer = errors.New("arena: pointer not owned by arena")
	// ErrMisalignedPointer is returned when freeing a pointer into the middle of a slot.
	ErrMisalignedPointer = errors.New("arena: pointer does not start a slot")
	// ErrDoubleFree is returned when freeing a slot that is already free.
	ErrDoubleFree = errors.New("arena: double free")
	// ErrForeignHeap is returned when releasing a heap created by another arena.
	ErrForeignHeap = errors.New("arena: heap not owned by arena")
	// ErrHeapInUse is returned when releasing a heap that already mapped memory.
	ErrHeapInUse = errors.New("arena: heap in use")
)

const (
	// DefaultChunkSize is the default size of a chunk (64KB).
	DefaultChunkSize = 64 * 1024
	// MaxChunks limits the number of chunks per heap.
	MaxChunks = 1 << 16
)

// Spec describes the slots a Heap serves.
type Spec struct {
	Size      uintptr
	Alignment uintptr
	Name      string
}

// Stats tracks arena memory usage metrics.
type Stats struct {
	Heaps           int
	ChunksAllocated uint64
	BytesReserved   uint64
	LiveSlots       uint64
	TotalAllocs     uint64
	TotalFrees      uint64
}

type span struct {
	base, end uintptr
	chunk     *chunk
}

// Arena owns every Heap and the address index used to route frees.
type Arena struct {
	chunkSize int
	guard     bool
	acquirer  MemoryAcquirer

	mu     sync.RWMutex // protects spans and heaps
	spans  []span       // sorted by base, non-overlapping
	heaps  []*Heap
	closed atomic.Bool
}

// Option is a configuration option for Arena.
type Option func(*Arena)

// WithMemoryAcquirer sets the memory acquirer for the arena.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(a *Arena) {
		a.acquirer = acquirer
	}
}

// WithChunkSize sets the target chunk size in bytes.
func WithChunkSize(size int) Option {
	return func(a *Arena) {
		if size > 0 {
			a.chunkSize = size
		}
	}
}

// WithGuardPages places an inaccessible page after every chunk.
func WithGuardPages(enabled bool) Option {
	return func(a *Arena) {
		a.guard = enabled
	}
}

// New creates an empty Arena.
func New(opts ...Option) *Arena {
	a := &Arena{
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewHeap creates a Heap serving slots described by spec.
// No memory is mapped until the first allocation.
func (a *Arena) NewHeap(spec Spec) (*Heap, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	page := uintptr(mmap.PageSize())
	align := max(spec.Alignment, 1)
	if spec.Size == 0 || align&(align-1) != 0 || align > page {
		return nil, fmt.Errorf("%w: size=%d alignment=%d", ErrInvalidSpec, spec.Size, spec.Alignment)
	}

	stride := (spec.Size + align - 1) &^ (align - 1)
	slots := max(uintptr(a.chunkSize)/stride, 1)
	usable := (slots*stride + page - 1) &^ (page - 1)
	chunkBytes := usable
	if a.guard {
		chunkBytes += page
	}

	maxChunks := min(uint64(MaxChunks), uint64(^uint32(0))/uint64(slots))

	h := &Heap{
		arena:         a,
		spec:          spec,
		stride:        stride,
		slotsPerChunk: uint32(slots), //nolint:gosec // slots <= chunkSize/16
		usableBytes:   int(usable),   //nolint:gosec // bounded by chunk size
		chunkBytes:    int(chunkBytes),
		maxChunks:     int(maxChunks), //nolint:gosec // <= MaxChunks
		free:          newFreeSet(),
	}

	a.mu.Lock()
	a.heaps = append(a.heaps, h)
	a.mu.Unlock()
	return h, nil
}

// ReleaseHeap forgets a heap that never allocated. Heaps that mapped a
// chunk stay until Close.
func (a *Arena) ReleaseHeap(h *Heap) error {
	if h == nil || h.arena != a {
		return ErrForeignHeap
	}
	h.mu.Lock()
	used := len(h.chunks) > 0
	h.mu.Unlock()
	if used {
		return ErrHeapInUse
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if i := slices.Index(a.heaps, h); i >= 0 {
		a.heaps = slices.Delete(a.heaps, i, i+1)
	}
	return nil
}

func (a *Arena) register(c *chunk) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := span{base: c.base, end: c.base + uintptr(c.heap.usableBytes), chunk: c}
	i, _ := slices.BinarySearchFunc(a.spans, s.base, func(e span, base uintptr) int {
		switch {
		case e.base < base:
			return -1
		case e.base > base:
			return 1
		default:
			return 0
		}
	})
	a.spans = slices.Insert(a.spans, i, s)
}

func (a *Arena) lookup(addr uintptr) (*chunk, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i, found := slices.BinarySearchFunc(a.spans, addr, func(e span, addr uintptr) int {
		switch {
		case e.end <= addr:
			return -1
		case e.base > addr:
			return 1
		default:
			return 0
		}
	})
	if !found {
		return nil, false
	}
	return a.spans[i].chunk, true
}

// Owner returns the Heap that allocated p.
func (a *Arena) Owner(p unsafe.Pointer) (*Heap, bool) {
	c, ok := a.lookup(uintptr(p))
	if !ok {
		return nil, false
	}
	return c.heap, true
}

// Free returns p to the Heap that allocated it.
func (a *Arena) Free(p unsafe.Pointer) error {
	if p == nil {
		return nil
	}
	if a.closed.Load() {
		return ErrClosed
	}
	addr := uintptr(p)
	c, ok := a.lookup(addr)
	if !ok {
		return ErrForeignPointer
	}
	return c.heap.release(c, addr-c.base)
}

// Heaps returns a snapshot of all heaps in creation order.
func (a *Arena) Heaps() []*Heap {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.heaps)
}

// Stats aggregates statistics over all heaps.
func (a *Arena) Stats() Stats {
	var s Stats
	for _, h := range a.Heaps() {
		hs := h.Stats()
		s.Heaps++
		s.ChunksAllocated += hs.Chunks
		s.BytesReserved += hs.BytesReserved
		s.LiveSlots += hs.LiveSlots
		s.TotalAllocs += hs.TotalAllocs
		s.TotalFrees += hs.TotalFrees
	}
	return s
}

// Close unmaps every chunk. All pointers handed out become invalid.
//
// IMPORTANT: Do NOT call Close concurrently with allocations.
func (a *Arena) Close() error {
	if a.closed.Swap(true) {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, s := range a.spans {
		if err := s.chunk.mapping.Close(); err != nil {
			errs = append(errs, err)
		}
		if a.acquirer != nil {
			a.acquirer.ReleaseMemory(int64(s.chunk.heap.chunkBytes))
		}
	}
	a.spans = nil
	for _, h := range a.heaps {
		h.current.Store(nil)
	}
	return errors.Join(errs...)
}

func (a *Arena) String() string {
	s := a.Stats()
	return fmt.Sprintf(
		"Arena{heaps: %d, chunks: %d, reserved: %.2f MB, live: %d, allocs: %d, frees: %d}",
		s.Heaps,
		s.ChunksAllocated,
		float64(s.BytesReserved)/(1024*1024),
		s.LiveSlots,
		s.TotalAllocs,
		s.TotalFrees,
	)
}
