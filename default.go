package isoheap

import (
	"sync"
	"sync/atomic"
)

var (
	defaultHeap atomic.Pointer[Heap]
	defaultMu   sync.Mutex
)

// Init creates the process-wide Heap returned by Default. It may be called
// at most once, and only before the first call to Default; a second call
// returns ErrAlreadyInitialized.
func Init(opts ...Option) (*Heap, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultHeap.Load() != nil {
		return nil, ErrAlreadyInitialized
	}
	h, err := New(opts...)
	if err != nil {
		return nil, err
	}
	defaultHeap.Store(h)
	return h, nil
}

// Default returns the process-wide Heap, creating it with default options
// if Init was not called. It panics if the default heap cannot be created.
func Default() *Heap {
	if h := defaultHeap.Load(); h != nil {
		return h
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()

	if h := defaultHeap.Load(); h != nil {
		return h
	}
	h, err := New()
	if err != nil {
		panic("isoheap: default heap: " + err.Error())
	}
	defaultHeap.Store(h)
	return h
}

// resetDefault drops the process-wide Heap. Tests only.
func resetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if h := defaultHeap.Swap(nil); h != nil {
		_ = h.Close()
	}
}
