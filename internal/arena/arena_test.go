package arena

import (
	"errors"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/mmap"
	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/resource"
)

func newTestArena(t *testing.T, opts ...Option) *Arena {
	t.Helper()
	a := New(opts...)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestArena_NewHeap(t *testing.T) {
	a := newTestArena(t)

	t.Run("valid", func(t *testing.T) {
		h, err := a.NewHeap(Spec{Size: 24, Alignment: 16, Name: "t"})
		require.NoError(t, err)
		assert.Equal(t, uintptr(32), h.Stride())
		assert.Equal(t, "t", h.Spec().Name)
	})

	t.Run("invalid", func(t *testing.T) {
		specs := []Spec{
			{Size: 0, Alignment: 16},
			{Size: 16, Alignment: 24},
			{Size: 16, Alignment: uintptr(mmap.PageSize()) * 2},
		}
		for _, s := range specs {
			_, err := a.NewHeap(s)
			assert.ErrorIs(t, err, ErrInvalidSpec)
		}
	})
}

func TestHeap_AllocAlignedAndDistinct(t *testing.T) {
	a := newTestArena(t, WithChunkSize(4096))
	h, err := a.NewHeap(Spec{Size: 48, Alignment: 16})
	require.NoError(t, err)

	seen := make(map[uintptr]bool)
	// Spans several chunks.
	for i := 0; i < 500; i++ {
		p, err := h.Alloc()
		require.NoError(t, err)
		addr := uintptr(p)
		assert.Zero(t, addr%16)
		assert.False(t, seen[addr], "slot handed out twice")
		seen[addr] = true

		owner, ok := a.Owner(p)
		require.True(t, ok)
		assert.Same(t, h, owner)
	}

	s := h.Stats()
	assert.Greater(t, s.Chunks, uint64(1))
	assert.Equal(t, uint64(500), s.LiveSlots)
	assert.Equal(t, s.Chunks*uint64(h.chunkBytes), s.BytesReserved)
}

func TestHeap_FreeReusesAndZeroes(t *testing.T) {
	a := newTestArena(t)
	h, err := a.NewHeap(Spec{Size: 32, Alignment: 16})
	require.NoError(t, err)

	p, err := h.Alloc()
	require.NoError(t, err)
	buf := unsafe.Slice((*byte)(p), 32)
	for i := range buf {
		buf[i] = 0xFF
	}

	require.NoError(t, a.Free(p))
	assert.Equal(t, uint64(1), h.Stats().FreeSlots)

	q, err := h.Alloc()
	require.NoError(t, err)
	assert.Equal(t, p, q, "only free slot must be reused")
	for _, b := range unsafe.Slice((*byte)(q), 32) {
		require.Zero(t, b)
	}
	assert.Zero(t, h.Stats().FreeSlots)
}

func TestArena_FreeErrors(t *testing.T) {
	a := newTestArena(t)
	h, err := a.NewHeap(Spec{Size: 64, Alignment: 16})
	require.NoError(t, err)

	p, err := h.Alloc()
	require.NoError(t, err)

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, a.Free(nil))
	})

	t.Run("foreign", func(t *testing.T) {
		x := new(int64)
		assert.ErrorIs(t, a.Free(unsafe.Pointer(x)), ErrForeignPointer)
	})

	t.Run("interior", func(t *testing.T) {
		assert.ErrorIs(t, a.Free(unsafe.Add(p, 8)), ErrMisalignedPointer)
	})

	t.Run("never allocated", func(t *testing.T) {
		assert.ErrorIs(t, a.Free(unsafe.Add(p, 64*10)), ErrForeignPointer)
	})

	t.Run("double free", func(t *testing.T) {
		require.NoError(t, a.Free(p))
		assert.ErrorIs(t, a.Free(p), ErrDoubleFree)
	})
}

func TestArena_HeapsAreIsolated(t *testing.T) {
	a := newTestArena(t)
	h1, err := a.NewHeap(Spec{Size: 32, Alignment: 16, Name: "a"})
	require.NoError(t, err)
	h2, err := a.NewHeap(Spec{Size: 32, Alignment: 16, Name: "b"})
	require.NoError(t, err)

	p1, err := h1.Alloc()
	require.NoError(t, err)
	require.NoError(t, a.Free(p1))

	// A slot freed by h1 must never be handed out by h2.
	for i := 0; i < 100; i++ {
		p2, err := h2.Alloc()
		require.NoError(t, err)
		require.NotEqual(t, p1, p2)
		owner, _ := a.Owner(p2)
		require.Same(t, h2, owner)
	}

	assert.Len(t, a.Heaps(), 2)
	st := a.Stats()
	assert.Equal(t, 2, st.Heaps)
	assert.Equal(t, uint64(100), st.LiveSlots)
	assert.Contains(t, a.String(), "heaps: 2")
}

func TestArena_MemoryLimit(t *testing.T) {
	page := mmap.PageSize()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: int64(2 * page)})
	a := newTestArena(t, WithChunkSize(page), WithMemoryAcquirer(rc))

	h, err := a.NewHeap(Spec{Size: uintptr(page), Alignment: 16})
	require.NoError(t, err)

	_, err = h.Alloc()
	require.NoError(t, err)
	_, err = h.Alloc()
	require.NoError(t, err)
	_, err = h.Alloc()
	require.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)

	assert.Equal(t, int64(2*page), rc.MemoryUsage())
	require.NoError(t, a.Close())
	assert.Zero(t, rc.MemoryUsage())
}

func TestArena_GuardPages(t *testing.T) {
	page := mmap.PageSize()
	rc := resource.NewController(resource.Config{})
	a := newTestArena(t, WithChunkSize(page), WithGuardPages(true), WithMemoryAcquirer(rc))

	h, err := a.NewHeap(Spec{Size: 128, Alignment: 16})
	require.NoError(t, err)
	_, err = h.Alloc()
	require.NoError(t, err)

	// One usable page plus one guard page.
	assert.Equal(t, int64(2*page), rc.MemoryUsage())
}

func TestArena_ReleaseHeap(t *testing.T) {
	a := newTestArena(t)
	other := newTestArena(t)

	unused, err := a.NewHeap(Spec{Size: 32, Alignment: 16})
	require.NoError(t, err)
	used, err := a.NewHeap(Spec{Size: 32, Alignment: 16})
	require.NoError(t, err)
	_, err = used.Alloc()
	require.NoError(t, err)

	require.ErrorIs(t, other.ReleaseHeap(unused), ErrForeignHeap)
	require.ErrorIs(t, a.ReleaseHeap(nil), ErrForeignHeap)
	require.ErrorIs(t, a.ReleaseHeap(used), ErrHeapInUse)

	require.NoError(t, a.ReleaseHeap(unused))
	require.NoError(t, a.ReleaseHeap(unused))
	assert.Equal(t, []*Heap{used}, a.Heaps())
}

func TestArena_Closed(t *testing.T) {
	a := New()
	h, err := a.NewHeap(Spec{Size: 16, Alignment: 16})
	require.NoError(t, err)
	p, err := h.Alloc()
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, err = h.Alloc()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, a.Free(p), ErrClosed)
	_, err = a.NewHeap(Spec{Size: 16, Alignment: 16})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestHeap_ConcurrentAllocFree(t *testing.T) {
	a := newTestArena(t, WithChunkSize(8192))
	h, err := a.NewHeap(Spec{Size: 64, Alignment: 16})
	require.NoError(t, err)

	const goroutines = 8
	const perG = 2000

	var wg sync.WaitGroup
	errCh := make(chan error, goroutines)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			live := make([]unsafe.Pointer, 0, 16)
			for i := 0; i < perG; i++ {
				p, err := h.Alloc()
				if err != nil {
					errCh <- err
					return
				}
				*(*uint64)(p) = uint64(i)
				live = append(live, p)
				if len(live) == cap(live) {
					for _, q := range live {
						if err := a.Free(q); err != nil {
							errCh <- err
							return
						}
					}
					live = live[:0]
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	s := h.Stats()
	assert.Equal(t, uint64(goroutines*perG), s.TotalAllocs)
	assert.Equal(t, s.TotalAllocs-s.TotalFrees, s.LiveSlots)
}

func TestFreeSet_Take(t *testing.T) {
	f := newFreeSet()
	_, ok := f.take()
	assert.False(t, ok)

	for i := uint32(0); i < 10; i++ {
		require.True(t, f.add(i*3))
	}
	assert.False(t, f.add(3))

	got := make(map[uint32]bool)
	for i := 0; i < 10; i++ {
		id, ok := f.take()
		require.True(t, ok)
		assert.Zero(t, id%3)
		got[id] = true
	}
	assert.Len(t, got, 10)
	assert.Zero(t, f.len())
}

func BenchmarkHeap_Alloc(b *testing.B) {
	a := New()
	defer a.Close()
	h, err := a.NewHeap(Spec{Size: 64, Alignment: 16})
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p, err := h.Alloc()
		if err != nil {
			if errors.Is(err, ErrMaxChunksExceeded) {
				b.Skip("heap exhausted")
			}
			b.Fatal(err)
		}
		_ = a.Free(p)
	}
}
