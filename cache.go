package isoheap

import (
	"sync"

	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/container"
	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/sizeclass"
)

// CallSite is a registered allocation site. Its ID is the stable token that
// keys the site's cache slot.
type CallSite struct {
	id         uint32
	heap       *Heap
	identity   string
	size       uintptr
	align      uintptr
	key        sizeclass.Key
	nonCompact bool
}

// SiteOption configures a call site at registration.
type SiteOption func(*CallSite)

// NonCompact routes the site's objects to the overflow bucket of their
// size class, independent of dynamic compaction.
func NonCompact() SiteOption {
	return func(s *CallSite) {
		s.nonCompact = true
	}
}

// ID returns the site's token.
func (s *CallSite) ID() uint32 { return s.id }

// Identity returns the type identity.
func (s *CallSite) Identity() string { return s.identity }

// Size returns the statically expected size.
func (s *CallSite) Size() uintptr { return s.size }

// Alignment returns the normalized alignment.
func (s *CallSite) Alignment() uintptr { return s.key.Alignment }

// SizeClass returns the size class of the expected size.
func (s *CallSite) SizeClass() (size, alignment uintptr) { return s.key.Size, s.key.Alignment }

// heapRefCache memoizes the resolved bucket per call site. Entries are
// written with idempotent atomic stores and never invalidated.
type heapRefCache struct {
	slots *container.SlotArray[Bucket]
}

func newHeapRefCache() heapRefCache {
	return heapRefCache{slots: container.NewSlotArray[Bucket]()}
}

func (c heapRefCache) get(site *CallSite) *Bucket {
	return c.slots.Load(site.id)
}

func (c heapRefCache) set(site *CallSite, b *Bucket) {
	c.slots.Store(site.id, b)
}

// differentSizeKey identifies a request whose size differs from its call
// site's expected size.
type differentSizeKey struct {
	site  uint32
	size  uintptr
	align uintptr
}

// differentSizeCache maps mismatched requests to buckets. Reads are
// lock-free; the mutex is held only while an entry is created.
type differentSizeCache struct {
	entries sync.Map // differentSizeKey -> *Bucket
	mu      sync.Mutex
}

func (c *differentSizeCache) get(k differentSizeKey) (*Bucket, bool) {
	v, ok := c.entries.Load(k)
	if !ok {
		return nil, false
	}
	return v.(*Bucket), true
}

func (c *differentSizeCache) getOrCreate(k differentSizeKey, create func() (*Bucket, error)) (*Bucket, bool, error) {
	if b, ok := c.get(k); ok {
		return b, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.get(k); ok {
		return b, false, nil
	}
	b, err := create()
	if err != nil {
		return nil, false, err
	}
	c.entries.Store(k, b)
	return b, true, nil
}
