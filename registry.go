package isoheap

import (
	"fmt"
	"slices"
	"sync"
	"unsafe"

	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/sizeclass"
)

// Bucket is one isolated arena heap. Buckets are never destroyed, so
// pointers to them stay valid for the life of the Heap.
type Bucket struct {
	table *BucketTable
	index int // -1 for the overflow bucket
	desc  TypeDescriptor
	heap  ArenaHeap
}

// Descriptor returns the bucket's type descriptor.
func (b *Bucket) Descriptor() TypeDescriptor { return b.desc }

// Name returns the bucket's display name.
func (b *Bucket) Name() string { return b.desc.Name }

// Index returns the bucket's position in its table, or -1 for the overflow bucket.
func (b *Bucket) Index() int { return b.index }

// IsOverflow reports whether b is its table's overflow (non-compact) bucket.
func (b *Bucket) IsOverflow() bool { return b.index < 0 }

// Table returns the table that owns b.
func (b *Bucket) Table() *BucketTable { return b.table }

func (b *Bucket) alloc() (unsafe.Pointer, error) {
	return b.heap.Alloc()
}

// BucketTable holds the buckets of one size class: a fixed number of
// regular buckets and exactly one overflow bucket.
type BucketTable struct {
	key      sizeclass.Key
	buckets  []*Bucket
	overflow *Bucket
}

// Size returns the size class.
func (t *BucketTable) Size() uintptr { return t.key.Size }

// Alignment returns the size class alignment.
func (t *BucketTable) Alignment() uintptr { return t.key.Alignment }

// Len returns the number of regular buckets.
func (t *BucketTable) Len() int { return len(t.buckets) }

// Bucket returns the i-th regular bucket.
func (t *BucketTable) Bucket(i int) *Bucket { return t.buckets[i] }

// Overflow returns the overflow bucket.
func (t *BucketTable) Overflow() *Bucket { return t.overflow }

// registry lazily creates one BucketTable per size class.
type registry struct {
	policy   *sizeclass.Policy
	arena    Arena
	onCreate func(*BucketTable)
	tables   sync.Map   // sizeclass.Key -> *BucketTable
	mu       sync.Mutex // serializes table construction
	order    []*BucketTable
}

func newRegistry(policy *sizeclass.Policy, a Arena, onCreate func(*BucketTable)) *registry {
	return &registry{
		policy:   policy,
		arena:    a,
		onCreate: onCreate,
	}
}

// lookup returns the table for key without creating it.
func (r *registry) lookup(key sizeclass.Key) (*BucketTable, bool) {
	v, ok := r.tables.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*BucketTable), true
}

// resolve returns the table for key, creating it on first use. At most one
// table is ever created per key.
func (r *registry) resolve(key sizeclass.Key) (*BucketTable, error) {
	if t, ok := r.lookup(key); ok {
		return t, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double check under lock
	if t, ok := r.lookup(key); ok {
		return t, nil
	}

	r.policy.Freeze()
	n := int(r.policy.BucketCountFor(key))

	t := &BucketTable{
		key:     key,
		buckets: make([]*Bucket, n),
	}
	for i := 0; i < n; i++ {
		b, err := r.newBucket(t, i, fmt.Sprintf("isoheap_%s_b%d", key, i))
		if err != nil {
			r.release(t.buckets[:i])
			return nil, err
		}
		t.buckets[i] = b
	}
	overflow, err := r.newBucket(t, -1, fmt.Sprintf("isoheap_%s_overflow", key))
	if err != nil {
		r.release(t.buckets)
		return nil, err
	}
	t.overflow = overflow

	r.tables.Store(key, t)
	r.order = append(r.order, t)
	if r.onCreate != nil {
		r.onCreate(t)
	}
	return t, nil
}

func (r *registry) newBucket(t *BucketTable, index int, name string) (*Bucket, error) {
	desc := TypeDescriptor{
		Size:      t.key.Size,
		Alignment: t.key.Alignment,
		Name:      name,
	}
	h, err := r.arena.NewHeap(desc)
	if err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", name, err)
	}
	return &Bucket{table: t, index: index, desc: desc, heap: h}, nil
}

// release hands the heaps of an unpublished table back to the arena. Arenas
// that cannot release keep the heaps; each failed attempt leaks at most one
// table's worth of empty heaps.
func (r *registry) release(buckets []*Bucket) {
	rel, ok := r.arena.(HeapReleaser)
	if !ok {
		return
	}
	for _, b := range buckets {
		_ = rel.ReleaseHeap(b.heap)
	}
}

// tablesSnapshot returns all tables in creation order.
func (r *registry) tablesSnapshot() []*BucketTable {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}
