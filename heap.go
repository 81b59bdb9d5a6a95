package isoheap

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/time/rate"

	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/arena"
	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/entropy"
	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/resource"
	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/selector"
	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/sizeclass"
)

// Heap is a type-segregated allocator. Create one with New, or use Default
// for the process-wide instance.
type Heap struct {
	opts options

	seed     entropy.Seed
	seedInfo entropy.Info
	selector *selector.Selector

	policy   *sizeclass.Policy
	registry *registry
	cache    heapRefCache
	diff     differentSizeCache
	fallback *fallbackPolicy

	arena      Arena
	ownedArena *arena.Arena // nil when the arena was supplied by the caller
	system     SystemAllocator
	resources  *resource.Controller

	logger   *Logger
	metrics  MetricsCollector
	reporter Reporter
	slowLog  rate.Sometimes

	nextSite atomic.Uint32
	counters counters
}

type counters struct {
	fastHits        atomic.Uint64
	slowResolutions atomic.Uint64
	mismatchHits    atomic.Uint64
	mismatchEntries atomic.Uint64
	systemAllocs    atomic.Uint64
	tables          atomic.Uint64
}

// New creates a Heap. The seed is derived (or taken from WithSeed) here and
// never changes afterwards.
func New(optFns ...Option) (*Heap, error) {
	o := applyOptions(optFns)

	policy := sizeclass.NewPolicy()
	if o.smallBuckets != 0 || o.largeBuckets != 0 {
		if err := policy.SetBucketCounts(o.smallBuckets, o.largeBuckets); err != nil {
			return nil, err
		}
	}
	if o.smallThreshold != 0 {
		if err := policy.SetSmallSizeThreshold(o.smallThreshold); err != nil {
			return nil, err
		}
	}

	seed, info, err := deriveSeed(&o)
	o.logger.LogSeed(info, seed.Fingerprint(), err)
	if err != nil {
		return nil, err
	}

	h := &Heap{
		opts:     o,
		seed:     seed,
		seedInfo: info,
		selector: selector.New(seed, o.hasher.kind()),
		policy:   policy,
		cache:    newHeapRefCache(),
		logger:   o.logger,
		metrics:  o.metricsCollector,
		reporter: o.reporter,
		slowLog:  rate.Sometimes{First: 16, Interval: time.Second},
		resources: resource.NewController(resource.Config{
			MemoryLimitBytes: o.memoryLimit,
			ReportInterval:   o.reportInterval,
		}),
	}

	h.arena = o.arena
	if h.arena == nil {
		h.ownedArena = arena.New(
			arena.WithMemoryAcquirer(h.resources),
			arena.WithChunkSize(o.chunkSize),
			arena.WithGuardPages(o.guardPages),
		)
		h.arena = mmapArena{a: h.ownedArena}
	}

	h.system = o.system
	if h.system == nil {
		h.system = NewSystemAllocator()
	}

	h.registry = newRegistry(policy, h.arena, h.tableCreated)
	h.fallback = newFallbackPolicy(
		func() (FallbackMode, string) { return decideFallback(&h.opts) },
		h.fallbackResolved,
	)
	return h, nil
}

func deriveSeed(o *options) (entropy.Seed, entropy.Info, error) {
	if o.seed != nil {
		return *o.seed, entropy.Info{Source: "override", Quality: entropy.Override}, nil
	}
	d := o.deriver
	if d == nil {
		d = entropy.Process()
	}
	seed, info, err := d.Derive()
	if err != nil {
		return entropy.Seed{}, info, err
	}
	if o.requirePerBootSeed && info.Quality < entropy.PerBoot {
		return entropy.Seed{}, info, fmt.Errorf("%w: best source was %s (%s)", ErrNoPerBootSeed, info.Source, info.Quality)
	}
	return seed, info, nil
}

func (h *Heap) tableCreated(t *BucketTable) {
	h.counters.tables.Add(1)
	h.logger.LogTableCreated(t)
	if h.metrics != nil {
		h.metrics.RecordTableCreated(t.key.Size, t.key.Alignment, len(t.buckets)+1)
	}
}

func (h *Heap) fallbackResolved(mode FallbackMode, reason string) {
	h.logger.LogFallback(mode, reason)
	if h.metrics != nil {
		h.metrics.RecordFallback(mode)
	}
}

// RegisterCallSite registers an allocation site for objects of the given
// type identity and expected size. Alignment 0 means the minimum alignment.
func (h *Heap) RegisterCallSite(identity string, size, align uintptr, opts ...SiteOption) (*CallSite, error) {
	if identity == "" {
		return nil, ErrEmptyIdentity
	}
	key, err := sizeclass.KeyFor(size, align)
	if err != nil {
		return nil, err
	}
	site := &CallSite{
		id:       h.nextSite.Add(1) - 1,
		heap:     h,
		identity: identity,
		size:     size,
		align:    align,
		key:      key,
	}
	for _, opt := range opts {
		opt(site)
	}
	return site, nil
}

// Allocate returns zeroed memory for size bytes from the bucket that owns
// site's type. A size different from the site's expected size (a subtype
// allocated through the same site) is never served from the site's bucket,
// even when both sizes round to the same size class.
func (h *Heap) Allocate(site *CallSite, size uintptr) (unsafe.Pointer, error) {
	if site == nil {
		return nil, ErrNilCallSite
	}
	if site.heap != h {
		return nil, ErrForeignCallSite
	}

	var start time.Time
	if h.metrics != nil {
		start = time.Now()
	}

	p, path, err := h.allocate(site, size)

	if h.metrics != nil {
		h.metrics.RecordAllocate(path, time.Since(start), err)
	}
	if err != nil {
		h.logger.LogAllocFailure(site, size, err)
		return nil, &AllocError{Site: site.identity, Size: size, Path: path, cause: err}
	}
	return p, nil
}

func (h *Heap) allocate(site *CallSite, size uintptr) (unsafe.Pointer, AllocPath, error) {
	// Fast path
	switch h.fallback.mode() {
	case ForceDebugMalloc:
		return h.allocSystem(site, size)
	case DoNotFallBack:
		if size == site.size {
			if b := h.cache.get(site); b != nil {
				h.counters.fastHits.Add(1)
				p, err := b.alloc()
				return p, PathFast, err
			}
		}
	}
	return h.allocateSlow(site, size)
}

func (h *Heap) allocateSlow(site *CallSite, size uintptr) (unsafe.Pointer, AllocPath, error) {
	if h.fallback.resolve() == ForceDebugMalloc {
		return h.allocSystem(site, size)
	}

	if size != site.size {
		b, err := h.resolveMismatch(site, size)
		if err != nil {
			return nil, PathMismatch, err
		}
		p, err := b.alloc()
		return p, PathMismatch, err
	}

	b, err := h.resolveBucket(site.identity, site.key, site.nonCompact)
	if err != nil {
		return nil, PathSlow, err
	}
	h.cache.set(site, b)
	h.counters.slowResolutions.Add(1)
	h.slowLog.Do(func() { h.logger.LogSlowPath(site, size, b) })

	p, err := b.alloc()
	return p, PathSlow, err
}

func (h *Heap) resolveMismatch(site *CallSite, size uintptr) (*Bucket, error) {
	k := differentSizeKey{site: site.id, size: size, align: site.align}
	b, created, err := h.diff.getOrCreate(k, func() (*Bucket, error) {
		key, err := sizeclass.KeyFor(size, site.align)
		if err != nil {
			return nil, err
		}
		identity := site.identity + "#" + strconv.FormatUint(uint64(size), 10)
		if key != site.key {
			return h.resolveBucket(identity, key, site.nonCompact)
		}

		// Same size class as the site: never share the site's bucket.
		own, err := h.resolveBucket(site.identity, site.key, site.nonCompact)
		if err != nil {
			return nil, err
		}
		h.cache.set(site, own)
		return h.bucketExcluding(own.table, identity, own), nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		h.counters.mismatchEntries.Add(1)
		h.slowLog.Do(func() { h.logger.LogSlowPath(site, size, b) })
	} else {
		h.counters.mismatchHits.Add(1)
	}
	return b, nil
}

// resolveBucket picks the bucket for identity within key's table.
func (h *Heap) resolveBucket(identity string, key sizeclass.Key, nonCompact bool) (*Bucket, error) {
	t, err := h.registry.resolve(key)
	if err != nil {
		return nil, err
	}
	if nonCompact || (h.opts.dynamicCompaction && h.selector.Expanded(identity)) {
		return t.overflow, nil
	}
	return t.buckets[h.selector.Select(identity, uint32(len(t.buckets)))], nil //nolint:gosec // bucket counts are uint32
}

// bucketExcluding picks the bucket for identity within t, skipping own.
// Every table has at least one regular bucket plus the overflow bucket, so
// a different bucket always exists.
func (h *Heap) bucketExcluding(t *BucketTable, identity string, own *Bucket) *Bucket {
	n := uint32(len(t.buckets)) //nolint:gosec // bucket counts are uint32
	if own.IsOverflow() {
		return t.buckets[h.selector.Select(identity, n)]
	}
	if h.opts.dynamicCompaction && h.selector.Expanded(identity) {
		return t.overflow
	}
	idx := h.selector.Select(identity, n)
	if int(idx) != own.index {
		return t.buckets[idx]
	}
	if n == 1 {
		return t.overflow
	}
	return t.buckets[(idx+1)%n]
}

func (h *Heap) allocSystem(site *CallSite, size uintptr) (unsafe.Pointer, AllocPath, error) {
	if size > sizeclass.MaxSize {
		return nil, PathSystem, fmt.Errorf("%w: %d", ErrSizeTooLarge, size)
	}
	h.counters.systemAllocs.Add(1)
	p, err := h.system.Malloc(size, site.key.Alignment)
	return p, PathSystem, err
}

// Deallocate releases memory returned by Allocate. Ownership is resolved
// from the pointer. Deallocating nil is a no-op.
func (h *Heap) Deallocate(p unsafe.Pointer) error {
	if p == nil {
		return nil
	}

	var start time.Time
	if h.metrics != nil {
		start = time.Now()
	}

	var err error
	if h.fallback.mode() == ForceDebugMalloc {
		err = h.system.Free(p)
	} else {
		err = h.arena.Free(p)
	}
	err = translateError(err)

	if h.metrics != nil {
		h.metrics.RecordDeallocate(time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("isoheap: deallocate: %w", err)
	}
	return nil
}

// FallbackMode resolves (if needed) and returns the fallback decision.
func (h *Heap) FallbackMode() FallbackMode {
	return h.fallback.resolve()
}

// BucketFor returns the bucket that serves site's expected size, resolving
// it if needed. It does not allocate.
func (h *Heap) BucketFor(site *CallSite) (*Bucket, error) {
	if site == nil {
		return nil, ErrNilCallSite
	}
	if site.heap != h {
		return nil, ErrForeignCallSite
	}
	if b := h.cache.get(site); b != nil {
		return b, nil
	}
	b, err := h.resolveBucket(site.identity, site.key, site.nonCompact)
	if err != nil {
		return nil, err
	}
	h.cache.set(site, b)
	return b, nil
}

// Table returns the table of the size class for (size, align) if it exists.
func (h *Heap) Table(size, align uintptr) (*BucketTable, bool) {
	key, err := sizeclass.KeyFor(size, align)
	if err != nil {
		return nil, false
	}
	return h.registry.lookup(key)
}

// SetBucketCounts changes the bucket counts. Changing them after the first
// size class table was created is a contract violation: it panics in debug
// mode and is otherwise ignored.
func (h *Heap) SetBucketCounts(small, large uint32) error {
	return h.policyChange("SetBucketCounts", h.policy.SetBucketCounts(small, large))
}

// SetSmallSizeThreshold changes the small size threshold, with the same
// contract as SetBucketCounts.
func (h *Heap) SetSmallSizeThreshold(size uintptr) error {
	return h.policyChange("SetSmallSizeThreshold", h.policy.SetSmallSizeThreshold(size))
}

func (h *Heap) policyChange(op string, err error) error {
	if !errors.Is(err, sizeclass.ErrPolicyFrozen) {
		return err
	}
	h.logger.LogPolicyViolation(op, err)
	if h.opts.debug {
		panic(fmt.Errorf("isoheap: %s: %w", op, err))
	}
	return nil
}

// SeedFingerprint returns a non-secret identifier of the seed.
func (h *Heap) SeedFingerprint() string {
	return h.seed.Fingerprint()
}

// Close releases the default arena's memory. Every pointer handed out by the
// heap becomes invalid. A caller-supplied arena is left untouched.
//
// IMPORTANT: Do NOT call Close concurrently with allocations.
func (h *Heap) Close() error {
	if h.ownedArena == nil {
		return nil
	}
	return h.ownedArena.Close()
}
