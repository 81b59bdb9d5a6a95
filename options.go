package isoheap

import (
	"log/slog"
	"os"
	"time"

	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/entropy"
	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/selector"
)

// HashStrategy selects the bucket hashing function.
type HashStrategy int

const (
	// HashKeyed uses BLAKE2b-256 keyed by the seed (default).
	HashKeyed HashStrategy = iota
	// HashMix uses a multi-round non-cryptographic mixer. It is best-effort
	// obfuscation, not a security guarantee.
	HashMix
)

func (s HashStrategy) kind() selector.Kind {
	if s == HashMix {
		return selector.Mix
	}
	return selector.Keyed
}

type options struct {
	smallBuckets       uint32
	largeBuckets       uint32
	smallThreshold     uintptr
	requirePerBootSeed bool
	dynamicCompaction  bool
	seed               *entropy.Seed
	deriver            *entropy.Deriver
	hasher             HashStrategy
	disabled           bool
	lookupEnv          func(string) (string, bool)
	sanitizerFallback  bool
	arena              Arena
	system             SystemAllocator
	memoryLimit        int64
	chunkSize          int
	guardPages         bool
	metricsCollector   MetricsCollector
	logger             *Logger
	reporter           Reporter
	reportInterval     time.Duration
	debug              bool
}

// Option configures a Heap.
//
// Every option is consumed by New, before the first allocation.
type Option func(*options)

// WithBucketCounts sets how many buckets small and large size classes get.
// Both counts must be at least 1.
func WithBucketCounts(small, large uint32) Option {
	return func(o *options) {
		o.smallBuckets = small
		o.largeBuckets = large
	}
}

// WithSmallSizeThreshold sets the largest size class that counts as small.
func WithSmallSizeThreshold(size uintptr) Option {
	return func(o *options) {
		o.smallThreshold = size
	}
}

// WithRequirePerBootSeed makes New fail with ErrNoPerBootSeed unless the
// seed comes from a per-boot source (or an explicit override).
func WithRequirePerBootSeed() Option {
	return func(o *options) {
		o.requirePerBootSeed = true
	}
}

// WithDynamicCompaction lets the per-type compaction toggle route some types
// to the overflow (non-compact) bucket of their size class.
func WithDynamicCompaction(enabled bool) Option {
	return func(o *options) {
		o.dynamicCompaction = enabled
	}
}

// WithSeed overrides seed derivation with a reproducible value.
// Intended for fuzzing and tests; it removes the unpredictability of bucket
// assignment.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		s := entropy.SeedFromUint64(seed)
		o.seed = &s
	}
}

// WithSeedKey overrides seed derivation with a full 32-byte key.
func WithSeedKey(key [entropy.SeedSize]byte) Option {
	return func(o *options) {
		s := entropy.Seed(key)
		o.seed = &s
	}
}

// WithHashStrategy selects the bucket hashing function.
func WithHashStrategy(s HashStrategy) Option {
	return func(o *options) {
		o.hasher = s
	}
}

// WithIsolationDisabled routes every allocation to the system allocator.
func WithIsolationDisabled() Option {
	return func(o *options) {
		o.disabled = true
	}
}

// WithLookupEnv replaces os.LookupEnv for the fallback signals.
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(o *options) {
		if lookup == nil {
			lookup = os.LookupEnv
		}
		o.lookupEnv = lookup
	}
}

// WithSanitizerFallback controls whether race- or asan-instrumented builds
// fall back to the system allocator. Enabled by default.
func WithSanitizerFallback(enabled bool) Option {
	return func(o *options) {
		o.sanitizerFallback = enabled
	}
}

// WithArena replaces the default mmap-backed arena.
func WithArena(a Arena) Option {
	return func(o *options) {
		o.arena = a
	}
}

// WithSystemAllocator replaces the Go-heap allocator used under ForceDebugMalloc.
func WithSystemAllocator(s SystemAllocator) Option {
	return func(o *options) {
		o.system = s
	}
}

// WithMemoryLimit caps the memory the default arena may reserve.
// Allocations beyond it fail with ErrMemoryLimitExceeded. 0 means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithChunkSize sets the target chunk size of the default arena.
func WithChunkSize(bytes int) Option {
	return func(o *options) {
		o.chunkSize = bytes
	}
}

// WithGuardPages places an inaccessible page after every arena chunk.
func WithGuardPages(enabled bool) Option {
	return func(o *options) {
		o.guardPages = enabled
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &isoheap.BasicMetricsCollector{}
//	h, _ := isoheap.New(isoheap.WithMetricsCollector(metrics))
//	// ... use h ...
//	stats := metrics.GetStats()
//	fmt.Printf("Fast: %d, Slow: %d\n", stats.FastAllocs, stats.SlowAllocs)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := isoheap.NewJSONLogger(slog.LevelInfo)
//	h, _ := isoheap.New(isoheap.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithReporter configures where Heap.Report sends occupancy snapshots.
func WithReporter(r Reporter) Option {
	return func(o *options) {
		o.reporter = r
	}
}

// WithReportInterval sets the minimum spacing between occupancy reports.
func WithReportInterval(d time.Duration) Option {
	return func(o *options) {
		o.reportInterval = d
	}
}

// WithDebug turns contract violations (such as changing the bucket policy
// after the first size class was registered) into panics.
func WithDebug(enabled bool) Option {
	return func(o *options) {
		o.debug = enabled
	}
}

func withDeriver(d *entropy.Deriver) Option {
	return func(o *options) {
		o.deriver = d
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		lookupEnv:         os.LookupEnv,
		sanitizerFallback: true,
		metricsCollector:  nil,
		logger:            NoopLogger(),
		reporter:          NoopReporter{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.reporter == nil {
		o.reporter = NoopReporter{}
	}
	return o
}
