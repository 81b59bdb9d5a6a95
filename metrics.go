package isoheap

import (
	"sync/atomic"
	"time"
)

// AllocPath identifies how an allocation was routed.
type AllocPath int

const (
	// PathFast is a call-site cache hit.
	PathFast AllocPath = iota
	// PathSlow resolved the bucket through the registry.
	PathSlow
	// PathMismatch served a request whose size differs from the call site's.
	PathMismatch
	// PathSystem bypassed isolated heaps.
	PathSystem
)

func (p AllocPath) String() string {
	switch p {
	case PathFast:
		return "fast"
	case PathSlow:
		return "slow"
	case PathMismatch:
		return "mismatch"
	case PathSystem:
		return "system"
	default:
		return "unknown"
	}
}

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Allocation paths are timed only when a collector is configured.
type MetricsCollector interface {
	// RecordAllocate is called after each allocation.
	RecordAllocate(path AllocPath, duration time.Duration, err error)

	// RecordDeallocate is called after each deallocation.
	RecordDeallocate(duration time.Duration, err error)

	// RecordTableCreated is called when a size class gets its bucket table.
	RecordTableCreated(size, alignment uintptr, buckets int)

	// RecordFallback is called once when the fallback policy resolves.
	RecordFallback(mode FallbackMode)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAllocate(AllocPath, time.Duration, error) {}
func (NoopMetricsCollector) RecordDeallocate(time.Duration, error)          {}
func (NoopMetricsCollector) RecordTableCreated(uintptr, uintptr, int)       {}
func (NoopMetricsCollector) RecordFallback(FallbackMode)                    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	FastAllocs       atomic.Int64
	SlowAllocs       atomic.Int64
	MismatchAllocs   atomic.Int64
	SystemAllocs     atomic.Int64
	AllocErrors      atomic.Int64
	AllocTotalNanos  atomic.Int64
	Deallocs         atomic.Int64
	DeallocErrors    atomic.Int64
	TablesCreated    atomic.Int64
	BucketsCreated   atomic.Int64
	FallbackDecision atomic.Int32
}

// RecordAllocate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAllocate(path AllocPath, duration time.Duration, err error) {
	switch path {
	case PathFast:
		b.FastAllocs.Add(1)
	case PathSlow:
		b.SlowAllocs.Add(1)
	case PathMismatch:
		b.MismatchAllocs.Add(1)
	case PathSystem:
		b.SystemAllocs.Add(1)
	}
	b.AllocTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AllocErrors.Add(1)
	}
}

// RecordDeallocate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDeallocate(duration time.Duration, err error) {
	b.Deallocs.Add(1)
	if err != nil {
		b.DeallocErrors.Add(1)
	}
}

// RecordTableCreated implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTableCreated(size, alignment uintptr, buckets int) {
	b.TablesCreated.Add(1)
	b.BucketsCreated.Add(int64(buckets))
}

// RecordFallback implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFallback(mode FallbackMode) {
	b.FallbackDecision.Store(int32(mode))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	fast := b.FastAllocs.Load()
	slow := b.SlowAllocs.Load()
	mismatch := b.MismatchAllocs.Load()
	system := b.SystemAllocs.Load()
	total := fast + slow + mismatch + system

	var avg int64
	if total > 0 {
		avg = b.AllocTotalNanos.Load() / total
	}

	return BasicMetricsStats{
		FastAllocs:     fast,
		SlowAllocs:     slow,
		MismatchAllocs: mismatch,
		SystemAllocs:   system,
		AllocErrors:    b.AllocErrors.Load(),
		AllocAvgNanos:  avg,
		Deallocs:       b.Deallocs.Load(),
		DeallocErrors:  b.DeallocErrors.Load(),
		TablesCreated:  b.TablesCreated.Load(),
		BucketsCreated: b.BucketsCreated.Load(),
		Fallback:       FallbackMode(b.FallbackDecision.Load()),
	}
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	FastAllocs     int64
	SlowAllocs     int64
	MismatchAllocs int64
	SystemAllocs   int64
	AllocErrors    int64
	AllocAvgNanos  int64
	Deallocs       int64
	DeallocErrors  int64
	TablesCreated  int64
	BucketsCreated int64
	Fallback       FallbackMode
}
