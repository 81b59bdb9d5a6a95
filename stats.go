package isoheap

import "fmt"

// Stats is a point-in-time snapshot of a Heap.
type Stats struct {
	Seed     SeedStats    `json:"seed"`
	Fallback string       `json:"fallback"`
	Policy   PolicyStats  `json:"policy"`
	Paths    PathStats    `json:"paths"`
	Memory   MemoryStats  `json:"memory"`
	Tables   []TableStats `json:"tables"`
}

// SeedStats describes where the seed came from. It never includes the seed.
type SeedStats struct {
	Source      string `json:"source"`
	Quality     string `json:"quality"`
	Fallback    bool   `json:"fallback"`
	Fingerprint string `json:"fingerprint"`
}

// PolicyStats is the size-class policy in effect.
type PolicyStats struct {
	SmallBuckets       uint32  `json:"small_buckets"`
	LargeBuckets       uint32  `json:"large_buckets"`
	SmallSizeThreshold uintptr `json:"small_size_threshold"`
	Frozen             bool    `json:"frozen"`
	DynamicCompaction  bool    `json:"dynamic_compaction"`
	Hash               string  `json:"hash"`
}

// PathStats counts how allocations were dispatched.
type PathStats struct {
	FastHits        uint64 `json:"fast_hits"`
	SlowResolutions uint64 `json:"slow_resolutions"`
	MismatchEntries uint64 `json:"mismatch_entries"`
	MismatchHits    uint64 `json:"mismatch_hits"`
	SystemAllocs    uint64 `json:"system_allocs"`
	TablesCreated   uint64 `json:"tables_created"`
}

// MemoryStats is the off-heap memory accounted against the memory limit.
type MemoryStats struct {
	UsedBytes  int64 `json:"used_bytes"`
	PeakBytes  int64 `json:"peak_bytes"`
	LimitBytes int64 `json:"limit_bytes"`
}

// TableStats describes one size class table.
type TableStats struct {
	Size      uintptr       `json:"size"`
	Alignment uintptr       `json:"alignment"`
	Buckets   []BucketStats `json:"buckets"`
}

// BucketStats describes one bucket. Occupancy fields are zero when the
// arena does not expose them.
type BucketStats struct {
	Name          string `json:"name"`
	Index         int    `json:"index"`
	Overflow      bool   `json:"overflow,omitempty"`
	LiveSlots     uint64 `json:"live_slots"`
	FreeSlots     uint64 `json:"free_slots"`
	TotalAllocs   uint64 `json:"total_allocs"`
	TotalFrees    uint64 `json:"total_frees"`
	BytesReserved uint64 `json:"bytes_reserved"`
}

// Stats returns a snapshot of the heap. It does not resolve the fallback
// mode, so a heap that never allocated reports "undecided".
func (h *Heap) Stats() Stats {
	small, large := h.policy.BucketCounts()
	s := Stats{
		Seed: SeedStats{
			Source:      h.seedInfo.Source,
			Quality:     h.seedInfo.Quality.String(),
			Fallback:    h.seedInfo.Fallback,
			Fingerprint: h.seed.Fingerprint(),
		},
		Fallback: h.fallback.mode().String(),
		Policy: PolicyStats{
			SmallBuckets:       small,
			LargeBuckets:       large,
			SmallSizeThreshold: h.policy.SmallSizeThreshold(),
			Frozen:             h.policy.Frozen(),
			DynamicCompaction:  h.opts.dynamicCompaction,
			Hash:               h.selector.Kind().String(),
		},
		Paths: PathStats{
			FastHits:        h.counters.fastHits.Load(),
			SlowResolutions: h.counters.slowResolutions.Load(),
			MismatchEntries: h.counters.mismatchEntries.Load(),
			MismatchHits:    h.counters.mismatchHits.Load(),
			SystemAllocs:    h.counters.systemAllocs.Load(),
			TablesCreated:   h.counters.tables.Load(),
		},
		Memory: MemoryStats{
			UsedBytes:  h.resources.MemoryUsage(),
			PeakBytes:  h.resources.MemoryPeak(),
			LimitBytes: h.resources.MemoryLimit(),
		},
	}

	for _, t := range h.registry.tablesSnapshot() {
		ts := TableStats{
			Size:      t.key.Size,
			Alignment: t.key.Alignment,
			Buckets:   make([]BucketStats, 0, len(t.buckets)+1),
		}
		for _, b := range t.buckets {
			ts.Buckets = append(ts.Buckets, bucketStats(b))
		}
		ts.Buckets = append(ts.Buckets, bucketStats(t.overflow))
		s.Tables = append(s.Tables, ts)
	}
	return s
}

func bucketStats(b *Bucket) BucketStats {
	bs := BucketStats{
		Name:     b.desc.Name,
		Index:    b.index,
		Overflow: b.IsOverflow(),
	}
	if hs, ok := b.heap.(heapStatser); ok {
		st := hs.Stats()
		bs.LiveSlots = st.LiveSlots
		bs.FreeSlots = st.FreeSlots
		bs.TotalAllocs = st.TotalAllocs
		bs.TotalFrees = st.TotalFrees
		bs.BytesReserved = st.BytesReserved
	}
	return bs
}

// LiveSlots sums live slots over all buckets.
func (s Stats) LiveSlots() uint64 {
	var n uint64
	for _, t := range s.Tables {
		for _, b := range t.Buckets {
			n += b.LiveSlots
		}
	}
	return n
}

func (s Stats) String() string {
	return fmt.Sprintf("isoheap{fallback: %s, seed: %s/%s, tables: %d, live: %d}",
		s.Fallback, s.Seed.Source, s.Seed.Quality, len(s.Tables), s.LiveSlots())
}
