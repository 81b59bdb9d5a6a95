// Package resource implements the Controller that governs arena memory and
// diagnostic output.
//
//	┌──────────────────────────────────────────────┐
//	│                  Controller                  │
//	├──────────────────────┬───────────────────────┤
//	│  Memory Limit        │  Report Limiter       │
//	│  (fail-fast)         │  (token bucket)       │
//	├──────────────────────┼───────────────────────┤
//	│  AcquireMemory       │  AllowReport          │
//	│  ReleaseMemory       │                       │
//	│  MemoryUsage         │                       │
//	└──────────────────────┴───────────────────────┘
//
// # Memory Management
//
// Arena chunks are reserved through AcquireMemory before they are mapped.
// Acquisition never blocks: when the limit would be exceeded it returns
// ErrMemoryLimitExceeded immediately, and the allocation that needed the
// chunk fails with that error.
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB limit
//	})
//
// # Report Limiting
//
// Occupancy reports walk every bucket; AllowReport bounds how often they run.
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully: they become no-ops and
// every request is allowed.
package resource
