package sizeclass

import (
	"errors"
	"sync"
	"sync/atomic"
)

const (
	// DefaultSmallBucketCount is the bucket count for classes at or below the threshold.
	DefaultSmallBucketCount = 5
	// DefaultLargeBucketCount is the bucket count for classes above the threshold.
	DefaultLargeBucketCount = 3
	// DefaultSmallSizeThreshold separates small from large classes.
	DefaultSmallSizeThreshold = SmallThreshold
)

var (
	// ErrPolicyFrozen is returned when the policy changes after the first
	// bucket table was created.
	ErrPolicyFrozen = errors.New("sizeclass: bucket policy is frozen")
	// ErrInvalidBucketCount is returned for a zero bucket count.
	ErrInvalidBucketCount = errors.New("sizeclass: bucket count must be at least 1")
)

// Policy decides how many buckets a size class gets.
type Policy struct {
	mu        sync.Mutex // serializes setters against Freeze
	small     atomic.Uint32
	large     atomic.Uint32
	threshold atomic.Uintptr
	frozen    atomic.Bool
}

// NewPolicy returns a policy with the default counts and threshold.
func NewPolicy() *Policy {
	p := &Policy{}
	p.small.Store(DefaultSmallBucketCount)
	p.large.Store(DefaultLargeBucketCount)
	p.threshold.Store(DefaultSmallSizeThreshold)
	return p
}

// SetBucketCounts sets the small and large bucket counts.
func (p *Policy) SetBucketCounts(small, large uint32) error {
	if small == 0 || large == 0 {
		return ErrInvalidBucketCount
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frozen.Load() {
		return ErrPolicyFrozen
	}
	p.small.Store(small)
	p.large.Store(large)
	return nil
}

// SetSmallSizeThreshold sets the size at or below which classes count as small.
func (p *Policy) SetSmallSizeThreshold(threshold uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frozen.Load() {
		return ErrPolicyFrozen
	}
	p.threshold.Store(threshold)
	return nil
}

// Freeze forbids further changes. It is idempotent.
func (p *Policy) Freeze() {
	p.mu.Lock()
	p.frozen.Store(true)
	p.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (p *Policy) Frozen() bool { return p.frozen.Load() }

// BucketCounts returns the small and large counts.
func (p *Policy) BucketCounts() (small, large uint32) {
	return p.small.Load(), p.large.Load()
}

// SmallSizeThreshold returns the threshold.
func (p *Policy) SmallSizeThreshold() uintptr { return p.threshold.Load() }

// BucketCountFor returns the number of regular buckets for k.
func (p *Policy) BucketCountFor(k Key) uint32 {
	if k.Size <= p.threshold.Load() {
		return p.small.Load()
	}
	return p.large.Load()
}
