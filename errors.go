package isoheap

import (
	"errors"
	"fmt"

	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/arena"
	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/entropy"
	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/mem"
	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/resource"
	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/sizeclass"
)

var (
	// ErrNilCallSite is returned when allocating without a call site.
	ErrNilCallSite = errors.New("isoheap: nil call site")
	// ErrForeignCallSite is returned when a call site is used with a heap that did not register it.
	ErrForeignCallSite = errors.New("isoheap: call site belongs to another heap")
	// ErrEmptyIdentity is returned when registering a call site without a type identity.
	ErrEmptyIdentity = errors.New("isoheap: empty type identity")
	// ErrPointerType is returned for types containing Go pointers.
	ErrPointerType = errors.New("isoheap: type contains Go pointers")
	// ErrAlreadyInitialized is returned when Init runs after the default heap exists.
	ErrAlreadyInitialized = errors.New("isoheap: default heap already initialized")
	// ErrReportThrottled is returned when an occupancy report is requested too often.
	ErrReportThrottled = errors.New("isoheap: report throttled")

	// ErrPolicyFrozen is returned (or raised in debug mode) when the bucket
	// policy changes after the first size class table was created.
	ErrPolicyFrozen = sizeclass.ErrPolicyFrozen
	// ErrInvalidBucketCount is returned for a zero bucket count.
	ErrInvalidBucketCount = sizeclass.ErrInvalidBucketCount
	// ErrInvalidAlignment is returned for unsupported alignments.
	ErrInvalidAlignment = sizeclass.ErrInvalidAlignment
	// ErrSizeTooLarge is returned for requests above the largest size class.
	ErrSizeTooLarge = sizeclass.ErrSizeTooLarge
	// ErrNoPerBootSeed is returned by New when a per-boot seed is required
	// and unavailable.
	ErrNoPerBootSeed = entropy.ErrNoPerBootSeed
	// ErrMemoryLimitExceeded is returned when the arena memory limit is reached.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
	// ErrForeignPointer is returned when deallocating memory the heap does not own.
	ErrForeignPointer = errors.New("isoheap: pointer not owned by heap")
	// ErrDoubleFree is returned when deallocating a slot twice.
	ErrDoubleFree = arena.ErrDoubleFree
	// ErrClosed is returned after Close.
	ErrClosed = arena.ErrClosed
)

// AllocError reports an allocation the heap could not satisfy.
//
// The original underlying error can be accessed via errors.Unwrap.
type AllocError struct {
	Site  string
	Size  uintptr
	Path  AllocPath
	cause error
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("isoheap: allocate %d bytes for %s (%s path): %v", e.Size, e.Site, e.Path, e.cause)
}

func (e *AllocError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Foreign pointer unification across allocators.
	if errors.Is(err, arena.ErrForeignPointer) || errors.Is(err, mem.ErrUnknownPointer) {
		return fmt.Errorf("%w: %w", ErrForeignPointer, err)
	}
	if errors.Is(err, arena.ErrMisalignedPointer) {
		return fmt.Errorf("%w: %w", ErrForeignPointer, err)
	}

	return err
}
