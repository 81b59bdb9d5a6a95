package sizeclass

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sort"
)

const (
	// Granularity is the spacing of the smallest classes and the minimum alignment.
	Granularity = 16
	// SmallThreshold is the end of the fixed-granularity tier.
	SmallThreshold = 128
	// MidThreshold is the end of the slow geometric tier.
	MidThreshold = 2048
	// MaxTableSize is the largest class in the geometric table.
	MaxTableSize = 64 << 10
	// PageSize is the spacing of classes above MaxTableSize.
	PageSize = 4096
	// MaxAlignment is the largest supported alignment.
	MaxAlignment = PageSize
	// MaxSize is the largest supported request: 4 GiB, or the largest
	// page-aligned uintptr on 32-bit platforms.
	MaxSize = min(1<<32, math.MaxUint&^(PageSize-1))
)

var (
	// ErrInvalidAlignment is returned for alignments above MaxAlignment.
	ErrInvalidAlignment = errors.New("sizeclass: invalid alignment")
	// ErrSizeTooLarge is returned for sizes above MaxSize.
	ErrSizeTooLarge = errors.New("sizeclass: size too large")
)

var classes = buildClasses()

func buildClasses() []uintptr {
	var c []uintptr
	for s := uintptr(Granularity); s <= SmallThreshold; s += Granularity {
		c = append(c, s)
	}

	prev := uintptr(SmallThreshold)
	for prev < MaxTableSize {
		var next uintptr
		if prev < MidThreshold {
			next = roundUp(prev*105/100, Granularity)
		} else {
			next = roundUp(prev*13/10, Granularity)
		}
		next = max(next, prev+Granularity)
		if prev < MidThreshold && next > MidThreshold {
			next = MidThreshold
		}
		next = min(next, MaxTableSize)
		c = append(c, next)
		prev = next
	}
	return c
}

// Classes returns a copy of the precomputed class table.
func Classes() []uintptr {
	out := make([]uintptr, len(classes))
	copy(out, classes)
	return out
}

// Round returns the size class for size. Round(0) is Granularity.
// Sizes above MaxSize are returned unchanged.
func Round(size uintptr) uintptr {
	if size > MaxSize {
		return size
	}
	if size > MaxTableSize {
		return roundUp(size, PageSize)
	}
	i := sort.Search(len(classes), func(i int) bool { return classes[i] >= size })
	return classes[i]
}

// Key identifies a size class.
type Key struct {
	Size      uintptr
	Alignment uintptr
}

// KeyFor canonicalizes a request. Alignment is rounded up to a power of two
// of at least Granularity; zero means Granularity.
func KeyFor(size, align uintptr) (Key, error) {
	if size > MaxSize {
		return Key{}, fmt.Errorf("%w: %d", ErrSizeTooLarge, size)
	}
	a, err := normalizeAlignment(align)
	if err != nil {
		return Key{}, err
	}
	if a == Granularity {
		return Key{Size: Round(size), Alignment: a}, nil
	}
	return Key{Size: roundUp(max(size, 1), a), Alignment: a}, nil
}

func normalizeAlignment(align uintptr) (uintptr, error) {
	if align <= Granularity {
		return Granularity, nil
	}
	if align > MaxAlignment {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAlignment, align)
	}
	if align&(align-1) != 0 {
		align = 1 << bits.Len(uint(align))
	}
	return align, nil
}

// Compare orders keys by size, then alignment.
func (k Key) Compare(o Key) int {
	if c := cmp.Compare(k.Size, o.Size); c != 0 {
		return c
	}
	return cmp.Compare(k.Alignment, o.Alignment)
}

// Less reports whether k orders before o.
func (k Key) Less(o Key) bool { return k.Compare(o) < 0 }

func (k Key) String() string {
	return fmt.Sprintf("%dx%d", k.Size, k.Alignment)
}

func roundUp(n, a uintptr) uintptr {
	return (n + a - 1) &^ (a - 1)
}
