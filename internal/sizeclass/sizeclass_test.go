package sizeclass

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound_Tiers(t *testing.T) {
	tests := []struct {
		size uintptr
		want uintptr
	}{
		{0, 16},
		{1, 16},
		{10, 16},
		{16, 16},
		{17, 32},
		{32, 32},
		{48, 48},
		{120, 128},
		{128, 128},
		{129, 144},
		{340, 352},
		{353, 384},
		{2000, 2032},
		{2033, 2048},
		{2049, 2672},
		{60000, 62992},
		{65536, 65536},
		{65537, 69632},
		{100000, 102400},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.size), "size=%d", tt.size)
	}
}

func TestRound_Idempotent(t *testing.T) {
	for size := uintptr(0); size <= 3*MaxTableSize; size += 7 {
		c := Round(size)
		require.Equal(t, c, Round(c), "size=%d", size)
		require.GreaterOrEqual(t, c, size)
	}
}

func TestRound_Monotone(t *testing.T) {
	prev := Round(0)
	for size := uintptr(1); size <= 3*MaxTableSize; size++ {
		c := Round(size)
		require.GreaterOrEqual(t, c, prev, "size=%d", size)
		prev = c
	}
}

func TestClasses_Table(t *testing.T) {
	c := Classes()
	assert.True(t, slices.IsSorted(c))
	assert.Equal(t, uintptr(16), c[0])
	assert.Equal(t, uintptr(MaxTableSize), c[len(c)-1])
	assert.Contains(t, c, uintptr(MidThreshold))
	for i, s := range c {
		assert.Zero(t, s%Granularity, "class %d", s)
		if i > 0 {
			assert.GreaterOrEqual(t, s-c[i-1], uintptr(Granularity))
		}
	}
	// Geometric tiers bound the number of distinct classes.
	assert.Less(t, len(c), 80)

	c[0] = 999
	assert.Equal(t, uintptr(16), Classes()[0])
}

func TestKeyFor(t *testing.T) {
	tests := []struct {
		name        string
		size, align uintptr
		want        Key
		err         error
	}{
		{name: "default alignment", size: 10, align: 0, want: Key{16, 16}},
		{name: "small alignment", size: 17, align: 8, want: Key{32, 16}},
		{name: "odd alignment", size: 40, align: 3, want: Key{48, 16}},
		{name: "large alignment", size: 40, align: 64, want: Key{64, 64}},
		{name: "non power of two", size: 100, align: 48, want: Key{128, 64}},
		{name: "zero size large alignment", size: 0, align: 128, want: Key{128, 128}},
		{name: "page alignment", size: 5000, align: 4096, want: Key{8192, 4096}},
		{name: "alignment too large", size: 8, align: 8192, err: ErrInvalidAlignment},
		{name: "size too large", size: ^uintptr(0), align: 16, err: ErrSizeTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := KeyFor(tt.size, tt.align)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, k)

			again, err := KeyFor(k.Size, k.Alignment)
			require.NoError(t, err)
			assert.Equal(t, k, again)
		})
	}
}

func TestMaxSize(t *testing.T) {
	var limit uintptr = MaxSize
	assert.Zero(t, limit%PageSize)
	assert.Equal(t, limit, Round(limit))

	k, err := KeyFor(limit, 0)
	require.NoError(t, err)
	assert.Equal(t, limit, k.Size)

	_, err = KeyFor(limit+1, 0)
	require.ErrorIs(t, err, ErrSizeTooLarge)
}

func TestKey_Order(t *testing.T) {
	a := Key{32, 16}
	b := Key{32, 64}
	c := Key{48, 16}

	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
	assert.Equal(t, "32x16", a.String())

	keys := []Key{c, b, a}
	slices.SortFunc(keys, Key.Compare)
	assert.Equal(t, []Key{a, b, c}, keys)

	m := map[Key]int{a: 1}
	assert.Equal(t, 1, m[Key{32, 16}])
}

func TestPolicy(t *testing.T) {
	p := NewPolicy()
	small, large := p.BucketCounts()
	assert.Equal(t, uint32(DefaultSmallBucketCount), small)
	assert.Equal(t, uint32(DefaultLargeBucketCount), large)

	require.NoError(t, p.SetBucketCounts(7, 2))
	require.NoError(t, p.SetSmallSizeThreshold(256))
	assert.ErrorIs(t, p.SetBucketCounts(0, 2), ErrInvalidBucketCount)

	assert.Equal(t, uint32(7), p.BucketCountFor(Key{256, 16}))
	assert.Equal(t, uint32(2), p.BucketCountFor(Key{272, 16}))

	p.Freeze()
	p.Freeze()
	assert.True(t, p.Frozen())
	assert.ErrorIs(t, p.SetBucketCounts(9, 9), ErrPolicyFrozen)
	assert.ErrorIs(t, p.SetSmallSizeThreshold(1), ErrPolicyFrozen)

	small, large = p.BucketCounts()
	assert.Equal(t, uint32(7), small)
	assert.Equal(t, uint32(2), large)
	assert.Equal(t, uintptr(256), p.SmallSizeThreshold())
}

func TestPolicy_ConcurrentFreeze(t *testing.T) {
	p := NewPolicy()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = p.SetBucketCounts(4, 4)
		}()
		go func() {
			defer wg.Done()
			p.Freeze()
		}()
	}
	wg.Wait()
	assert.ErrorIs(t, p.SetBucketCounts(1, 1), ErrPolicyFrozen)
}
