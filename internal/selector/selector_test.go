package selector

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/entropy"
)

var kinds = []Kind{Keyed, Mix}

func TestSelectBucket_KnownValues(t *testing.T) {
	// BLAKE2b-256 keyed with SeedFromUint64(n), first 8 digest bytes LE, mod 5.
	assert.Equal(t, uint32(0), SelectBucket("Foo", entropy.SeedFromUint64(0x1), 5))
	assert.Equal(t, uint32(4), SelectBucket("Foo", entropy.SeedFromUint64(0x2), 5))

	m1 := New(entropy.SeedFromUint64(0x1), Mix)
	m2 := New(entropy.SeedFromUint64(0x2), Mix)
	assert.Equal(t, uint32(0), m1.Select("Foo", 5))
	assert.Equal(t, uint32(4), m2.Select("Foo", 5))
}

func TestSelector_Deterministic(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			seed := entropy.SeedFromUint64(0xfeedface)
			s := New(seed, kind)
			other := New(seed, kind)

			for n := uint32(1); n <= 64; n++ {
				for i := 0; i < 32; i++ {
					id := fmt.Sprintf("WebCore::Node%d", i)
					first := s.Select(id, n)
					for r := 0; r < 4; r++ {
						assert.Equal(t, first, s.Select(id, n))
					}
					assert.Equal(t, first, other.Select(id, n))
				}
			}
		})
	}
}

func TestSelector_Range(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			s := New(entropy.SeedFromUint64(7), kind)
			for _, n := range []uint32{1, 2, 3, 5, 8, 13, 1 << 20, ^uint32(0)} {
				for i := 0; i < 200; i++ {
					idx := s.Select(fmt.Sprintf("T%d", i), n)
					assert.Less(t, idx, n)
				}
			}
			assert.Equal(t, uint32(0), s.Select("anything", 1))
		})
	}
}

func TestSelector_ZeroCountPanics(t *testing.T) {
	s := New(entropy.SeedFromUint64(1), Keyed)
	assert.Panics(t, func() { s.Select("Foo", 0) })
}

func chiSquare(s *Selector, k uint32, n int) float64 {
	counts := make([]int, k)
	for i := 0; i < n; i++ {
		counts[s.Select(fmt.Sprintf("Type%d", i), k)]++
	}
	expected := float64(n) / float64(k)
	var chi float64
	for _, c := range counts {
		d := float64(c) - expected
		chi += d * d / expected
	}
	return chi
}

func TestSelector_Distribution(t *testing.T) {
	// Critical values at p = 0.001.
	tests := []struct {
		k        uint32
		critical float64
	}{
		{k: 8, critical: 24.32},
		{k: 13, critical: 32.91},
	}

	for _, kind := range kinds {
		s := New(entropy.SeedFromUint64(42), kind)
		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s/k=%d", kind, tt.k), func(t *testing.T) {
				chi := chiSquare(s, tt.k, int(tt.k)*1000)
				assert.Less(t, chi, tt.critical)
			})
		}
	}
}

func TestSelector_SeedIndependence(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			ref := New(entropy.SeedFromUint64(1), kind).Select("Foo", 16)

			differ := 0
			const samples = 1000
			for v := uint64(1); v <= samples; v++ {
				if New(entropy.SeedFromUint64(v), kind).Select("Foo", 16) != ref {
					differ++
				}
			}
			// Expected fraction is 15/16.
			assert.Greater(t, float64(differ)/samples, 0.85)
		})
	}
}

func TestSelector_Expanded(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			seed := entropy.SeedFromUint64(42)
			s := New(seed, kind)

			expanded := 0
			const n = 4000
			for i := 0; i < n; i++ {
				id := fmt.Sprintf("Type%d", i)
				e := s.Expanded(id)
				require.Equal(t, e, New(seed, kind).Expanded(id))
				if e {
					expanded++
				}
			}
			ratio := float64(expanded) / n
			assert.InDelta(t, 0.5, ratio, 0.05)
		})
	}

	seed := entropy.SeedFromUint64(9)
	assert.Equal(t, New(seed, Keyed).Expanded("Foo"), ShouldUseExpandedRepresentation("Foo", seed))
}

func TestNewHasher_UnknownKindFallsBackToMix(t *testing.T) {
	seed := entropy.SeedFromUint64(3)
	h := NewHasher(Kind(99), seed)
	_, ok := h.(MixHasher)
	assert.True(t, ok)
	assert.Equal(t, NewHasher(Mix, seed).Sum64([]byte("x")), h.Sum64([]byte("x")))
}

func BenchmarkSelect(b *testing.B) {
	for _, kind := range kinds {
		s := New(entropy.SeedFromUint64(1), kind)
		b.Run(kind.String(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = s.Select("WebCore::HTMLDivElement", 5)
			}
		})
	}
}
