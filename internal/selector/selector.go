package selector

import (
	"math/bits"

	"golang.org/x/crypto/blake2b"

	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/entropy"
)

const (
	compactKeyPrefix = "compact:"
	compactSaltLabel = "compact-salt"
)

// Selector maps type identities to bucket indices under one seed.
// It is immutable and safe for concurrent use.
type Selector struct {
	kind   Kind
	hasher Hasher
	salt   uint64
}

// New creates a Selector for seed using the given hashing strategy.
func New(seed entropy.Seed, kind Kind) *Selector {
	return &Selector{
		kind:   kind,
		hasher: NewHasher(kind, seed),
		salt:   NewHasher(kind, deriveSaltKey(seed)).Sum64([]byte(compactSaltLabel)),
	}
}

// deriveSaltKey produces a key independent from the selection key so the
// compaction salt cannot be correlated with bucket indices.
func deriveSaltKey(seed entropy.Seed) entropy.Seed {
	buf := make([]byte, 0, len(seed)+len(compactSaltLabel))
	buf = append(buf, seed[:]...)
	buf = append(buf, compactSaltLabel...)
	return blake2b.Sum256(buf)
}

// Kind returns the hashing strategy in use.
func (s *Selector) Kind() Kind { return s.kind }

// Hash returns the keyed hash of identity.
func (s *Selector) Hash(identity string) uint64 {
	return s.hasher.Sum64([]byte(identity))
}

// Select returns a bucket index in [0, count). It panics if count is zero.
func (s *Selector) Select(identity string, count uint32) uint32 {
	if count == 0 {
		panic("selector: bucket count must be at least 1")
	}
	return uint32(s.Hash(identity) % uint64(count))
}

// Expanded reports whether identity uses the expanded (non-compact)
// representation: the parity of popcount(compactionKey & salt).
func (s *Selector) Expanded(identity string) bool {
	key := s.hasher.Sum64([]byte(compactKeyPrefix + identity))
	return bits.OnesCount64(key&s.salt)&1 == 1
}

// SelectBucket maps identity to [0, count) with the keyed strategy.
func SelectBucket(identity string, seed entropy.Seed, count uint32) uint32 {
	return New(seed, Keyed).Select(identity, count)
}

// ShouldUseExpandedRepresentation reports the per-type compaction toggle
// with the keyed strategy.
func ShouldUseExpandedRepresentation(identity string, seed entropy.Seed) bool {
	return New(seed, Keyed).Expanded(identity)
}
