package selector

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/entropy"
)

// Kind selects a hashing strategy.
type Kind int

const (
	// Keyed uses BLAKE2b-256 keyed by the seed.
	Keyed Kind = iota
	// Mix uses the non-cryptographic mixing function.
	Mix
)

func (k Kind) String() string {
	switch k {
	case Keyed:
		return "keyed"
	case Mix:
		return "mix"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Hasher is a keyed 64-bit hash.
type Hasher interface {
	Sum64(data []byte) uint64
}

// NewHasher returns the hasher for kind keyed by key.
// Unknown kinds fall back to Mix.
func NewHasher(kind Kind, key entropy.Seed) Hasher {
	if kind == Keyed {
		return KeyedHasher{key: key}
	}
	return newMixHasher(key)
}

// KeyedHasher is a BLAKE2b-256 MAC truncated to 64 bits.
type KeyedHasher struct {
	key entropy.Seed
}

// Sum64 implements Hasher.
func (k KeyedHasher) Sum64(data []byte) uint64 {
	h, err := blake2b.New256(k.key[:])
	if err != nil {
		// A 32-byte key is always accepted.
		panic(err)
	}
	h.Write(data)
	var sum [blake2b.Size256]byte
	return binary.LittleEndian.Uint64(h.Sum(sum[:0]))
}

const (
	fnvOffset = 14695981039346656037
	fnvPrime  = 1099511628211
)

// MixHasher is the non-cryptographic fallback.
type MixHasher struct {
	k [4]uint64
}

func newMixHasher(key entropy.Seed) MixHasher {
	var m MixHasher
	for i := range m.k {
		m.k[i] = key.Word(i)
	}
	return m
}

// Sum64 implements Hasher.
func (m MixHasher) Sum64(data []byte) uint64 {
	h := uint64(fnvOffset) ^ m.k[0]
	for _, b := range data {
		h ^= uint64(b)
		h *= fnvPrime
	}
	h ^= uint64(len(data))
	for _, k := range m.k {
		h = splitmix64(h ^ k)
	}
	return h
}

func splitmix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
