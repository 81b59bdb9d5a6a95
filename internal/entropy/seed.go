package entropy

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// SeedSize is the size of a Seed in bytes.
const SeedSize = 32

const derivationLabel = "isoheap-seed-v1"

var (
	// ErrNoPerBootSeed is returned when a per-boot seed is required but no
	// per-boot source is available.
	ErrNoPerBootSeed = errors.New("entropy: no per-boot seed source available")
	// ErrSourceUnavailable is returned by a Source that cannot produce material.
	ErrSourceUnavailable = errors.New("entropy: source unavailable")
)

// Seed is the process-lifetime secret keying bucket selection.
type Seed [SeedSize]byte

// SeedFromUint64 returns a reproducible seed holding v in its first eight
// bytes (little endian). Intended for overrides in fuzzing and tests.
func SeedFromUint64(v uint64) Seed {
	var s Seed
	binary.LittleEndian.PutUint64(s[:8], v)
	return s
}

// Word returns the i-th 64-bit little-endian word of the seed (0 <= i < 4).
func (s Seed) Word(i int) uint64 {
	return binary.LittleEndian.Uint64(s[i*8 : i*8+8])
}

// Fingerprint returns a short non-secret identifier of the seed, safe to log.
func (s Seed) Fingerprint() string {
	sum := blake2b.Sum256(s[:])
	return hex.EncodeToString(sum[:4])
}

// Quality ranks entropy sources.
type Quality int

const (
	// Timer material is derived from the process start time.
	Timer Quality = iota
	// Coarse material is a boot timestamp.
	Coarse
	// PerBoot material is unique to a single boot of the machine.
	PerBoot
	// Override marks a seed supplied explicitly by configuration.
	Override
)

func (q Quality) String() string {
	switch q {
	case Timer:
		return "timer"
	case Coarse:
		return "coarse"
	case PerBoot:
		return "per-boot"
	case Override:
		return "override"
	default:
		return fmt.Sprintf("quality(%d)", int(q))
	}
}

// Source produces boot material for seed derivation.
type Source interface {
	// Name identifies the source in logs.
	Name() string
	// Quality reports the guarantee the material carries.
	Quality() Quality
	// Material returns the raw boot material.
	Material() ([]byte, error)
}

// Info describes how a seed was derived.
type Info struct {
	Source   string
	Quality  Quality
	Process  string
	Fallback bool // a preferred source failed
	Failures []error
}

// Deriver computes a seed once and caches it.
type Deriver struct {
	sources []Source
	process string

	once sync.Once
	seed Seed
	info Info
	err  error
}

// DeriverOption configures a Deriver.
type DeriverOption func(*Deriver)

// WithSources replaces the default source chain.
func WithSources(sources ...Source) DeriverOption {
	return func(d *Deriver) {
		d.sources = sources
	}
}

// WithProcessName overrides the process identity.
func WithProcessName(name string) DeriverOption {
	return func(d *Deriver) {
		d.process = name
	}
}

// NewDeriver creates a Deriver using the platform default source chain.
func NewDeriver(opts ...DeriverOption) *Deriver {
	d := &Deriver{
		sources: DefaultSources(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.process == "" {
		d.process = processName()
	}
	return d
}

// DefaultSources returns the preferred-first source chain.
func DefaultSources() []Source {
	return []Source{
		BootIDSource{},
		BootTimeSource{},
		StartTimeSource{},
	}
}

var (
	processOnce    sync.Once
	processDeriver *Deriver
)

// Process returns the deriver shared by the whole process.
func Process() *Deriver {
	processOnce.Do(func() {
		processDeriver = NewDeriver()
	})
	return processDeriver
}

// Derive returns the seed, computing it on first call.
func (d *Deriver) Derive() (Seed, Info, error) {
	d.once.Do(func() {
		d.seed, d.info, d.err = d.derive()
	})
	return d.seed, d.info, d.err
}

func (d *Deriver) derive() (Seed, Info, error) {
	info := Info{Process: d.process}

	for i, src := range d.sources {
		material, err := src.Material()
		if err == nil && len(material) == 0 {
			err = ErrSourceUnavailable
		}
		if err != nil {
			info.Failures = append(info.Failures, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		info.Source = src.Name()
		info.Quality = src.Quality()
		info.Fallback = i > 0
		return mix(material, d.process), info, nil
	}

	return Seed{}, info, fmt.Errorf("entropy: all sources failed: %w", errors.Join(info.Failures...))
}

func mix(material []byte, process string) Seed {
	h, _ := blake2b.New256(nil) // unkeyed New256 never fails
	h.Write([]byte(derivationLabel))
	h.Write([]byte{0})
	h.Write(material)
	h.Write([]byte{0})
	h.Write([]byte(process))

	var s Seed
	copy(s[:], h.Sum(nil))
	return s
}

func processName() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Base(exe)
	}
	if len(os.Args) > 0 {
		return filepath.Base(os.Args[0])
	}
	return "unknown"
}
