package entropy

import (
	"bytes"
	"encoding/binary"
	"os"
	"time"
)

// DefaultBootIDPath is where Linux exposes the per-boot UUID.
const DefaultBootIDPath = "/proc/sys/kernel/random/boot_id"

// BootIDSource reads the kernel's per-boot identifier.
type BootIDSource struct {
	// Path overrides DefaultBootIDPath.
	Path string
}

// Name implements Source.
func (BootIDSource) Name() string { return "boot-id" }

// Quality implements Source.
func (BootIDSource) Quality() Quality { return PerBoot }

// Material implements Source.
func (s BootIDSource) Material() ([]byte, error) {
	path := s.Path
	if path == "" {
		path = DefaultBootIDPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrSourceUnavailable
	}
	return data, nil
}

// BootTimeSource derives material from the machine boot timestamp.
// The timestamp is truncated so clock adjustments do not change the seed.
type BootTimeSource struct{}

// Name implements Source.
func (BootTimeSource) Name() string { return "boot-time" }

// Quality implements Source.
func (BootTimeSource) Quality() Quality { return Coarse }

// Material implements Source.
func (BootTimeSource) Material() ([]byte, error) {
	boot, err := bootTime()
	if err != nil {
		return nil, err
	}
	return encodeTime(boot.Truncate(time.Minute)), nil
}

// processStart is captured at package init, as close to process start as Go allows.
var processStart = time.Now()

// StartTimeSource derives material from the process start time. It is
// always available and is the last resort.
type StartTimeSource struct{}

// Name implements Source.
func (StartTimeSource) Name() string { return "start-time" }

// Quality implements Source.
func (StartTimeSource) Quality() Quality { return Timer }

// Material implements Source.
func (StartTimeSource) Material() ([]byte, error) {
	b := encodeTime(processStart.Truncate(time.Second))
	return binary.LittleEndian.AppendUint64(b, uint64(os.Getpid())), nil //nolint:gosec // pid is non-negative
}

func encodeTime(t time.Time) []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(t.Unix())) //nolint:gosec // boot times are after 1970
}
