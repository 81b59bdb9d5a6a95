package isoheap

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Reporter receives occupancy snapshots from Heap.Report.
type Reporter interface {
	Report(ctx context.Context, stats Stats) error
}

// Report sends a snapshot of the heap to the configured Reporter.
// Reports are rate limited (see WithReportInterval); a report requested too
// soon after the previous one returns ErrReportThrottled.
func (h *Heap) Report(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !h.resources.AllowReport() {
		return ErrReportThrottled
	}
	return h.reporter.Report(ctx, h.Stats())
}

// NoopReporter discards every report.
type NoopReporter struct{}

// Report implements Reporter.
func (NoopReporter) Report(context.Context, Stats) error { return nil }

// LogReporter writes one log record per bucket at debug level and a summary
// at info level.
type LogReporter struct {
	Logger *Logger
}

// Report implements Reporter.
func (r LogReporter) Report(ctx context.Context, stats Stats) error {
	l := r.Logger
	if l == nil {
		l = NoopLogger()
	}
	for _, t := range stats.Tables {
		for _, b := range t.Buckets {
			if err := ctx.Err(); err != nil {
				return err
			}
			l.LogAttrs(ctx, slog.LevelDebug, "bucket occupancy",
				slog.String("bucket", b.Name),
				slog.Uint64("size", uint64(t.Size)),
				slog.Uint64("alignment", uint64(t.Alignment)),
				slog.Uint64("live", b.LiveSlots),
				slog.Uint64("free", b.FreeSlots),
				slog.Uint64("reserved_bytes", b.BytesReserved),
			)
		}
	}
	l.LogAttrs(ctx, slog.LevelInfo, "heap occupancy",
		slog.String("fallback", stats.Fallback),
		slog.Int("tables", len(stats.Tables)),
		slog.Uint64("live", stats.LiveSlots()),
		slog.Int64("memory_used", stats.Memory.UsedBytes),
		slog.Int64("memory_peak", stats.Memory.PeakBytes),
	)
	return nil
}

// CompressionType defines the compression algorithm of a snapshot.
type CompressionType uint8

const (
	// CompressionNone writes plain JSON.
	CompressionNone CompressionType = 0
	// CompressionLZ4 uses LZ4 frames (fast).
	CompressionLZ4 CompressionType = 1
	// CompressionZSTD uses zstd (better ratio).
	CompressionZSTD CompressionType = 2
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("CompressionType(%d)", uint8(c))
	}
}

// ErrUnknownCompression is returned for a snapshot with an unknown header.
var ErrUnknownCompression = errors.New("isoheap: unknown snapshot compression")

// SnapshotReporter writes each report as a JSON document to W, prefixed
// with one byte naming the compression. ReadSnapshot decodes it.
type SnapshotReporter struct {
	mu          sync.Mutex
	w           io.Writer
	compression CompressionType
}

// NewSnapshotReporter creates a SnapshotReporter writing to w.
func NewSnapshotReporter(w io.Writer, compression CompressionType) (*SnapshotReporter, error) {
	switch compression {
	case CompressionNone, CompressionLZ4, CompressionZSTD:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompression, compression)
	}
	return &SnapshotReporter{w: w, compression: compression}, nil
}

// Report implements Reporter. Concurrent reports are serialized.
func (r *SnapshotReporter) Report(ctx context.Context, stats Stats) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.w.Write([]byte{byte(r.compression)}); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}

	var (
		out io.Writer = r.w
		cw  io.WriteCloser
	)
	switch r.compression {
	case CompressionLZ4:
		cw = lz4.NewWriter(r.w)
		out = cw
	case CompressionZSTD:
		enc, err := zstd.NewWriter(r.w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("create zstd encoder: %w", err)
		}
		cw = enc
		out = cw
	}

	if err := json.NewEncoder(out).Encode(stats); err != nil {
		if cw != nil {
			_ = cw.Close()
		}
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if cw != nil {
		if err := cw.Close(); err != nil {
			return fmt.Errorf("flush snapshot: %w", err)
		}
	}
	return nil
}

// ReadSnapshot decodes one snapshot written by SnapshotReporter.
func ReadSnapshot(r io.Reader) (Stats, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadByte()
	if err != nil {
		return Stats{}, fmt.Errorf("read snapshot header: %w", err)
	}

	var in io.Reader
	switch CompressionType(header) {
	case CompressionNone:
		in = br
	case CompressionLZ4:
		in = lz4.NewReader(br)
	case CompressionZSTD:
		dec, err := zstd.NewReader(br)
		if err != nil {
			return Stats{}, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer dec.Close()
		in = dec
	default:
		return Stats{}, fmt.Errorf("%w: header %d", ErrUnknownCompression, header)
	}

	var stats Stats
	if err := json.NewDecoder(in).Decode(&stats); err != nil {
		return Stats{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return stats, nil
}
