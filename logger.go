package isoheap

import (
	"log/slog"
	"os"

	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/entropy"
	"github.com/pichillilorenzo/flutter-inappwebview-sub022/internal/sizeclass"
)

// Logger wraps slog.Logger with isoheap-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithSizeClass adds size class fields to the logger.
func (l *Logger) WithSizeClass(key sizeclass.Key) *Logger {
	return &Logger{
		Logger: l.Logger.With("size", key.Size, "alignment", key.Alignment),
	}
}

// WithCallSite adds call site fields to the logger.
func (l *Logger) WithCallSite(site *CallSite) *Logger {
	return &Logger{
		Logger: l.Logger.With("site", site.id, "type", site.identity),
	}
}

// LogSeed logs the outcome of seed derivation. Only the seed fingerprint is
// logged, never the seed.
func (l *Logger) LogSeed(info entropy.Info, fingerprint string, err error) {
	if err != nil {
		l.Error("seed derivation failed",
			"process", info.Process,
			"error", err,
		)
		return
	}
	if info.Fallback {
		l.Warn("seed derived from fallback entropy source",
			"source", info.Source,
			"quality", info.Quality.String(),
			"failures", len(info.Failures),
			"fingerprint", fingerprint,
		)
		return
	}
	l.Debug("seed derived",
		"source", info.Source,
		"quality", info.Quality.String(),
		"fingerprint", fingerprint,
	)
}

// LogFallback logs the one-time fallback decision.
func (l *Logger) LogFallback(mode FallbackMode, reason string) {
	if mode == ForceDebugMalloc {
		l.Warn("isolated heaps disabled, using system allocator",
			"reason", reason,
		)
		return
	}
	l.Debug("isolated heaps enabled")
}

// LogTableCreated logs the creation of a size class table.
func (l *Logger) LogTableCreated(t *BucketTable) {
	l.WithSizeClass(t.key).Debug("bucket table created",
		"buckets", len(t.buckets),
	)
}

// LogPolicyViolation logs a bucket policy change after the policy froze.
func (l *Logger) LogPolicyViolation(op string, err error) {
	l.Error("bucket policy changed after first registration",
		"op", op,
		"error", err,
	)
}

// LogSlowPath logs a slow-path resolution.
func (l *Logger) LogSlowPath(site *CallSite, size uintptr, b *Bucket) {
	l.WithCallSite(site).Debug("bucket resolved",
		"requested", size,
		"expected", site.size,
		"bucket", b.desc.Name,
	)
}

// LogAllocFailure logs an allocation the arena could not satisfy.
func (l *Logger) LogAllocFailure(site *CallSite, size uintptr, err error) {
	l.WithCallSite(site).Error("allocation failed",
		"requested", size,
		"error", err,
	)
}
