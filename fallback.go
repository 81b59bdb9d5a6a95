package isoheap

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Environment signals consulted by the fallback policy.
const (
	// EnvUseSystemMalloc requests the uninstrumented system allocator.
	EnvUseSystemMalloc = "ISOHEAP_USE_SYSTEM_MALLOC"
	// EnvDisable disables isolated heaps.
	EnvDisable = "ISOHEAP_DISABLE"
)

// FallbackMode is the process-wide routing decision.
type FallbackMode int32

const (
	// Undecided means no allocation has happened yet.
	Undecided FallbackMode = iota
	// ForceDebugMalloc routes every allocation to the system allocator.
	ForceDebugMalloc
	// DoNotFallBack uses isolated heaps.
	DoNotFallBack
)

func (m FallbackMode) String() string {
	switch m {
	case Undecided:
		return "undecided"
	case ForceDebugMalloc:
		return "force-debug-malloc"
	case DoNotFallBack:
		return "do-not-fall-back"
	default:
		return fmt.Sprintf("mode(%d)", int32(m))
	}
}

// fallbackPolicy moves from Undecided to a terminal mode exactly once.
// Racing resolvers may all evaluate decide; the first CAS wins and every
// caller returns the published mode.
type fallbackPolicy struct {
	state     atomic.Int32
	decide    func() (FallbackMode, string)
	onResolve func(FallbackMode, string)
}

func newFallbackPolicy(decide func() (FallbackMode, string), onResolve func(FallbackMode, string)) *fallbackPolicy {
	return &fallbackPolicy{decide: decide, onResolve: onResolve}
}

func (p *fallbackPolicy) mode() FallbackMode {
	return FallbackMode(p.state.Load())
}

func (p *fallbackPolicy) resolve() FallbackMode {
	if m := p.mode(); m != Undecided {
		return m
	}
	m, reason := p.decide()
	if p.state.CompareAndSwap(int32(Undecided), int32(m)) && p.onResolve != nil {
		p.onResolve(m, reason)
	}
	return p.mode()
}

func decideFallback(o *options) (FallbackMode, string) {
	if o.disabled {
		return ForceDebugMalloc, "disabled by option"
	}
	if v, ok := o.lookupEnv(EnvUseSystemMalloc); ok && truthy(v) {
		return ForceDebugMalloc, EnvUseSystemMalloc
	}
	if v, ok := o.lookupEnv(EnvDisable); ok && truthy(v) {
		return ForceDebugMalloc, EnvDisable
	}
	if o.sanitizerFallback {
		if raceEnabled {
			return ForceDebugMalloc, "race detector"
		}
		if asanEnabled {
			return ForceDebugMalloc, "address sanitizer"
		}
	}
	return DoNotFallBack, ""
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}
