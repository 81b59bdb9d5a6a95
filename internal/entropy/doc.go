// Package entropy derives the process-wide seed that keys bucket selection.
//
// # Derivation
//
// The seed combines a boot identity with the process identity (the base name
// of the running executable) through BLAKE2b-256:
//
//	seed = BLAKE2b-256("isoheap-seed-v1" || 0x00 || boot material || 0x00 || process name)
//
// Different executables on the same boot get different seeds, and the value
// changes on every reboot, so bucket assignments cannot be precomputed offline.
//
// # Sources
//
// Boot material comes from the first Source that succeeds:
//
//	Source            Quality   Platform
//	BootIDSource      PerBoot   Linux (/proc/sys/kernel/random/boot_id)
//	BootTimeSource    Coarse    Linux (sysinfo), Darwin/BSD (kern.boottime)
//	StartTimeSource   Timer     everywhere
//
// Falling back to a weaker source is never fatal. Callers that need a
// guaranteed per-boot seed check Info.Quality after Derive.
//
// # Lifecycle
//
// A Deriver computes its seed exactly once. Process returns the deriver shared
// by the whole process.
package entropy
