// Package selector maps a type identity to a bucket index.
//
// The mapping is deterministic for a fixed seed and unpredictable without it.
// Two hashing strategies are available:
//
//   - Keyed: BLAKE2b-256 in MAC mode, keyed by the process seed. This is the
//     default and the only strategy with a security argument behind it.
//   - Mix: FNV-1a absorption followed by four seed-keyed splitmix64 rounds.
//     It is best-effort obfuscation for environments that cannot afford the
//     keyed hash. It offers no minimum-entropy bound and must not be relied
//     on as a security boundary.
//
// The selector also decides, per type, whether the expanded (non-compact)
// representation is used when dynamic compaction is enabled.
package selector
