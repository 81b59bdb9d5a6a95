// Package sizeclass canonicalizes (size, alignment) requests into size
// classes and holds the bucket-count policy.
//
// # Rounding tiers
//
//	size range            class spacing
//	0 .. 128              multiples of 16
//	128 .. 2048           ~1.05x geometric, rounded to 16
//	2048 .. 64 KiB        ~1.3x geometric, rounded to 16
//	above 64 KiB          multiples of 4096
//
// Class boundaries are precomputed, so Round is idempotent and monotone:
//
//	Round(Round(n)) == Round(n)
//	a <= b  =>  Round(a) <= Round(b)
//
// # Policy
//
// The Policy's bucket counts and threshold may only change before it is
// frozen. The registry freezes it when the first bucket table is created.
package sizeclass
