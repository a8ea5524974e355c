// Package unsafehelpers centralises the unavoidable usage of the `unsafe`
// standard-library package so the rest of densehash stays clean and easier
// to audit. Every helper is documented with clear pre-/post-conditions.
//
// ⚠️  DISCLAIMER: these helpers deliberately break the Go memory-safety
// model for the sake of zero-allocation conversions. Use ONLY inside this
// repository; they are not part of the public API and may change without
// notice.
//
// All functions are go:linkname-free, cgo-free and pure Go.
//
// © 2025 densehash authors. MIT License.

package unsafehelpers

import "unsafe"

// ByteSliceFrom returns a []byte view of raw memory starting at ptr with the
// given length. Caller must ensure the memory block is at least length
// bytes. Used by internal/hashing to hash scalar keys by their raw byte
// image without allocating.
func ByteSliceFrom(ptr unsafe.Pointer, length uintptr) []byte {
	return unsafe.Slice((*byte)(ptr), length)
}

// IsPowerOfTwo returns true if x is a power of two (exactly one bit set).
// Used as a cheap sanity check that table capacities — always produced by
// nextPowerOfTwo — never drift from the power-of-two-sized layout the
// mask-based indexing in pkg/table.go and pkg/partition.go relies on.
func IsPowerOfTwo(x uintptr) bool {
	return x != 0 && (x&(x-1)) == 0
}
