// Package hashing supplies the Hash/Fingerprint Provider capability consumed
// by both table variants. The core tables never compute hashes themselves —
// they call a Provider[K] the way pkg/shard.go in the teacher repo called its
// own maphash-based hash() method, except here the capability is pulled out
// into its own package so it can be swapped (default providers for integer
// and byte-sequence keys, or a user-supplied one) without touching probing
// code.
//
// © 2025 densehash authors. MIT License.
package hashing

import (
	"hash/maphash"
	"unsafe"

	"github.com/abhivetukuri/Unordered-Dense-Map/internal/unsafehelpers"
)

// Provider yields a 64-bit hash and an 8-bit fingerprint for a key of type K.
// Implementations must be deterministic for the lifetime of the process:
// hash(k) must return the same value for equal keys every time it is called.
type Provider[K comparable] interface {
	Hash(key K) uint64
	Fingerprint(hash uint64) uint8
}

// maphashProvider is the default provider. It mirrors the teacher's
// shard.hash: a process-lifetime maphash.Seed plus a type switch that routes
// strings and byte slices to content hashing and falls back to a raw byte
// image of the key for scalars. String-like keys MUST use content hashing
// per §6.1 of the specification; this provider does that via WriteString.
type maphashProvider[K comparable] struct {
	seed maphash.Seed
}

// NewDefault constructs the default Provider for K. One seed is generated per
// provider instance (not per call) so that repeated hashing of the same key
// within a table's lifetime is stable, matching the Provider contract.
func NewDefault[K comparable]() Provider[K] {
	return &maphashProvider[K]{seed: maphash.MakeSeed()}
}

func (p *maphashProvider[K]) Hash(key K) uint64 {
	var h maphash.Hash
	h.SetSeed(p.seed)
	switch k := any(key).(type) {
	case string:
		h.WriteString(k)
	case []byte:
		h.Write(k)
	default:
		// Scalars and trivially-copyable structs: hash the raw byte image.
		// Safe for hashing purposes only — we never retain the slice.
		ptr := unsafe.Pointer(&key)
		size := unsafe.Sizeof(key)
		h.Write(unsafehelpers.ByteSliceFrom(ptr, size))
	}
	return h.Sum64()
}

// Fingerprint returns the low byte of hash, remixed via Remix when that byte
// is zero. A zero fingerprint is reserved as a "never-equal" sentinel so
// metadata scans can skip a slot without touching the entry store (see
// §4.1 of the specification); it must never be written to a live bucket.
func (p *maphashProvider[K]) Fingerprint(hash uint64) uint8 {
	fp := uint8(hash)
	if fp == 0 {
		fp = uint8(Remix(hash))
		if fp == 0 {
			fp = 1 // degenerate case: remix also produced a zero low byte.
		}
	}
	return fp
}

// Remix is a SplitMix64-style avalanche mixer used whenever the raw
// fingerprint byte is zero. The constants are the canonical SplitMix64
// multipliers (also used for the non-Robin-Hood probe positions in
// KarpelesLab's elastic hash table); they give avalanche at least as good as
// the stdlib's fnv/maphash mixing and are cheap enough to run on the rare
// zero-fingerprint path only.
func Remix(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	x ^= x >> 31
	return x
}

// HashAndFingerprint is the convenience entry point used by the tables: it
// computes the hash, and — following the remix rule above — recomputes both
// hash and fingerprint from the remix output when the raw fingerprint would
// be zero, so the derived home slot changes together with the fingerprint.
func HashAndFingerprint[K comparable](p Provider[K], key K) (hash uint64, fingerprint uint8) {
	h := p.Hash(key)
	fp := uint8(h)
	if fp != 0 {
		return h, fp
	}
	remixed := Remix(h)
	fp = uint8(remixed)
	for fp == 0 {
		remixed = Remix(remixed)
		fp = uint8(remixed)
	}
	return remixed, fp
}
