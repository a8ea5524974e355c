// Package dataset generates reproducible uint64 key sets shared by
// tools/dataset_gen (the standalone CLI) and bench/bench_test.go, so both
// draw from the same generator instead of keeping two copies of the
// distribution logic in sync by hand.
//
// © 2025 densehash authors. MIT License.
package dataset

import (
	"fmt"
	"math/rand"
)

// Distribution selects the shape of the generated key set.
type Distribution string

const (
	Uniform Distribution = "uniform"
	Zipf    Distribution = "zipf"
)

// Params configures a key generator. ZipfS/ZipfV are only consulted when
// Dist is Zipf, matching rand.NewZipf's own (s > 1, v >= 1) constraints.
type Params struct {
	Seed  int64
	Dist  Distribution
	ZipfS float64
	ZipfV float64
}

// DefaultParams mirrors tools/dataset_gen's flag defaults.
func DefaultParams(seed int64) Params {
	return Params{Seed: seed, Dist: Uniform, ZipfS: 1.2, ZipfV: 1.0}
}

// NewGenerator returns a zero-argument uint64 generator for p, or an error
// if p names an unknown distribution or out-of-range Zipf parameters.
func NewGenerator(p Params) (func() uint64, error) {
	rnd := rand.New(rand.NewSource(p.Seed))
	switch p.Dist {
	case Uniform, "":
		return rnd.Uint64, nil
	case Zipf:
		if p.ZipfS <= 1.0 || p.ZipfV < 1.0 {
			return nil, fmt.Errorf("dataset: zipfs must be >1 and zipfv >=1, got s=%v v=%v", p.ZipfS, p.ZipfV)
		}
		z := rand.NewZipf(rnd, p.ZipfS, p.ZipfV, ^uint64(0))
		return z.Uint64, nil
	default:
		return nil, fmt.Errorf("dataset: unknown distribution %q", p.Dist)
	}
}

// Generate draws n keys from a fresh generator built from p.
func Generate(n int, p Params) ([]uint64, error) {
	gen, err := NewGenerator(p)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = gen()
	}
	return out, nil
}
