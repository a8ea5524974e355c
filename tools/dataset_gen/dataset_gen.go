package main

// dataset_gen.go is a tiny CLI wrapper around internal/dataset, used to
// materialize deterministic key datasets for standalone benchmarking of
// densehash outside `go test` (e.g. feeding an external load-tester). The
// same internal/dataset generator backs bench/bench_test.go's in-process
// dataset, so a file written here and the benchmark's warm-up set are built
// from identical distribution logic.
//
// Usage:
//   go run ./tools/dataset_gen -n 1000000 -dist=zipf -seed=42 -out keys.txt
//
// Flags:
//   -n       number of keys to generate (default 1e6)
//   -dist    distribution: "uniform" or "zipf" (default uniform)
//   -zipfs   Zipf s parameter (>1)  (default 1.2)
//   -zipfv   Zipf v parameter (>=1) (default 1.0)
//   -seed    RNG seed (default current time)
//   -out     output file (default stdout)
//
// © 2025 densehash authors. MIT License.

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/abhivetukuri/Unordered-Dense-Map/internal/dataset"
)

func main() {
	var (
		n       = flag.Int("n", 1_000_000, "number of keys to generate")
		dist    = flag.String("dist", "uniform", "distribution: uniform or zipf")
		zipfS   = flag.Float64("zipfs", 1.2, "zipf s parameter (>1)")
		zipfV   = flag.Float64("zipfv", 1.0, "zipf v parameter (>=1)")
		seedVal = flag.Int64("seed", time.Now().UnixNano(), "PRNG seed")
		outPath = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	gen, err := dataset.NewGenerator(dataset.Params{
		Seed:  *seedVal,
		Dist:  dataset.Distribution(*dist),
		ZipfS: *zipfS,
		ZipfV: *zipfV,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var out *os.File
	if *outPath == "" {
		out = os.Stdout
	} else {
		out, err = os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot create file:", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	w := bufio.NewWriterSize(out, 1<<20)
	defer w.Flush()

	for i := 0; i < *n; i++ {
		fmt.Fprintln(w, gen())
	}
}
