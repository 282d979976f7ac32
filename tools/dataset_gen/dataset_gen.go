// Command dataset_gen emits deterministic datasets for benchmarking the
// dependency table and value store outside `go test`: either dependency
// edges ("u,v" vertex pairs) or 8-byte value-store keys, drawn from a
// uniform or Zipf distribution so skewed-access patterns can be exercised
// too.
//
// Usage:
//
//	go run ./tools/dataset_gen -mode=edges -n 1000000 -dist=zipf -seed=42 -out edges.csv
//	go run ./tools/dataset_gen -mode=keys  -n 1000000 -out keys.bin
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"
)

func main() {
	var (
		n       = flag.Int("n", 1_000_000, "number of items to generate")
		mode    = flag.String("mode", "edges", "edges or keys")
		dist    = flag.String("dist", "uniform", "distribution: uniform or zipf")
		zipfS   = flag.Float64("zipfs", 1.2, "zipf s parameter (>1)")
		zipfV   = flag.Float64("zipfv", 1.0, "zipf v parameter (>=1)")
		seedVal = flag.Int64("seed", time.Now().UnixNano(), "PRNG seed")
		outPath = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	rnd := rand.New(rand.NewSource(*seedVal))

	gen, err := vertexGenerator(rnd, *dist, *zipfS, *zipfV)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	out, closeOut, err := openOutput(*outPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeOut()

	switch *mode {
	case "edges":
		writeEdges(out, *n, gen)
	case "keys":
		writeKeys(out, *n, gen)
	default:
		fmt.Fprintln(os.Stderr, "unknown mode:", *mode)
		os.Exit(1)
	}
}

func vertexGenerator(rnd *rand.Rand, dist string, zipfS, zipfV float64) (func() uint64, error) {
	switch dist {
	case "uniform":
		return rnd.Uint64, nil
	case "zipf":
		if zipfS <= 1.0 || zipfV < 1.0 {
			return nil, fmt.Errorf("zipfs must be >1 and zipfv >=1")
		}
		z := rand.NewZipf(rnd, zipfS, zipfV, ^uint64(0))
		return z.Uint64, nil
	default:
		return nil, fmt.Errorf("unknown dist: %s", dist)
	}
}

func openOutput(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// writeEdges emits n "u,v" vertex pairs, u/v truncated to 31 bits to match
// the dependency table's vertex range.
func writeEdges(out *os.File, n int, gen func() uint64) {
	w := bufio.NewWriterSize(out, 1<<20)
	defer w.Flush()
	for i := 0; i < n; i++ {
		u := uint32(gen()) & 0x7fffffff
		v := uint32(gen()) & 0x7fffffff
		fmt.Fprintf(w, "%d,%d\n", u, v)
	}
}

// writeKeys emits n 8-byte little-endian keys, the minimum length the
// value store's key-hash derivation requires.
func writeKeys(out *os.File, n int, gen func() uint64) {
	w := bufio.NewWriterSize(out, 1<<20)
	defer w.Flush()
	var buf [8]byte
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(buf[:], gen())
		_, _ = w.Write(buf[:])
	}
}
