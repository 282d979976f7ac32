// Package bench provides reproducible micro-benchmarks for the shared
// coordination substrate. Run via:
//
//	go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// Key/value shape is held fixed so results are comparable across versions:
// 8-byte keys (the minimum the value store's key-hash accepts), 64-byte
// raw values (large enough to matter, small enough to stay in a cache
// line's reach).
package bench

import (
	"encoding/binary"
	"math/rand"
	"runtime"
	"testing"

	"github.com/shmsubstrate/core/pkg/substrate"
)

const (
	globalBytes = 4096
	heapBytes   = 1 << 26
	depLog2     = 20
	hashLog2    = 20
	keyCount    = 1 << 16
)

var value64 = make([]byte, 64)

func newBenchRegion(b *testing.B) *substrate.Region {
	b.Helper()
	cfg, err := substrate.NewConfig(globalBytes, heapBytes, depLog2, hashLog2)
	if err != nil {
		b.Fatalf("config: %v", err)
	}
	r, err := substrate.Init(cfg)
	if err != nil {
		b.Fatalf("init: %v", err)
	}
	return r
}

var keyset = func() [][]byte {
	rnd := rand.New(rand.NewSource(42))
	keys := make([][]byte, keyCount)
	for i := range keys {
		k := make([]byte, 8)
		binary.LittleEndian.PutUint64(k, rnd.Uint64())
		keys[i] = k
	}
	return keys
}()

func BenchmarkPut(b *testing.B) {
	r := newBenchRegion(b)
	defer r.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := keyset[i&(keyCount-1)]
		_, _, _ = r.Put(key, value64)
	}
}

func BenchmarkGet(b *testing.B) {
	r := newBenchRegion(b)
	defer r.Close()

	for _, k := range keyset {
		if _, _, err := r.Put(k, value64); err != nil {
			b.Fatalf("put: %v", err)
		}
	}

	var out []byte
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := keyset[i&(keyCount-1)]
		_ = r.Get(key, &out)
	}
}

func BenchmarkGetParallel(b *testing.B) {
	r := newBenchRegion(b)
	defer r.Close()

	for _, k := range keyset {
		if _, _, err := r.Put(k, value64); err != nil {
			b.Fatalf("put: %v", err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		idx := rand.Intn(keyCount)
		var out []byte
		for pb.Next() {
			idx = (idx + 1) & (keyCount - 1)
			_ = r.Get(keyset[idx], &out)
		}
	})
}

func BenchmarkAddEdge(b *testing.B) {
	r := newBenchRegion(b)
	defer r.Close()
	if err := r.SetAllowDepReads(true); err != nil {
		b.Fatalf("allow dep reads: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		u := uint32(i) & 0x7fffffff
		_, _ = r.AddEdge(u, u+1)
	}
}

func BenchmarkGetEdges(b *testing.B) {
	r := newBenchRegion(b)
	defer r.Close()
	if err := r.SetAllowDepReads(true); err != nil {
		b.Fatalf("allow dep reads: %v", err)
	}
	for i := 0; i < keyCount; i++ {
		u := uint32(i) & 0x7fffffff
		_, _ = r.AddEdge(u, u+1)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		u := uint32(i&(keyCount-1)) & 0x7fffffff
		_, _ = r.GetEdges(u)
	}
}

func init() {
	runtime.GOMAXPROCS(runtime.NumCPU())
}
