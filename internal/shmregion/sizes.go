// Package shmregion owns the fixed-address shared-memory region: sizing,
// backing-object creation, mmap/attach, and the control-page word layout
// every other internal package (heap, deptable, valuestore) is wired
// against (spec.md §2 "System overview", §4.1 "Attach/Initialization").
//
// © 2025 shm-substrate authors. MIT License.
package shmregion

import "github.com/shmsubstrate/core/internal/serr"

// cacheLine is the padding unit between control-page words, so independent
// atomics never share a cache line (spec.md §3: "each on its own cache
// line to avoid false sharing").
const cacheLine = 64

// filenamePageBytes holds the backing persistence file's path, if any
// (spec.md §2 "Filename page").
const filenamePageBytes = 4096

// Sizes are the caller-supplied dimensions fixed at Init and carried in the
// Handle to every Attach (spec.md §6 "Configuration (at init)").
type Sizes struct {
	GlobalBytes uint64
	HeapBytes   uint64
	DepLog2     uint
	HashLog2    uint
}

// DepSize returns 2^DepLog2, the slot count of both the bindings filter and
// the adjacency store.
func (s Sizes) DepSize() uint64 { return 1 << s.DepLog2 }

// HashSize returns 2^HashLog2, the value hashtable's slot count.
func (s Sizes) HashSize() uint64 { return 1 << s.HashLog2 }

// Validate rejects configurations that cannot be laid out at all (spec.md
// §6 sizing fields are all caller inputs with no defaults).
func (s Sizes) Validate() error {
	if s.DepLog2 == 0 || s.DepLog2 > 31 {
		return serr.New(serr.KindContract, "Init", "dep_log2 must be in [1,31]")
	}
	if s.HashLog2 == 0 || s.HashLog2 > 31 {
		return serr.New(serr.KindContract, "Init", "hash_log2 must be in [1,31]")
	}
	if s.HeapBytes == 0 {
		return serr.New(serr.KindContract, "Init", "heap_bytes must be nonzero")
	}
	return nil
}

// Layout is the fully-resolved byte layout of the region (spec.md §2's
// table, in concrete offsets). Every offset is relative to the region's
// mapped base address.
type Layout struct {
	Sizes

	ControlOffset     uint64
	FilenameOffset    uint64
	GlobalOffset      uint64
	DepBindingsOffset uint64
	DepSlotsOffset    uint64
	HashHashesOffset  uint64
	HashAddrsOffset   uint64
	HeapOffset        uint64
	TotalSize         uint64
}

// computeLayout lays the region out leaves-first per spec.md §2: control
// page, filename page, global storage, dependency table (two parallel
// arrays), value hashtable (two parallel arrays), then the heap.
func computeLayout(sizes Sizes) (Layout, error) {
	if err := sizes.Validate(); err != nil {
		return Layout{}, err
	}

	l := Layout{Sizes: sizes}
	offset := uint64(0)

	l.ControlOffset = offset
	offset += uint64(numControlFields) * cacheLine

	l.FilenameOffset = offset
	offset += filenamePageBytes

	l.GlobalOffset = offset
	offset += 8 + sizes.GlobalBytes // one header word + blob capacity

	depWords := sizes.DepSize() * 8
	l.DepBindingsOffset = offset
	offset += depWords
	l.DepSlotsOffset = offset
	offset += depWords

	hashWords := sizes.HashSize() * 8
	l.HashHashesOffset = offset
	offset += hashWords
	l.HashAddrsOffset = offset
	offset += hashWords

	l.HeapOffset = offset
	offset += sizes.HeapBytes

	l.TotalSize = offset
	return l, nil
}
