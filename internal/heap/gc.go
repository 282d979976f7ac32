package heap

import (
	"sync/atomic"
	"unsafe"

	"github.com/shmsubstrate/core/internal/unsafehelpers"
)

// Sentinel is the value stored in a value-store slot's addr field while a
// writer has claimed the slot but not yet published (spec §3 "Value store").
const Sentinel = uintptr(1)

// AggressiveFactor and NormalFactor are the "when to run" thresholds from
// spec §4.5: collect when used >= factor * reachable. Aggressive runs more
// eagerly (reclaims more, more often) at the cost of doing more work.
const (
	NormalFactor     = 2.0
	AggressiveFactor = 1.2
)

// ShouldCollect implements the §4.5 predicate; it is exposed so the caller
// (the orchestrator, not this package) decides when to invoke Collect.
func (h *Heap) ShouldCollect(aggressive bool) bool {
	used := float64(h.Used())
	reachable := float64(h.Reachable())
	if reachable == 0 {
		return used > 0
	}
	factor := NormalFactor
	if aggressive {
		factor = AggressiveFactor
	}
	return used >= factor*reachable
}

// Collect runs the two-pass compacting GC described in spec §4.5. addrCells
// is every value-store slot's addr field (as a directly-addressable cell in
// the shared region); the caller must guarantee no worker is reading or
// writing any shared structure while Collect runs (master-only, phase-gated
// — spec §4.5 "Compactor").
//
// Pass 1 (mark via pointer swap): for every live cell, the heap entry's
// header word and the cell's address trade places, so the heap word becomes
// self-describing — bit 0 set means garbage (still a header), bit 0 clear
// means live (a back-pointer to the owning cell).
//
// Pass 2 (sweep + relocate): walk the heap bottom-up with two cursors,
// skipping garbage and sliding live entries down to dst, fixing up each
// owning cell to point at the entry's new address as it moves.
func (h *Heap) Collect(addrCells []*uint64) {
	for _, cell := range addrCells {
		addr := uintptr(atomic.LoadUint64(cell))
		if addr == 0 || addr == Sentinel {
			continue
		}
		headerWord := *(*uint64)(addrToPtr(addr))
		atomic.StoreUint64(cell, headerWord)
		*(*uint64)(addrToPtr(addr)) = uint64(uintptr(unsafe.Pointer(cell)))
	}

	src := h.base
	dst := h.base
	top := h.Top()

	for src < top {
		word := *(*uint64)(addrToPtr(src))
		if word&1 == 1 {
			hdr := Header(word)
			src += hdr.EntrySize()
			continue
		}

		cell := (*uint64)(unsafe.Pointer(uintptr(word)))
		hdr := Header(*cell)
		size := hdr.EntrySize()

		atomic.StoreUint64(cell, uint64(dst))
		*(*uint64)(addrToPtr(src)) = uint64(hdr)

		if dst != src {
			copy(
				unsafehelpers.ByteSliceFrom(addrToPtr(dst), size),
				unsafehelpers.ByteSliceFrom(addrToPtr(src), size),
			)
		}

		dst += size
		src += size
	}

	atomic.StoreUint64(h.heapTop, uint64(dst))
	atomic.StoreUint64(h.wasted, 0)
}
