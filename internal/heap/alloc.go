package heap

import (
	"sync/atomic"
	"unsafe"

	"github.com/shmsubstrate/core/internal/serr"
	"github.com/shmsubstrate/core/internal/unsafehelpers"
)

// Committer ensures a byte range backing the heap is physically committed
// before the caller writes into it, so an out-of-memory condition surfaces
// as a reported error rather than an asynchronous SIGBUS/SIGSEGV (spec
// §4.1 "ensure committed" step). On POSIX, MAP_NORESERVE overcommit already
// defers backing and a page fault on write either succeeds or kills the
// process; EnsureCommitted exists as the seam a Windows VirtualAlloc-based
// implementation would hook into, per spec's reserve-then-commit note.
type Committer interface {
	EnsureCommitted(offset, length uintptr) error
}

// Heap is the bump-allocated, cache-line-padded value heap (spec §4.5).
// addresses are absolute virtual addresses valid in every attached process
// because the surrounding region is mapped at a fixed address — see
// addrToPtr on why that justifies converting a stored uint64 back into
// unsafe.Pointer at the point of use.
type Heap struct {
	base    uintptr
	end     uintptr
	heapTop *uint64 // control-page word, holds an absolute address
	wasted  *uint64 // control-page word: wasted_heap_bytes
	commit  Committer
}

// New constructs a Heap view over [base, end). heapTop must already be
// initialised to base by the region's Init (spec: heap_top starts empty).
func New(base, end uintptr, heapTop, wasted *uint64, commit Committer) *Heap {
	return &Heap{base: base, end: end, heapTop: heapTop, wasted: wasted, commit: commit}
}

// Base returns the heap's starting address.
func (h *Heap) Base() uintptr { return h.base }

// End returns the heap's fixed end address (the region never grows).
func (h *Heap) End() uintptr { return h.end }

// Top returns the current heap_top value.
func (h *Heap) Top() uintptr { return uintptr(atomic.LoadUint64(h.heapTop)) }

// addrToPtr converts a stored absolute address back to unsafe.Pointer. This
// is safe only because addr always denotes a byte within the fixed-address
// mapping shared by every attached process — the one documented exception
// to "don't convert an arbitrary uintptr to Pointer".
func addrToPtr(addr uintptr) unsafe.Pointer { return unsafe.Pointer(addr) } //nolint:govet

// Alloc bump-allocates payloadAndHeaderSize bytes (already including the
// 8-byte header), rounds up to the cache line, and returns the entry's
// address. Raises ErrHeapFull when the new top would exceed the heap end.
func (h *Heap) Alloc(payloadAndHeaderSize uintptr) (uintptr, error) {
	aligned := unsafehelpers.AlignUp(payloadAndHeaderSize, CacheLine)
	newTop := atomic.AddUint64(h.heapTop, uint64(aligned))
	addr := uintptr(newTop) - aligned
	if uintptr(newTop) > h.end {
		return 0, serr.ErrHeapFull.WithSize(int64(aligned))
	}
	if err := h.commit.EnsureCommitted(addr-h.base, aligned); err != nil {
		return 0, serr.ErrOutOfSharedMemory
	}
	return addr, nil
}

// WriteEntry writes header and payload at addr. The caller must have
// obtained addr from Alloc and not have published it to any hashtable slot
// yet — entries are immutable once published (spec §3 "Ownership").
func WriteEntry(addr uintptr, header Header, payload []byte) {
	*(*uint64)(addrToPtr(addr)) = uint64(header)
	if len(payload) == 0 {
		return
	}
	dst := unsafehelpers.ByteSliceFrom(addrToPtr(addr+8), uintptr(len(payload)))
	copy(dst, payload)
}

// ReadHeader reads the 8-byte header at addr.
func ReadHeader(addr uintptr) Header {
	return Header(*(*uint64)(addrToPtr(addr)))
}

// ReadPayload returns a view of the stored (possibly compressed) payload
// bytes at addr, per the header's StoredSize.
func ReadPayload(addr uintptr, h Header) []byte {
	return unsafehelpers.ByteSliceFrom(addrToPtr(addr+8), uintptr(h.StoredSize()))
}

// AddWasted adds n bytes to the wasted_heap_bytes counter (called by
// Remove in the value store when the master tombstones an entry).
func (h *Heap) AddWasted(n int64) {
	atomic.AddUint64(h.wasted, uint64(n))
}

// WastedBytes returns the current wasted_heap_bytes counter.
func (h *Heap) WastedBytes() uint64 {
	return atomic.LoadUint64(h.wasted)
}

// Used returns heap_top - heap_base: total bytes bump-allocated so far,
// including tombstoned entries not yet reclaimed.
func (h *Heap) Used() uint64 {
	return uint64(h.Top() - h.base)
}

// Reachable returns used - wasted: live bytes, per the Collect predicate
// (spec §4.5 "When to run").
func (h *Heap) Reachable() uint64 {
	used := h.Used()
	wasted := h.WastedBytes()
	if wasted > used {
		return 0
	}
	return used - wasted
}
