package shmregion

import (
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/shmsubstrate/core/internal/deptable"
	"github.com/shmsubstrate/core/internal/heap"
	"github.com/shmsubstrate/core/internal/serr"
	"github.com/shmsubstrate/core/internal/unsafehelpers"
	"github.com/shmsubstrate/core/internal/valuestore"
)

// Handle is the connector passed from the master to every worker process
// (spec.md §6 "Connector handle"): enough information to re-derive the
// exact same Layout and re-attach the same backing object.
type Handle struct {
	BackingFD int
	Sizes     Sizes
}

// Region is the attached, fully-wired shared-memory region: the mapped
// bytes plus every internal component view built on top of it.
type Region struct {
	base     unsafe.Pointer
	layout   Layout
	fd       int
	isMaster bool

	Heap   *heap.Heap
	Dep    *deptable.Table
	Values *valuestore.Store

	codec valuestore.Codec
}

// mmapCommitter is the heap.Committer backing a mmap'd region. On POSIX,
// MAP_NORESERVE overcommit already defers physical backing, so there is
// nothing additional to do: a write either succeeds lazily or the process
// takes SIGBUS, which is the documented tradeoff of overcommit (spec.md
// §4.1's Windows-oriented reserve/commit step has no POSIX equivalent).
type mmapCommitter struct{}

func (mmapCommitter) EnsureCommitted(offset, length uintptr) error { return nil }

// Init creates a brand-new backing object, maps it at the fixed address,
// zeroes the control words, and wires every component view. Master-only
// (spec.md §4.1).
func Init(sizes Sizes, backingDir string, minAvailBytes uint64, codec valuestore.Codec) (*Region, Handle, error) {
	layout, err := computeLayout(sizes)
	if err != nil {
		return nil, Handle{}, err
	}

	fd, path, err := createBackingObject(layout.TotalSize, backingDir, minAvailBytes)
	if err != nil {
		return nil, Handle{}, err
	}

	base, err := mmapFixed(fd, layout.TotalSize)
	if err != nil {
		_ = os.NewFile(uintptr(fd), "").Close()
		return nil, Handle{}, err
	}

	if err := writeFilenamePage(base, layout, path); err != nil {
		_ = munmapFixed(base, layout.TotalSize)
		_ = os.NewFile(uintptr(fd), "").Close()
		return nil, Handle{}, err
	}

	r := wire(base, layout, fd, true, codec)
	*controlWord(base, layout, fieldMasterPID) = uint64(os.Getpid())
	*controlWord(base, layout, fieldHeapTop) = uint64(uintptr(base) + uintptr(layout.HeapOffset))

	return r, Handle{BackingFD: fd, Sizes: sizes}, nil
}

// Attach maps an already-created backing object (received via Handle) into
// the calling process's address space at the same fixed address (spec.md
// §4.1: "every child ... recomputes derived pointers").
func Attach(h Handle, isMaster bool, codec valuestore.Codec) (*Region, error) {
	layout, err := computeLayout(h.Sizes)
	if err != nil {
		return nil, err
	}
	base, err := mmapFixed(h.BackingFD, layout.TotalSize)
	if err != nil {
		return nil, err
	}
	return wire(base, layout, h.BackingFD, isMaster, codec), nil
}

func wire(base unsafe.Pointer, layout Layout, fd int, isMaster bool, codec valuestore.Codec) *Region {
	r := &Region{base: base, layout: layout, fd: fd, isMaster: isMaster, codec: codec}

	heapTop := controlWord(base, layout, fieldHeapTop)
	wasted := controlWord(base, layout, fieldWastedHeapBytes)
	heapBase := uintptr(base) + uintptr(layout.HeapOffset)
	heapEnd := heapBase + uintptr(layout.HeapBytes)
	r.Heap = heap.New(heapBase, heapEnd, heapTop, wasted, mmapCommitter{})

	depCount := controlWord(base, layout, fieldDeptblCount)
	bindings := unsafehelpers.PtrSlice(unsafehelpers.Uint64At(base, uintptr(layout.DepBindingsOffset)), int(layout.DepSize()))
	slots := unsafehelpers.PtrSlice(unsafehelpers.Uint64At(base, uintptr(layout.DepSlotsOffset)), int(layout.DepSize()))
	r.Dep = deptable.New(bindings, slots, depCount, r.allowDepReads)

	hashCount := controlWord(base, layout, fieldHashtblCount)
	hashes := unsafehelpers.PtrSlice(unsafehelpers.Uint64At(base, uintptr(layout.HashHashesOffset)), int(layout.HashSize()))
	addrs := unsafehelpers.PtrSlice(unsafehelpers.Uint64At(base, uintptr(layout.HashAddrsOffset)), int(layout.HashSize()))
	r.Values = valuestore.New(hashes, addrs, hashCount, r.Heap, codec, r.allowRemoves, r.ShouldExit)

	return r
}

// Close unmaps the region from this process. It does not destroy the
// backing object — only the master's final exit does that, by closing the
// last descriptor.
func (r *Region) Close() error {
	return munmapFixed(r.base, r.layout.TotalSize)
}

// IsMaster reports whether this process attached with master privileges.
func (r *Region) IsMaster() bool { return r.isMaster }

// BackingPath returns the backing object's filesystem path, as recorded in
// the filename page at Init. Empty for an anonymous memfd-backed region.
func (r *Region) BackingPath() string {
	return readFilenamePage(r.base, r.layout)
}

func (r *Region) requireMaster(op string) error {
	if !r.isMaster {
		return serr.ErrMasterOnly.WithOp(op)
	}
	return nil
}

func (r *Region) allowRemoves() bool {
	return *controlWord(r.base, r.layout, fieldAllowRemoves) != 0
}

func (r *Region) allowDepReads() bool {
	return *controlWord(r.base, r.layout, fieldAllowDepReads) != 0
}

// ShouldExit reports the cooperative-cancellation flag (spec.md §5).
func (r *Region) ShouldExit() bool {
	return *controlWord(r.base, r.layout, fieldWorkersShouldExit) != 0
}

// SetAllowRemoves toggles the allow_removes phase gate. Master-only.
func (r *Region) SetAllowRemoves(v bool) error {
	if err := r.requireMaster("SetAllowRemoves"); err != nil {
		return err
	}
	*controlWord(r.base, r.layout, fieldAllowRemoves) = boolWord(v)
	return nil
}

// SetAllowDepReads toggles the allow_dep_reads phase gate. Master-only.
func (r *Region) SetAllowDepReads(v bool) error {
	if err := r.requireMaster("SetAllowDepReads"); err != nil {
		return err
	}
	*controlWord(r.base, r.layout, fieldAllowDepReads) = boolWord(v)
	return nil
}

// SetWorkersShouldExit raises the cooperative-cancellation flag. Master-only.
func (r *Region) SetWorkersShouldExit(v bool) error {
	if err := r.requireMaster("SetWorkersShouldExit"); err != nil {
		return err
	}
	*controlWord(r.base, r.layout, fieldWorkersShouldExit) = boolWord(v)
	return nil
}

func boolWord(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// ShouldSample reports whether the given hot-path event counter should be
// logged, per the sample_rate control word (spec.md §9 "Telemetry knobs").
// sample_rate==0 means "never sample"; sample_rate==1 means "always".
func (r *Region) ShouldSample(counterValue uint64) bool {
	rate := *controlWord(r.base, r.layout, fieldSampleRate)
	if rate == 0 {
		return false
	}
	return counterValue%rate == 0
}

// NextCounter atomically advances and returns global_counter, wrapping at
// the platform word modulus (spec.md §3; Open Question #2 resolves the
// wraparound as ordinary unsigned overflow, no special-cased modulus).
func (r *Region) NextCounter() uint64 {
	word := controlWord(r.base, r.layout, fieldGlobalCounter)
	return atomic.AddUint64(word, 1)
}
