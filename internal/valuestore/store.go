package valuestore

import (
	"sync/atomic"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/shmsubstrate/core/internal/heap"
	"github.com/shmsubstrate/core/internal/serr"
	"github.com/shmsubstrate/core/internal/unsafehelpers"
)

// StuckWriterTimeout bounds how long Has spins on a SENTINEL slot before
// raising a fatal timeout (spec.md §4.4 "Read protocol": "≥60 wall-clock
// seconds"). It is a policy choice, not a semantic constant, so tests may
// lower it directly rather than through a separate public knob.
var StuckWriterTimeout = 60 * time.Second

// LostRace is the sentinel pair Put returns when a concurrent writer
// claimed the slot first (spec.md §4.4: "(−∞, −∞)" if another writer won).
const LostRace = -1

// Store is the open-addressed hash→heap-address value table (spec.md §3
// "Value store", §4.4). hashes and addrs are parallel region-resident
// []uint64 slices of the same power-of-two length, one pair per slot.
type Store struct {
	hashes       []uint64
	addrs        []uint64
	hcounter     *uint64
	heap         *heap.Heap
	codec        Codec
	allowRemoves func() bool
	shouldExit   func() bool
}

// New constructs a Store. hashes and addrs must be the same power-of-two
// length and zero-initialised.
func New(hashes, addrs []uint64, hcounter *uint64, h *heap.Heap, codec Codec, allowRemoves, shouldExit func() bool) *Store {
	if len(hashes) != len(addrs) {
		panic("valuestore: hashes and addrs must be the same length")
	}
	if !unsafehelpers.IsPowerOfTwo(uintptr(len(hashes))) {
		panic("valuestore: size must be a power of two")
	}
	return &Store{hashes: hashes, addrs: addrs, hcounter: hcounter, heap: h, codec: codec, allowRemoves: allowRemoves, shouldExit: shouldExit}
}

// AddrCells exposes every slot's addr field as a directly-addressable cell,
// for handing to heap.Collect during compaction.
func (s *Store) AddrCells() []*uint64 {
	cells := make([]*uint64, len(s.addrs))
	for i := range s.addrs {
		cells[i] = &s.addrs[i]
	}
	return cells
}

// Count returns the number of occupied hashtable slots.
func (s *Store) Count() uint64 {
	return atomic.LoadUint64(s.hcounter)
}

func (s *Store) checkCancel(op string) error {
	if s.shouldExit() {
		return serr.ErrWorkerShouldExit.WithOp(op)
	}
	return nil
}

// findOrClaimSlot locates key's hash slot, claiming an empty one along the
// way. Returns the slot index; on table-full, returns ErrHashTableFull.
func (s *Store) findOrClaimSlot(h uint64) (int, error) {
	n := uint64(len(s.hashes))
	start := h & (n - 1)
	slot := start

	for {
		cur := atomic.LoadUint64(&s.hashes[slot])
		if cur == 0 {
			if atomic.CompareAndSwapUint64(&s.hashes[slot], 0, h) {
				atomic.AddUint64(s.hcounter, 1)
				return int(slot), nil
			}
			cur = atomic.LoadUint64(&s.hashes[slot])
		}
		if cur == h {
			return int(slot), nil
		}
		slot = (slot + 1) & (n - 1)
		if slot == start {
			return 0, serr.ErrHashTableFull
		}
	}
}

// Put stores value under key, returning the stored (possibly compressed)
// size and the original uncompressed size. Returns (LostRace, LostRace, nil)
// if a concurrent writer already claimed the slot (spec.md §4.4 "Publication").
func (s *Store) Put(key []byte, value any) (storedBytes, originalBytes int64, err error) {
	if err := s.checkCancel("Put"); err != nil {
		return 0, 0, err
	}
	h, err := keyHash(key)
	if err != nil {
		return 0, 0, err
	}

	slot, err := s.findOrClaimSlot(h)
	if err != nil {
		return 0, 0, err
	}

	if !atomic.CompareAndSwapUint64(&s.addrs[slot], 0, uint64(heap.Sentinel)) {
		return LostRace, LostRace, nil
	}

	// From here on the slot is claimed. A failure below (encode, size, or
	// alloc) leaves it at SENTINEL forever — matching the original, where
	// such a failure is process-fatal rather than something callers retry.
	data, kind, err := s.encode(value)
	if err != nil {
		return 0, 0, err
	}
	originalLen := int64(len(data))
	if originalLen > int64(1)<<31-1 {
		return 0, 0, serr.ErrPayloadTooLarge
	}

	stored, uncompressedSize := compress(data)

	hdr := heap.EncodeHeader(uint64(len(stored)), kind, uncompressedSize)
	addr, err := s.heap.Alloc(uintptr(8 + len(stored)))
	if err != nil {
		return 0, 0, err
	}
	heap.WriteEntry(addr, hdr, stored)

	atomic.StoreUint64(&s.addrs[slot], uint64(addr))
	return int64(len(stored)), originalLen, nil
}

// encode resolves value to its stored byte form and heap.Kind. Raw
// []byte/string values skip the codec entirely (spec.md §6).
func (s *Store) encode(value any) ([]byte, heap.Kind, error) {
	if raw, ok := rawBytes(value); ok {
		return raw, heap.KindString, nil
	}
	data, err := s.codec.Serialize(value)
	if err != nil {
		return nil, 0, serr.ErrSerialization
	}
	return data, heap.KindSerialized, nil
}

// compress attempts LZ4 compression, keeping the compressed form only if
// strictly smaller than the original (spec.md §4.4 "Payload encoding").
func compress(data []byte) (stored []byte, uncompressedSize uint64) {
	if len(data) == 0 {
		return data, 0
	}
	bound := lz4.CompressBlockBound(len(data))
	dst := make([]byte, bound)
	hashTable := make([]int, 1<<16)
	n, err := lz4.CompressBlock(data, dst, hashTable)
	if err != nil || n == 0 || n >= len(data) {
		return data, 0
	}
	return dst[:n], uint64(len(data))
}

// decompress reverses compress, given the original uncompressed size
// recorded in the header (0 means the payload was stored raw).
func decompress(stored []byte, uncompressedSize uint64) ([]byte, error) {
	if uncompressedSize == 0 {
		return stored, nil
	}
	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(stored, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// Has reports key's presence, spinning on a SENTINEL slot for up to
// StuckWriterTimeout before raising a fatal timeout (spec.md §4.4).
func (s *Store) Has(key []byte) (Presence, error) {
	if err := s.checkCancel("Has"); err != nil {
		return AbsentNeverWritten, err
	}
	h, err := keyHash(key)
	if err != nil {
		return AbsentNeverWritten, err
	}

	n := uint64(len(s.hashes))
	start := h & (n - 1)
	slot := start

	for {
		cur := atomic.LoadUint64(&s.hashes[slot])
		if cur == 0 {
			return AbsentNeverWritten, nil
		}
		if cur == h {
			return s.waitForPublish(slot)
		}
		slot = (slot + 1) & (n - 1)
		if slot == start {
			return AbsentNeverWritten, nil
		}
	}
}

func (s *Store) waitForPublish(slot uint64) (Presence, error) {
	deadline := time.Now().Add(StuckWriterTimeout)
	for {
		addr := atomic.LoadUint64(&s.addrs[slot])
		switch addr {
		case 0:
			return AbsentRemoved, nil
		case uint64(heap.Sentinel):
			if time.Now().After(deadline) {
				return AbsentNeverWritten, serr.ErrStuckWriter
			}
			spinHint()
			continue
		default:
			return Present, nil
		}
	}
}

// Get reads key's value into out, which must be a pointer type the codec
// (or, for a raw-string entry, a *[]byte/*string) understands.
func (s *Store) Get(key []byte, out any) error {
	if err := s.checkCancel("Get"); err != nil {
		return err
	}
	data, kind, err := s.readRaw(key)
	if err != nil {
		return err
	}
	if kind == heap.KindString {
		switch dst := out.(type) {
		case *[]byte:
			*dst = data
			return nil
		case *string:
			*dst = string(data)
			return nil
		default:
			return serr.ErrSerialization
		}
	}
	return s.codec.Deserialize(data, out)
}

// SizeOf returns the stored (possibly compressed) size of key's entry.
func (s *Store) SizeOf(key []byte) (int64, error) {
	if err := s.checkCancel("SizeOf"); err != nil {
		return 0, err
	}
	slot, found, err := s.locate(key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, serr.ErrNotPresent
	}
	addr := uintptr(atomic.LoadUint64(&s.addrs[slot]))
	hdr := heap.ReadHeader(addr)
	return int64(hdr.StoredSize()), nil
}

func (s *Store) readRaw(key []byte) (data []byte, kind heap.Kind, err error) {
	slot, found, err := s.locate(key)
	if err != nil {
		return nil, 0, err
	}
	if !found {
		return nil, 0, serr.ErrNotPresent
	}
	addr := uintptr(atomic.LoadUint64(&s.addrs[slot]))
	hdr := heap.ReadHeader(addr)
	payload := heap.ReadPayload(addr, hdr)
	out, err := decompress(payload, hdr.UncompressedSize())
	if err != nil {
		return nil, 0, err
	}
	return out, hdr.Kind(), nil
}

// locate finds key's slot and spins past any in-flight publish, reporting
// found=true only for a live (Present) entry.
func (s *Store) locate(key []byte) (slot int, found bool, err error) {
	h, err := keyHash(key)
	if err != nil {
		return 0, false, err
	}
	n := uint64(len(s.hashes))
	start := h & (n - 1)
	probe := start

	for {
		cur := atomic.LoadUint64(&s.hashes[probe])
		if cur == 0 {
			return 0, false, nil
		}
		if cur == h {
			presence, perr := s.waitForPublish(probe)
			if perr != nil {
				return 0, false, perr
			}
			return int(probe), presence == Present, nil
		}
		probe = (probe + 1) & (n - 1)
		if probe == start {
			return 0, false, nil
		}
	}
}

// Move copies src's entry to dst and tombstones src. Master-only; requires
// src present and dst absent (spec.md §4.4 "Move/remove").
func (s *Store) Move(src, dst []byte) error {
	srcSlot, found, err := s.locate(src)
	if err != nil {
		return err
	}
	if !found {
		return serr.ErrSrcAbsent
	}

	dstHash, err := keyHash(dst)
	if err != nil {
		return err
	}
	dstSlot, err := s.findOrClaimSlot(dstHash)
	if err != nil {
		return err
	}
	if atomic.LoadUint64(&s.addrs[dstSlot]) != 0 {
		return serr.ErrDstPresent
	}

	addr := atomic.LoadUint64(&s.addrs[srcSlot])
	atomic.StoreUint64(&s.addrs[dstSlot], addr)
	atomic.StoreUint64(&s.addrs[srcSlot], 0)
	return nil
}

// Remove tombstones key's entry and accounts its bytes as wasted. Master-
// only; requires allow_removes and the key present (spec.md §4.4).
func (s *Store) Remove(key []byte) error {
	if !s.allowRemoves() {
		return serr.ErrRemovesBlocked
	}
	slot, found, err := s.locate(key)
	if err != nil {
		return err
	}
	if !found {
		return serr.ErrNotPresent
	}
	addr := uintptr(atomic.LoadUint64(&s.addrs[slot]))
	hdr := heap.ReadHeader(addr)
	atomic.StoreUint64(&s.addrs[slot], 0)
	s.heap.AddWasted(int64(hdr.EntrySize()))
	return nil
}
