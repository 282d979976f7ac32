// Package heap implements the bump-allocated, cache-line-padded value heap
// and its compacting garbage collector (spec §4.5). The heap is a flat byte
// range inside the shared region; this package never allocates from the Go
// heap for entry storage, only for small scratch buffers during GC.
//
// Entries are immutable once written. Each begins with a 64-bit header
// packing (from the high bit down): a 31-bit stored payload size, a 1-bit
// kind discriminant, a 31-bit original uncompressed size (0 if stored raw),
// and a tag bit that is always 1 — the low bit of a header word is always
// set, while the low bit of a heap-resident back-pointer is always 0 (it
// names an 8-byte-aligned addr cell). That asymmetry is what lets the
// compactor (gc.go) tell a live header apart from a back-pointer using only
// the first 8 bytes of an entry.
//
// © 2025 shm-substrate authors. MIT License.
package heap

import "github.com/shmsubstrate/core/internal/unsafehelpers"

// CacheLine is the alignment unit for every heap entry (spec glossary:
// "Aligned size").
const CacheLine = 64

// Kind discriminates what a payload holds.
type Kind uint8

const (
	// KindSerialized is an opaque, caller-serialized blob.
	KindSerialized Kind = 0
	// KindString is a raw byte string stored verbatim (no serializer
	// round-trip needed).
	KindString Kind = 1
)

const (
	tagBit          = uint64(1)
	kindBit         = uint64(1) << 32
	uncompressedLen = 31
	uncompressedMax = (uint64(1) << uncompressedLen) - 1
	storedLen       = 31
	storedMax       = (uint64(1) << storedLen) - 1
	storedShift     = 33
	uncompShift     = 1
)

// Header is the 64-bit word at the start of every heap entry.
type Header uint64

// EncodeHeader packs a header word. storedSize and uncompressedSize must
// each fit in 31 bits; callers validate this before calling (spec: "Payload
// size must fit in 31 bits").
func EncodeHeader(storedSize uint64, kind Kind, uncompressedSize uint64) Header {
	if storedSize > storedMax || uncompressedSize > uncompressedMax {
		panic("heap: size does not fit in 31 bits")
	}
	h := storedSize<<storedShift | uncompressedSize<<uncompShift | tagBit
	if kind == KindString {
		h |= kindBit
	}
	return Header(h)
}

// IsHeader reports whether the low bit is set — true for every real header,
// false for the back-pointer word a live entry is temporarily rewritten to
// hold during compaction (see gc.go).
func (h Header) IsHeader() bool { return uint64(h)&tagBit == 1 }

// StoredSize returns the (possibly compressed) payload size in bytes.
func (h Header) StoredSize() uint64 { return uint64(h) >> storedShift }

// Kind returns whether the payload is a raw string or an opaque serialized
// blob.
func (h Header) Kind() Kind {
	if uint64(h)&kindBit != 0 {
		return KindString
	}
	return KindSerialized
}

// UncompressedSize returns the original size before LZ4 compression, or 0 if
// the payload is stored uncompressed.
func (h Header) UncompressedSize() uint64 {
	return (uint64(h) >> uncompShift) & uncompressedMax
}

// EntrySize returns the total aligned size (header + payload, rounded up to
// the cache line) that this header's entry occupies on the heap.
func (h Header) EntrySize() uintptr {
	return unsafehelpers.AlignUp(uintptr(8+h.StoredSize()), CacheLine)
}
