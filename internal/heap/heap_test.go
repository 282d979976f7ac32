package heap

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// noopCommitter treats every byte range as already committed — correct on
// POSIX where MAP_NORESERVE overcommit backs pages lazily.
type noopCommitter struct{}

func (noopCommitter) EnsureCommitted(offset, length uintptr) error { return nil }

// newTestHeap backs a Heap with a plain Go byte slice. Go's garbage
// collector never moves heap objects once allocated, which is what lets a
// single process treat &buf[0] as a stable "fixed address" the way every
// attached process would treat the real mmap base.
func newTestHeap(t *testing.T, size int) (*Heap, *uint64, *uint64) {
	t.Helper()
	buf := make([]byte, size)
	base := uintptr(unsafe.Pointer(&buf[0]))
	top := base
	var heapTop uint64 = uint64(top)
	var wasted uint64
	h := New(base, base+uintptr(size), &heapTop, &wasted, noopCommitter{})
	// keep buf alive for the lifetime of the test via closure capture
	t.Cleanup(func() { _ = buf })
	return h, &heapTop, &wasted
}

func TestHeaderRoundTrip(t *testing.T) {
	h := EncodeHeader(100, KindString, 0)
	require.True(t, h.IsHeader())
	require.Equal(t, uint64(100), h.StoredSize())
	require.Equal(t, KindString, h.Kind())
	require.Equal(t, uint64(0), h.UncompressedSize())

	h2 := EncodeHeader(40, KindSerialized, 1000)
	require.Equal(t, uint64(40), h2.StoredSize())
	require.Equal(t, KindSerialized, h2.Kind())
	require.Equal(t, uint64(1000), h2.UncompressedSize())
}

func TestAllocBumpsTopAndAligns(t *testing.T) {
	h, _, _ := newTestHeap(t, 4096)
	a1, err := h.Alloc(10)
	require.NoError(t, err)
	a2, err := h.Alloc(10)
	require.NoError(t, err)
	require.Equal(t, uintptr(CacheLine), a2-a1)
	require.Equal(t, uint64(2*CacheLine), h.Used())
}

func TestAllocHeapFull(t *testing.T) {
	h, _, _ := newTestHeap(t, CacheLine)
	_, err := h.Alloc(10)
	require.NoError(t, err)
	_, err = h.Alloc(10)
	require.Error(t, err)
}

func TestWriteReadEntry(t *testing.T) {
	h, _, _ := newTestHeap(t, 4096)
	payload := []byte("hello world")
	addr, err := h.Alloc(uintptr(8 + len(payload)))
	require.NoError(t, err)
	hdr := EncodeHeader(uint64(len(payload)), KindString, 0)
	WriteEntry(addr, hdr, payload)

	got := ReadHeader(addr)
	require.Equal(t, hdr, got)
	require.Equal(t, payload, ReadPayload(addr, got))
}

func TestCollectCompacts(t *testing.T) {
	h, _, wasted := newTestHeap(t, 8*CacheLine)

	type cell struct{ v uint64 }
	cells := make([]uint64, 3)

	write := func(idx int, s string) {
		payload := []byte(s)
		addr, err := h.Alloc(uintptr(8 + len(payload)))
		require.NoError(t, err)
		hdr := EncodeHeader(uint64(len(payload)), KindString, 0)
		WriteEntry(addr, hdr, payload)
		cells[idx] = uint64(addr)
	}

	write(0, "aaaa")
	write(1, "bbbbbb")
	write(2, "cc")

	// Tombstone the middle entry: addr -> 0, account wasted bytes.
	midAddr := uintptr(cells[1])
	midSize := ReadHeader(midAddr).EntrySize()
	cells[1] = 0
	*wasted += uint64(midSize)

	cellPtrs := []*uint64{&cells[0], &cells[1], &cells[2]}
	h.Collect(cellPtrs)

	require.Equal(t, uint64(0), h.WastedBytes())
	require.Equal(t, []byte("aaaa"), ReadPayload(uintptr(cells[0]), ReadHeader(uintptr(cells[0]))))
	require.Equal(t, []byte("cc"), ReadPayload(uintptr(cells[2]), ReadHeader(uintptr(cells[2]))))
	require.Equal(t, uint64(2*CacheLine), h.Used())
}
