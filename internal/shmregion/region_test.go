package shmregion

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

type jsonStubCodec struct{}

func (jsonStubCodec) Serialize(v any) ([]byte, error)        { return nil, nil }
func (jsonStubCodec) Deserialize(data []byte, out any) error { return nil }

// newTestRegion wires a Region over a plain Go byte buffer instead of a
// real fixed-address mmap, the same substitution heap_test.go and
// valuestore's store_test.go make: Go's allocator never moves a live
// buffer, so &buf[0] stands in for "the fixed base every process sees".
func newTestRegion(t *testing.T, sizes Sizes, isMaster bool) *Region {
	t.Helper()
	layout, err := computeLayout(sizes)
	require.NoError(t, err)

	buf := make([]byte, layout.TotalSize)
	t.Cleanup(func() { _ = buf })
	base := unsafe.Pointer(&buf[0])

	r := wire(base, layout, -1, isMaster, jsonStubCodec{})
	*controlWord(base, layout, fieldHeapTop) = uint64(uintptr(base) + uintptr(layout.HeapOffset))
	return r
}

func testSizes() Sizes {
	return Sizes{GlobalBytes: 256, HeapBytes: 4096, DepLog2: 6, HashLog2: 6}
}

func TestComputeLayoutOffsetsAreOrderedAndSized(t *testing.T) {
	sizes := testSizes()
	l, err := computeLayout(sizes)
	require.NoError(t, err)

	require.Less(t, l.ControlOffset, l.FilenameOffset)
	require.Less(t, l.FilenameOffset, l.GlobalOffset)
	require.Less(t, l.GlobalOffset, l.DepBindingsOffset)
	require.Equal(t, l.DepBindingsOffset+sizes.DepSize()*8, l.DepSlotsOffset)
	require.Less(t, l.DepSlotsOffset, l.HashHashesOffset)
	require.Equal(t, l.HashHashesOffset+sizes.HashSize()*8, l.HashAddrsOffset)
	require.Less(t, l.HashAddrsOffset, l.HeapOffset)
	require.Equal(t, l.HeapOffset+sizes.HeapBytes, l.TotalSize)
}

func TestComputeLayoutRejectsZeroSizes(t *testing.T) {
	_, err := computeLayout(Sizes{})
	require.Error(t, err)
}

func TestGlobalStoreLoadClear(t *testing.T) {
	r := newTestRegion(t, testSizes(), true)

	_, err := r.GlobalLoad()
	require.Error(t, err)

	require.NoError(t, r.GlobalStore([]byte("broadcast payload")))

	got, err := r.GlobalLoad()
	require.NoError(t, err)
	require.Equal(t, []byte("broadcast payload"), got)

	require.Error(t, r.GlobalStore([]byte("second write rejected")))

	require.NoError(t, r.GlobalClear())
	require.NoError(t, r.GlobalStore([]byte("after clear")))
}

func TestGlobalStoreRejectsExactCapacity(t *testing.T) {
	sizes := testSizes()
	r := newTestRegion(t, sizes, true)

	exact := make([]byte, sizes.GlobalBytes)
	require.Error(t, r.GlobalStore(exact))

	oneLess := make([]byte, sizes.GlobalBytes-1)
	require.NoError(t, r.GlobalStore(oneLess))
}

func TestGlobalStoreMasterOnly(t *testing.T) {
	r := newTestRegion(t, testSizes(), false)
	err := r.GlobalStore([]byte("x"))
	require.Error(t, err)
}

func TestPhaseGatesDefaultClosed(t *testing.T) {
	r := newTestRegion(t, testSizes(), true)
	require.False(t, r.allowDepReads())
	require.False(t, r.allowRemoves())
	require.False(t, r.ShouldExit())

	require.NoError(t, r.SetAllowDepReads(true))
	require.True(t, r.allowDepReads())

	require.NoError(t, r.SetAllowRemoves(true))
	require.True(t, r.allowRemoves())

	require.NoError(t, r.SetWorkersShouldExit(true))
	require.True(t, r.ShouldExit())
}

func TestNextCounterMonotonic(t *testing.T) {
	r := newTestRegion(t, testSizes(), true)
	a := r.NextCounter()
	b := r.NextCounter()
	require.Equal(t, a+1, b)
}

func TestFilenamePageRoundTrip(t *testing.T) {
	sizes := testSizes()
	layout, err := computeLayout(sizes)
	require.NoError(t, err)
	buf := make([]byte, layout.TotalSize)
	base := unsafe.Pointer(&buf[0])

	require.Equal(t, "", readFilenamePage(base, layout))

	require.NoError(t, writeFilenamePage(base, layout, "/tmp/shm-substrate-test.region"))
	require.Equal(t, "/tmp/shm-substrate-test.region", readFilenamePage(base, layout))
}

func TestFilenamePageRejectsOversizedPath(t *testing.T) {
	sizes := testSizes()
	layout, err := computeLayout(sizes)
	require.NoError(t, err)
	buf := make([]byte, layout.TotalSize)
	base := unsafe.Pointer(&buf[0])

	require.Error(t, writeFilenamePage(base, layout, string(make([]byte, filenamePageBytes))))
}

func TestBackingPathEmptyForAnonymousRegion(t *testing.T) {
	r := newTestRegion(t, testSizes(), true)
	require.Empty(t, r.BackingPath())
}

func TestWiredDepTableAndValueStoreOperate(t *testing.T) {
	r := newTestRegion(t, testSizes(), true)
	require.NoError(t, r.SetAllowDepReads(true))

	added, err := r.Dep.AddEdge(1, 2)
	require.NoError(t, err)
	require.True(t, added)

	edges, err := r.Dep.GetEdges(1)
	require.NoError(t, err)
	require.Equal(t, []uint32{2}, edges)

	_, _, err = r.Values.Put([]byte{1, 2, 3, 4, 5, 6, 7, 8}, []byte("value"))
	require.NoError(t, err)
}
