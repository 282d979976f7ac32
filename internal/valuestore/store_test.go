package valuestore

import (
	"encoding/json"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/shmsubstrate/core/internal/heap"
	"github.com/shmsubstrate/core/internal/serr"
)

type noopCommitter struct{}

func (noopCommitter) EnsureCommitted(offset, length uintptr) error { return nil }

type jsonCodec struct{}

func (jsonCodec) Serialize(v any) ([]byte, error)         { return json.Marshal(v) }
func (jsonCodec) Deserialize(data []byte, out any) error { return json.Unmarshal(data, out) }

type testRecord struct {
	Name string
	N    int
}

func newTestStore(t *testing.T, slots int, heapSize int) *Store {
	t.Helper()
	buf := make([]byte, heapSize)
	base := uintptr(unsafe.Pointer(&buf[0]))
	var heapTop uint64 = uint64(base)
	var wasted uint64
	h := heap.New(base, base+uintptr(heapSize), &heapTop, &wasted, noopCommitter{})
	t.Cleanup(func() { _ = buf })

	hashes := make([]uint64, slots)
	addrs := make([]uint64, slots)
	var hcounter uint64
	allowRemoves := true
	shouldExit := false
	return New(hashes, addrs, &hcounter, h, jsonCodec{}, func() bool { return allowRemoves }, func() bool { return shouldExit })
}

func key8(n uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(n >> (8 * i))
	}
	return b
}

func TestPutHasGetRoundTripRawString(t *testing.T) {
	s := newTestStore(t, 64, 8192)
	k := key8(1)

	stored, original, err := s.Put(k, []byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, int64(11), original)
	require.True(t, stored > 0)

	presence, err := s.Has(k)
	require.NoError(t, err)
	require.Equal(t, Present, presence)

	var got []byte
	require.NoError(t, s.Get(k, &got))
	require.Equal(t, []byte("hello world"), got)
}

func TestPutGetRoundTripSerializedValue(t *testing.T) {
	s := newTestStore(t, 64, 8192)
	k := key8(2)

	rec := testRecord{Name: "a", N: 42}
	_, _, err := s.Put(k, rec)
	require.NoError(t, err)

	var got testRecord
	require.NoError(t, s.Get(k, &got))
	require.Equal(t, rec, got)
}

func TestHasAbsentNeverWritten(t *testing.T) {
	s := newTestStore(t, 64, 8192)
	presence, err := s.Has(key8(99))
	require.NoError(t, err)
	require.Equal(t, AbsentNeverWritten, presence)
}

func TestPutKeyTooShort(t *testing.T) {
	s := newTestStore(t, 64, 8192)
	_, _, err := s.Put([]byte("short"), []byte("x"))
	require.Error(t, err)
}

func TestPutDuplicateKeyLosesRace(t *testing.T) {
	s := newTestStore(t, 64, 8192)
	k := key8(3)

	_, _, err := s.Put(k, []byte("first"))
	require.NoError(t, err)

	stored, original, err := s.Put(k, []byte("second"))
	require.NoError(t, err)
	require.Equal(t, int64(LostRace), stored)
	require.Equal(t, int64(LostRace), original)

	var got []byte
	require.NoError(t, s.Get(k, &got))
	require.Equal(t, []byte("first"), got)
}

func TestRemoveRequiresAllowRemoves(t *testing.T) {
	s := newTestStore(t, 64, 8192)
	k := key8(4)
	_, _, err := s.Put(k, []byte("x"))
	require.NoError(t, err)

	s.allowRemoves = func() bool { return false }
	err = s.Remove(k)
	require.Error(t, err)

	s.allowRemoves = func() bool { return true }
	require.NoError(t, s.Remove(k))

	presence, err := s.Has(k)
	require.NoError(t, err)
	require.Equal(t, AbsentRemoved, presence)
}

func TestMoveRequiresDestinationAbsent(t *testing.T) {
	s := newTestStore(t, 64, 8192)
	src, dst := key8(5), key8(6)

	_, _, err := s.Put(src, []byte("payload"))
	require.NoError(t, err)

	require.NoError(t, s.Move(src, dst))

	presence, err := s.Has(src)
	require.NoError(t, err)
	require.Equal(t, AbsentRemoved, presence)

	var got []byte
	require.NoError(t, s.Get(dst, &got))
	require.Equal(t, []byte("payload"), got)

	err = s.Move(key8(7), dst)
	require.ErrorIs(t, err, serr.ErrSrcAbsent)

	another := key8(700)
	_, _, err = s.Put(another, []byte("unrelated"))
	require.NoError(t, err)
	err = s.Move(another, dst)
	require.ErrorIs(t, err, serr.ErrDstPresent)
}

func TestSizeOfMatchesStoredBytes(t *testing.T) {
	s := newTestStore(t, 64, 8192)
	k := key8(8)
	stored, _, err := s.Put(k, []byte("0123456789"))
	require.NoError(t, err)

	size, err := s.SizeOf(k)
	require.NoError(t, err)
	require.Equal(t, stored, size)
}

func TestPutRespectsWorkerShouldExit(t *testing.T) {
	s := newTestStore(t, 64, 8192)
	s.shouldExit = func() bool { return true }
	_, _, err := s.Put(key8(9), []byte("x"))
	require.Error(t, err)
}
