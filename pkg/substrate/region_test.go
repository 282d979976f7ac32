package substrate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := NewConfig(256, 1<<16, 6, 6)
	require.NoError(t, err)
	return cfg
}

func TestNewConfigRejectsZeroSizes(t *testing.T) {
	_, err := NewConfig(0, 1<<16, 6, 6)
	require.Error(t, err)

	_, err = NewConfig(256, 0, 6, 6)
	require.Error(t, err)

	_, err = NewConfig(256, 1<<16, 0, 6)
	require.Error(t, err)
}

func TestInitAttachRoundTrip(t *testing.T) {
	master, err := Init(testConfig(t))
	require.NoError(t, err)
	defer master.Close()

	require.True(t, master.IsMaster())

	worker, err := Attach(master.Handle(), false)
	require.NoError(t, err)
	defer worker.Close()

	require.False(t, worker.IsMaster())

	require.NoError(t, master.SetAllowDepReads(true))

	added, err := master.AddEdge(1, 2)
	require.NoError(t, err)
	require.True(t, added)

	edges, err := worker.GetEdges(1)
	require.NoError(t, err)
	require.Equal(t, []uint32{2}, edges)
	require.Equal(t, uint64(1), master.DepCount())

	key := []byte("01234567")
	stored, original, err := master.Put(key, []byte("hello substrate"))
	require.NoError(t, err)
	require.Greater(t, original, int64(0))
	require.GreaterOrEqual(t, stored, int64(0))

	presence, err := worker.Has(key)
	require.NoError(t, err)
	require.Equal(t, Present, presence)

	var out []byte
	require.NoError(t, worker.Get(key, &out))
	require.Equal(t, []byte("hello substrate"), out)
}

func TestMasterOnlyOperationsRejectWorkers(t *testing.T) {
	master, err := Init(testConfig(t))
	require.NoError(t, err)
	defer master.Close()

	worker, err := Attach(master.Handle(), false)
	require.NoError(t, err)
	defer worker.Close()

	require.Error(t, worker.GlobalStore([]byte("x")))
	require.Error(t, worker.Collect(false))
	require.Error(t, worker.Remove([]byte("01234567")))
	require.Error(t, worker.Move([]byte("01234567"), []byte("76543210")))
}

func TestGlobalBroadcastRoundTrip(t *testing.T) {
	master, err := Init(testConfig(t))
	require.NoError(t, err)
	defer master.Close()

	require.NoError(t, master.GlobalStore([]byte("broadcast")))

	got, err := master.GlobalLoad()
	require.NoError(t, err)
	require.Equal(t, []byte("broadcast"), got)

	require.NoError(t, master.GlobalClear())
}

func TestCollectAfterRemove(t *testing.T) {
	master, err := Init(testConfig(t))
	require.NoError(t, err)
	defer master.Close()

	require.NoError(t, master.SetAllowRemoves(true))

	key := []byte("01234567")
	_, _, err = master.Put(key, []byte("some value"))
	require.NoError(t, err)

	require.NoError(t, master.Remove(key))
	require.NoError(t, master.Collect(false))
}
