package deptable

import (
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T, size int) *Table {
	t.Helper()
	bindings := make([]uint64, size)
	slots := make([]uint64, size)
	var counter uint64
	allow := true
	return New(bindings, slots, &counter, func() bool { return allow })
}

func TestAddEdgeNewAndDuplicate(t *testing.T) {
	tbl := newTestTable(t, 64)

	added, err := tbl.AddEdge(1, 2)
	require.NoError(t, err)
	require.True(t, added)

	added, err = tbl.AddEdge(1, 2)
	require.NoError(t, err)
	require.False(t, added)
	require.Equal(t, uint64(1), tbl.Count())
}

func TestAddEdgeRejectsOversizedVertex(t *testing.T) {
	tbl := newTestTable(t, 64)
	_, err := tbl.AddEdge(1<<31, 2)
	require.Error(t, err)
}

func TestGetEdgesSingleValue(t *testing.T) {
	tbl := newTestTable(t, 64)
	_, err := tbl.AddEdge(10, 20)
	require.NoError(t, err)

	edges, err := tbl.GetEdges(10)
	require.NoError(t, err)
	require.Equal(t, []uint32{20}, edges)
}

func TestGetEdgesMultipleValuesViaChaining(t *testing.T) {
	tbl := newTestTable(t, 64)
	want := []uint32{20, 21, 22, 23}
	for _, v := range want {
		_, err := tbl.AddEdge(10, v)
		require.NoError(t, err)
	}

	edges, err := tbl.GetEdges(10)
	require.NoError(t, err)
	require.ElementsMatch(t, want, edges)
}

func TestGetEdgesEmptyKey(t *testing.T) {
	tbl := newTestTable(t, 64)
	edges, err := tbl.GetEdges(999)
	require.NoError(t, err)
	require.Nil(t, edges)
}

func TestGetEdgesBlockedByGate(t *testing.T) {
	bindings := make([]uint64, 64)
	slots := make([]uint64, 64)
	var counter uint64
	tbl := New(bindings, slots, &counter, func() bool { return false })

	_, err := tbl.GetEdges(1)
	require.Error(t, err)
}

func TestDepTableFullRaises(t *testing.T) {
	tbl := newTestTable(t, 4)
	for i := uint32(0); i < 4; i++ {
		_, err := tbl.AddEdge(i, 100)
		require.NoError(t, err)
	}
	_, err := tbl.AddEdge(200, 300)
	require.Error(t, err)
}

func TestAddEdgeConcurrentDistinctKeysNoLostWrites(t *testing.T) {
	tbl := newTestTable(t, 4096)

	const keys = 50
	var wg sync.WaitGroup
	for k := uint32(0); k < keys; k++ {
		wg.Add(1)
		go func(key uint32) {
			defer wg.Done()
			for v := uint32(0); v < 8; v++ {
				_, err := tbl.AddEdge(key, v)
				require.NoError(t, err)
			}
		}(k)
	}
	wg.Wait()

	for k := uint32(0); k < keys; k++ {
		edges, err := tbl.GetEdges(k)
		require.NoError(t, err)
		sort.Slice(edges, func(i, j int) bool { return edges[i] < edges[j] })
		if diff := cmp.Diff([]uint32{0, 1, 2, 3, 4, 5, 6, 7}, edges); diff != "" {
			t.Errorf("key %d adjacency list mismatch (-want +got):\n%s", k, diff)
		}
	}
}
