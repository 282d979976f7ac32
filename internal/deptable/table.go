package deptable

import (
	"sync/atomic"

	"github.com/shmsubstrate/core/internal/serr"
	"github.com/shmsubstrate/core/internal/unsafehelpers"
)

const maxVertex = uint32(1)<<31 - 1

// Table is the dependency multigraph: a bindings filter that deduplicates
// (u, v) edges plus an adjacency store that threads each vertex's out-edges
// through the same flat array (spec §3 "Dependency table"). Both views are
// backed by region-resident []uint64 slices supplied by the caller, so they
// may equally be plain Go slices in tests or unsafehelpers.PtrSlice views
// over the mapped region in production.
type Table struct {
	bindings      []uint64
	slots         []uint64
	counter       *uint64
	allowDepReads func() bool
}

// New constructs a Table. bindings and slots must be the same length, a
// power of two, and zero-initialised (the empty state). counter is the
// control-page dep_table_count word; allowDepReads reports the current
// value of the advisory allow_dep_reads gate.
func New(bindings, slots []uint64, counter *uint64, allowDepReads func() bool) *Table {
	if len(bindings) != len(slots) {
		panic("deptable: bindings and slots must be the same length")
	}
	if !unsafehelpers.IsPowerOfTwo(uintptr(len(slots))) {
		panic("deptable: size must be a power of two")
	}
	return &Table{bindings: bindings, slots: slots, counter: counter, allowDepReads: allowDepReads}
}

func validateVertex(v uint32) error {
	if v > maxVertex {
		return serr.ErrBadVertex
	}
	return nil
}

// AddEdge records an edge u -> v. It returns false without error if the
// edge already exists (spec: "Edges are only added, never removed, and are
// deduplicated"). Both endpoints must fit in 31 bits.
func (t *Table) AddEdge(u, v uint32) (bool, error) {
	if err := validateVertex(u); err != nil {
		return false, err
	}
	if err := validateVertex(v); err != nil {
		return false, err
	}
	combined := uint64(u)<<31 | uint64(v)
	added, err := t.addBinding(combined)
	if err != nil {
		return false, err
	}
	if added {
		t.prependToList(u, v)
	}
	return added, nil
}

// GetEdges returns every value bound to key u (spec: requires the advisory
// allow_dep_reads gate to be set; checked once here, not per slot visited).
func (t *Table) GetEdges(u uint32) ([]uint32, error) {
	if !t.allowDepReads() {
		return nil, serr.ErrDepReadsBlocked
	}
	if err := validateVertex(u); err != nil {
		return nil, err
	}

	depSize := uint32(len(t.slots))
	slot := uint32(hashUint64(uint64(u)))
	for {
		slot &= depSize - 1
		raw := atomic.LoadUint64(&t.slots[slot])
		if raw == 0 {
			return nil, nil
		}
		key, next := unpackSlot(raw)
		if key.tag == tagKey && key.num == u {
			return t.walkList(next), nil
		}
		slot++
	}
}

// walkList follows the list starting at head's next field, collecting every
// bound value along the way. The list ends at a next field tagged tagVal,
// which carries the last value itself instead of pointing at another slot
// (see the slot encoding in slot.go).
func (t *Table) walkList(next taggedUint) []uint32 {
	var edges []uint32
	cur := next
	for cur.tag == tagNext {
		raw := atomic.LoadUint64(&t.slots[cur.num])
		key, n := unpackSlot(raw)
		edges = append(edges, key.num)
		cur = n
	}
	edges = append(edges, cur.num)
	return edges
}

// Count returns the number of distinct edges recorded so far.
func (t *Table) Count() uint64 {
	return atomic.LoadUint64(t.counter)
}

// addBinding claims `value` (the combined (u<<31)|v key) in the bindings
// filter. Returns true if this is a new edge, false if it already existed.
func (t *Table) addBinding(value uint64) (bool, error) {
	depSize := uint64(len(t.bindings))
	slot := hashUint64(value) & (depSize - 1)

	for {
		slotVal := atomic.LoadUint64(&t.bindings[slot])
		if slotVal == value {
			return false, nil
		}
		if atomic.LoadUint64(t.counter) >= depSize {
			return false, serr.ErrDepTableFull
		}
		if slotVal == 0 {
			if atomic.CompareAndSwapUint64(&t.bindings[slot], 0, value) {
				atomic.AddUint64(t.counter, 1)
				return true, nil
			}
			if atomic.LoadUint64(&t.bindings[slot]) == value {
				return false, nil
			}
		}
		slot = (slot + 1) & (depSize - 1)
	}
}

// allocNode claims a free adjacency slot to hold list-node {val, ~0}. The
// caller (prependToList) fixes up the next field before publishing it.
func (t *Table) allocNode(key, val uint32) uint32 {
	depSize := uint32(len(t.slots))
	startHint := uint32(hashUint64(uint64(key)<<31 | uint64(val)))
	listNode := packSlot(taggedUint{num: val, tag: tagVal}, taggedUint{num: ^uint32(0), tag: tagNext})

	slot := startHint
	for {
		slot &= depSize - 1
		if atomic.LoadUint64(&t.slots[slot]) == 0 && atomic.CompareAndSwapUint64(&t.slots[slot], 0, listNode) {
			return slot
		}
		slot++
	}
}

// prependToList pushes val onto the head of key's list, allocating a new
// list node when a head already exists (classic lock-free stack push —
// spec §4.3 "Adjacency store").
func (t *Table) prependToList(key, val uint32) {
	depSize := uint32(len(t.slots))
	slot := uint32(hashUint64(uint64(key)))

	for {
		slot &= depSize - 1
		slotVal := atomic.LoadUint64(&t.slots[slot])

		if slotVal == 0 {
			head := packSlot(taggedUint{num: key, tag: tagKey}, taggedUint{num: val, tag: tagVal})
			prev := casSwap(&t.slots[slot], 0, head)
			if prev == 0 {
				return
			}
			slotVal = prev
		}

		k, _ := unpackSlot(slotVal)
		if k.tag == tagKey && k.num == key {
			listSlot := t.allocNode(key, val)

			for {
				_, next := unpackSlot(slotVal)
				nodeKey, _ := unpackSlot(atomic.LoadUint64(&t.slots[listSlot]))
				atomic.StoreUint64(&t.slots[listSlot], packSlot(nodeKey, next))

				head := packSlot(taggedUint{num: key, tag: tagKey}, taggedUint{num: listSlot, tag: tagNext})
				old := slotVal
				prev := casSwap(&t.slots[slot], old, head)
				if prev == old {
					return
				}
				slotVal = prev
			}
		}
		slot++
	}
}

// casSwap mirrors __sync_val_compare_and_swap: it always returns the value
// observed at addr at the moment of the attempt, whether or not the swap
// took effect. Callers compare the return value to old to learn which.
func casSwap(addr *uint64, old, newVal uint64) uint64 {
	for {
		if atomic.CompareAndSwapUint64(addr, old, newVal) {
			return old
		}
		cur := atomic.LoadUint64(addr)
		if cur != old {
			return cur
		}
	}
}
