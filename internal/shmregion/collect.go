package shmregion

// ShouldCollect reports whether the value heap has accumulated enough
// wasted bytes to warrant a compaction pass (spec.md §4.5).
func (r *Region) ShouldCollect(aggressive bool) bool {
	return r.Heap.ShouldCollect(aggressive)
}

// Collect runs the compacting GC. Master-only: the caller must guarantee
// no worker is mid-operation (spec.md §4.5, §5 "phase discipline").
func (r *Region) Collect(aggressive bool) error {
	if err := r.requireMaster("Collect"); err != nil {
		return err
	}
	_ = aggressive // ShouldCollect already folded the aggressive factor into the caller's decision
	r.Heap.Collect(r.Values.AddrCells())
	return nil
}
