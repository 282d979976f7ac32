// Package substrate is the public facade over the shared-memory
// coordination substrate: fixed-address region attach/init, a dependency
// multigraph, a content-addressable value store, and a compacting heap,
// wired together with logging and metrics the way a production caller
// expects.
package substrate

import (
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/shmsubstrate/core/internal/serr"
	"github.com/shmsubstrate/core/internal/shmregion"
	"github.com/shmsubstrate/core/internal/valuestore"
)

// Presence re-exports valuestore.Presence so callers never import an
// internal package directly.
type Presence = valuestore.Presence

const (
	AbsentNeverWritten = valuestore.AbsentNeverWritten
	AbsentRemoved      = valuestore.AbsentRemoved
	Present            = valuestore.Present
)

// Handle is the connector a master process hands to every worker it
// forks, carrying just enough to re-attach the same backing object at the
// same fixed address (spec.md §6 "Connector handle").
type Handle = shmregion.Handle

// Region is the attached substrate: the mapped bytes plus every wired
// component, logging, and metrics.
type Region struct {
	inner   *shmregion.Region
	handle  Handle
	log     *zap.Logger
	metrics metricsSink
}

// Init creates a brand-new backing object and maps it at the fixed
// address (spec.md §4.1). Master-only; the caller retrieves the connector
// handle for worker processes via Region.Handle.
func Init(cfg Config) (*Region, error) {
	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	inner, handle, err := shmregion.Init(cfg.sizes(), cfg.BackingDir, cfg.MinAvailBytes, cfg.codec)
	if err != nil {
		return nil, err
	}

	r := &Region{inner: inner, handle: handle, log: cfg.logger, metrics: newMetricsSink(cfg.registry)}
	r.log.Info("region initialized",
		zap.Int("pid", os.Getpid()),
		zap.Uint64("global_bytes", cfg.GlobalBytes),
		zap.Uint64("heap_bytes", cfg.HeapBytes),
	)
	return r, nil
}

// Attach maps an already-created backing object into the calling process
// at the same fixed address (spec.md §4.1). isMaster grants access to the
// master-only operations. Logging and metrics default to inert; use
// AttachWithOptions to plug a logger or registry into a worker process.
func Attach(h Handle, isMaster bool) (*Region, error) {
	return AttachWithOptions(h, isMaster, passthroughCodec{}, zap.NewNop(), nil)
}

// AttachWithOptions is Attach with the ambient knobs a worker process may
// still want: a value codec, a logger, and a metrics registry.
func AttachWithOptions(h Handle, isMaster bool, codec valuestore.Codec, logger *zap.Logger, registry *prometheus.Registry) (*Region, error) {
	if codec == nil {
		codec = passthroughCodec{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	inner, err := shmregion.Attach(h, isMaster, codec)
	if err != nil {
		return nil, err
	}
	r := &Region{inner: inner, handle: h, log: logger, metrics: newMetricsSink(registry)}
	r.log.Info("region attached", zap.Int("pid", os.Getpid()), zap.Bool("is_master", isMaster))
	return r, nil
}

// Handle returns the connector this process can pass to worker processes
// so they can Attach the same backing object.
func (r *Region) Handle() Handle { return r.handle }

// Close unmaps the region from this process.
func (r *Region) Close() error { return r.inner.Close() }

// IsMaster reports whether this process attached with master privileges.
func (r *Region) IsMaster() bool { return r.inner.IsMaster() }

// BackingPath returns the backing object's filesystem path, recorded in the
// region's filename page at Init. Empty for an anonymous memfd-backed
// region (the default when Config.BackingDir is unset).
func (r *Region) BackingPath() string { return r.inner.BackingPath() }

// GlobalStore publishes b to the one-shot broadcast slot. Master-only.
func (r *Region) GlobalStore(b []byte) error { return r.inner.GlobalStore(b) }

// GlobalLoad reads the broadcast slot.
func (r *Region) GlobalLoad() ([]byte, error) { return r.inner.GlobalLoad() }

// GlobalClear empties the broadcast slot. Master-only.
func (r *Region) GlobalClear() error { return r.inner.GlobalClear() }

// AddEdge records a dependency edge, deduplicated via the bindings filter.
func (r *Region) AddEdge(u, v uint32) (added bool, err error) {
	if r.inner.ShouldExit() {
		return false, serr.ErrWorkerShouldExit.WithOp("AddEdge")
	}
	added, err = r.inner.Dep.AddEdge(u, v)
	if err != nil {
		return added, err
	}
	if added {
		r.metrics.incDepEdge()
	}
	return added, nil
}

// GetEdges returns every vertex u points to. Requires allow_dep_reads.
func (r *Region) GetEdges(u uint32) ([]uint32, error) {
	if r.inner.ShouldExit() {
		return nil, serr.ErrWorkerShouldExit.WithOp("GetEdges")
	}
	return r.inner.Dep.GetEdges(u)
}

// DepCount returns the number of distinct edges recorded.
func (r *Region) DepCount() uint64 { return r.inner.Dep.Count() }

// Put stores value under key, returning stored/original byte counts.
func (r *Region) Put(key []byte, value any) (storedBytes, originalBytes int64, err error) {
	storedBytes, originalBytes, err = r.inner.Values.Put(key, value)
	if err != nil {
		if errors.Is(err, serr.ErrHashTableFull) {
			r.metrics.incValueStoreFull()
		}
		return storedBytes, originalBytes, err
	}
	if storedBytes != valuestore.LostRace {
		r.metrics.incValuePut()
		r.metrics.setHeapBytes(int64(r.inner.Heap.Used()))
	}
	return storedBytes, originalBytes, nil
}

// Has reports key's presence.
func (r *Region) Has(key []byte) (Presence, error) {
	p, err := r.inner.Values.Has(key)
	if errors.Is(err, serr.ErrStuckWriter) {
		r.metrics.incStuckWriter()
		r.log.Warn("stuck writer timeout", zap.Binary("key", key))
	}
	return p, err
}

// Get reads key's value into out.
func (r *Region) Get(key []byte, out any) error { return r.inner.Values.Get(key, out) }

// SizeOf returns the stored (possibly compressed) size of key's entry.
func (r *Region) SizeOf(key []byte) (int64, error) { return r.inner.Values.SizeOf(key) }

// Move copies src's entry to dst and tombstones src. Master-only.
func (r *Region) Move(src, dst []byte) error {
	if err := r.requireMaster("Move"); err != nil {
		return err
	}
	return r.inner.Values.Move(src, dst)
}

// Remove tombstones key's entry. Master-only; requires allow_removes.
func (r *Region) Remove(key []byte) error {
	if err := r.requireMaster("Remove"); err != nil {
		return err
	}
	if err := r.inner.Values.Remove(key); err != nil {
		return err
	}
	r.metrics.setHeapWastedBytes(int64(r.inner.Heap.WastedBytes()))
	return nil
}

// ShouldCollect reports whether the value heap warrants a compaction pass.
func (r *Region) ShouldCollect(aggressive bool) bool { return r.inner.ShouldCollect(aggressive) }

// Collect runs the compacting GC. Master-only.
func (r *Region) Collect(aggressive bool) error {
	if err := r.inner.Collect(aggressive); err != nil {
		return err
	}
	r.metrics.incGCRun()
	r.metrics.setHeapBytes(int64(r.inner.Heap.Used()))
	r.metrics.setHeapWastedBytes(int64(r.inner.Heap.WastedBytes()))
	r.log.Info("collect completed", zap.Int("pid", os.Getpid()))
	return nil
}

// SetAllowRemoves toggles the allow_removes phase gate. Master-only.
func (r *Region) SetAllowRemoves(v bool) error { return r.inner.SetAllowRemoves(v) }

// SetAllowDepReads toggles the allow_dep_reads phase gate. Master-only.
func (r *Region) SetAllowDepReads(v bool) error { return r.inner.SetAllowDepReads(v) }

// SetWorkersShouldExit raises the cooperative-cancellation flag. Master-only.
func (r *Region) SetWorkersShouldExit(v bool) error { return r.inner.SetWorkersShouldExit(v) }

// ShouldExit reports the cooperative-cancellation flag.
func (r *Region) ShouldExit() bool { return r.inner.ShouldExit() }

// NextCounter atomically advances the region's global sequence counter.
func (r *Region) NextCounter() uint64 { return r.inner.NextCounter() }

func (r *Region) requireMaster(op string) error {
	if !r.inner.IsMaster() {
		return serr.ErrMasterOnly.WithOp(op)
	}
	return nil
}
