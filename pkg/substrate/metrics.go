package substrate

// metrics.go mirrors the teacher's metrics sink abstraction: a Region
// always records through a metricsSink, which is either a no-op or backed
// by a *prometheus.Registry the caller opted into via WithMetrics. Counters
// are shared across the whole region (no per-shard label: there is exactly
// one dep table and one value store per region).

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metricsSink interface {
	incDepEdge()
	incValuePut()
	incValueStoreFull()
	setHeapBytes(v int64)
	setHeapWastedBytes(v int64)
	incGCRun()
	incStuckWriter()
}

type noopMetrics struct{}

func (noopMetrics) incDepEdge()            {}
func (noopMetrics) incValuePut()           {}
func (noopMetrics) incValueStoreFull()     {}
func (noopMetrics) setHeapBytes(int64)     {}
func (noopMetrics) setHeapWastedBytes(int64) {}
func (noopMetrics) incGCRun()              {}
func (noopMetrics) incStuckWriter()        {}

type promMetrics struct {
	depEdges        prometheus.Counter
	valuePuts       prometheus.Counter
	valueStoreFull  prometheus.Counter
	heapBytes       prometheus.Gauge
	heapWastedBytes prometheus.Gauge
	gcRuns          prometheus.Counter
	stuckWriters    prometheus.Counter
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	pm := &promMetrics{
		depEdges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shm_substrate",
			Name:      "dep_edges_total",
			Help:      "Number of dependency edges recorded.",
		}),
		valuePuts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shm_substrate",
			Name:      "value_puts_total",
			Help:      "Number of values published to the value store.",
		}),
		valueStoreFull: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shm_substrate",
			Name:      "value_store_full_total",
			Help:      "Number of Put calls that failed because the hashtable was full.",
		}),
		heapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shm_substrate",
			Name:      "heap_bytes",
			Help:      "Bytes consumed by the value heap's bump pointer.",
		}),
		heapWastedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shm_substrate",
			Name:      "heap_wasted_bytes",
			Help:      "Bytes in the value heap occupied by removed/stale entries.",
		}),
		gcRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shm_substrate",
			Name:      "gc_runs_total",
			Help:      "Number of compacting GC passes run.",
		}),
		stuckWriters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shm_substrate",
			Name:      "stuck_writer_total",
			Help:      "Number of times a reader gave up waiting on a SENTINEL slot.",
		}),
	}
	reg.MustRegister(pm.depEdges, pm.valuePuts, pm.valueStoreFull, pm.heapBytes, pm.heapWastedBytes, pm.gcRuns, pm.stuckWriters)
	return pm
}

func (m *promMetrics) incDepEdge()              { m.depEdges.Inc() }
func (m *promMetrics) incValuePut()              { m.valuePuts.Inc() }
func (m *promMetrics) incValueStoreFull()        { m.valueStoreFull.Inc() }
func (m *promMetrics) setHeapBytes(v int64)      { m.heapBytes.Set(float64(v)) }
func (m *promMetrics) setHeapWastedBytes(v int64) { m.heapWastedBytes.Set(float64(v)) }
func (m *promMetrics) incGCRun()                 { m.gcRuns.Inc() }
func (m *promMetrics) incStuckWriter()           { m.stuckWriters.Inc() }

func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
